// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package decode

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JarvusInnovations/transit-archiver/feed"
)

// ListOfDicts decodes the plainest SEPTA shape: a JSON array of
// objects, one record each.
type ListOfDicts struct{}

func (ListOfDicts) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.SeptaTrainView, feed.SeptaAlertsWithoutMessage, feed.SeptaAlerts}
}

func (ListOfDicts) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	var records []map[string]any
	if err := json.Unmarshal(contents, &records); err != nil {
		return nil, Error{ft, err}
	}
	return single(ft, contents, records), nil
}

// SeptaArrivals decodes {station: [{direction: [update...]}]}. Each
// update keeps its station under "key" and its direction under
// "direction_key"; an update's own fields win on collision.
type SeptaArrivals struct{}

func (SeptaArrivals) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.SeptaArrivals}
}

func (SeptaArrivals) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	stations, err := objectEntries(contents)
	if err != nil {
		return nil, Error{ft, err}
	}

	var records []map[string]any
	for _, station := range stations {
		var groups []json.RawMessage
		if err := json.Unmarshal(station.raw, &groups); err != nil {
			return nil, Error{ft, fmt.Errorf("station %q: %w", station.key, err)}
		}

		for _, group := range groups {
			directions, err := objectEntries(group)
			if err != nil {
				return nil, Error{ft, fmt.Errorf("station %q: %w", station.key, err)}
			}

			for _, direction := range directions {
				var updates []map[string]any
				if err := json.Unmarshal(direction.raw, &updates); err != nil {
					return nil, Error{ft, fmt.Errorf("station %q direction %q: %w", station.key, direction.key, err)}
				}

				for _, update := range updates {
					record := make(map[string]any, len(update)+2)
					record["key"] = station.key
					record["direction_key"] = direction.key
					for k, v := range update {
						record[k] = v
					}
					records = append(records, record)
				}
			}
		}
	}
	return single(ft, contents, records), nil
}

// SeptaTransitViewAll decodes {routes: [{route_id: [vehicle...]}]}
// where routes holds exactly one object; each vehicle is a record.
type SeptaTransitViewAll struct{}

func (SeptaTransitViewAll) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.SeptaTransitViewAll}
}

func (SeptaTransitViewAll) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(contents, &payload); err != nil {
		return nil, Error{ft, err}
	}
	routesRaw, ok := payload["routes"]
	if !ok {
		return nil, Error{ft, errors.New(`missing "routes"`)}
	}

	var routes []json.RawMessage
	if err := json.Unmarshal(routesRaw, &routes); err != nil {
		return nil, Error{ft, err}
	}
	if len(routes) != 1 {
		return nil, Error{ft, fmt.Errorf("routes must hold exactly one object, got %d", len(routes))}
	}

	byRoute, err := objectEntries(routes[0])
	if err != nil {
		return nil, Error{ft, err}
	}

	var records []map[string]any
	for _, route := range byRoute {
		var vehicles []map[string]any
		if err := json.Unmarshal(route.raw, &vehicles); err != nil {
			return nil, Error{ft, fmt.Errorf("route %q: %w", route.key, err)}
		}
		records = append(records, vehicles...)
	}
	return single(ft, contents, records), nil
}

// SeptaBusDetours decodes [{route_id, route_info: [detour...]}]; each
// detour is a record carrying its route_id.
type SeptaBusDetours struct{}

func (SeptaBusDetours) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.SeptaBusDetours}
}

func (SeptaBusDetours) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	var groups []map[string]json.RawMessage
	if err := json.Unmarshal(contents, &groups); err != nil {
		return nil, Error{ft, err}
	}

	var records []map[string]any
	for i, group := range groups {
		routeIDRaw, ok := group["route_id"]
		if !ok {
			return nil, Error{ft, fmt.Errorf(`route %d: missing "route_id"`, i)}
		}
		var routeID any
		if err := json.Unmarshal(routeIDRaw, &routeID); err != nil {
			return nil, Error{ft, fmt.Errorf("route %d: %w", i, err)}
		}

		infoRaw, ok := group["route_info"]
		if !ok {
			return nil, Error{ft, fmt.Errorf(`route %d: missing "route_info"`, i)}
		}
		var detours []map[string]any
		if err := json.Unmarshal(infoRaw, &detours); err != nil {
			return nil, Error{ft, fmt.Errorf("route %d: %w", i, err)}
		}

		for _, detour := range detours {
			record := make(map[string]any, len(detour)+1)
			record["route_id"] = routeID
			for k, v := range detour {
				record[k] = v
			}
			records = append(records, record)
		}
	}
	return single(ft, contents, records), nil
}

// SeptaElevatorOutages decodes {meta, results: [outage...]}; each
// outage is a record carrying the shared meta object.
type SeptaElevatorOutages struct{}

func (SeptaElevatorOutages) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.SeptaElevatorOutages}
}

func (SeptaElevatorOutages) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(contents, &payload); err != nil {
		return nil, Error{ft, err}
	}

	metaRaw, ok := payload["meta"]
	if !ok {
		return nil, Error{ft, errors.New(`missing "meta"`)}
	}
	var meta any
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, Error{ft, err}
	}

	resultsRaw, ok := payload["results"]
	if !ok {
		return nil, Error{ft, errors.New(`missing "results"`)}
	}
	var results []map[string]any
	if err := json.Unmarshal(resultsRaw, &results); err != nil {
		return nil, Error{ft, err}
	}

	records := make([]map[string]any, 0, len(results))
	for _, outage := range results {
		record := make(map[string]any, len(outage)+1)
		record["meta"] = meta
		for k, v := range outage {
			record[k] = v
		}
		records = append(records, record)
	}
	return single(ft, contents, records), nil
}
