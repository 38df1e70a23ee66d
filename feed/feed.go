// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package feed defines the archive's data model: the closed set of
// upstream feeds, their fetch configuration, the raw snapshot envelope,
// and the deterministic object-store keys everything is filed under.
package feed

import (
	"fmt"
	"strings"
)

// FeedType identifies one logical upstream feed.
type FeedType string

const (
	GtfsSchedule              FeedType = "gtfs_schedule"
	GtfsRtVehiclePositions    FeedType = "gtfs_rt__vehicle_positions"
	GtfsRtTripUpdates         FeedType = "gtfs_rt__trip_updates"
	GtfsRtServiceAlerts       FeedType = "gtfs_rt__service_alerts"
	SeptaArrivals             FeedType = "septa__arrivals"
	SeptaTrainView            FeedType = "septa__train_view"
	SeptaTransitViewAll       FeedType = "septa__transit_view_all"
	SeptaBusDetours           FeedType = "septa__bus_detours"
	SeptaAlertsWithoutMessage FeedType = "septa__alerts_without_message"
	SeptaAlerts               FeedType = "septa__alerts"
	SeptaElevatorOutages      FeedType = "septa__elevator_outages"
)

// AllFeedTypes lists every known feed. Decoder coverage is checked
// against this list at startup.
var AllFeedTypes = []FeedType{
	GtfsSchedule,
	GtfsRtVehiclePositions,
	GtfsRtTripUpdates,
	GtfsRtServiceAlerts,
	SeptaArrivals,
	SeptaTrainView,
	SeptaTransitViewAll,
	SeptaBusDetours,
	SeptaAlertsWithoutMessage,
	SeptaAlerts,
	SeptaElevatorOutages,
}

type ErrUnknownFeedType string

func (e ErrUnknownFeedType) Error() string {
	return fmt.Sprintf("unknown feed type: %q", string(e))
}

func ParseFeedType(s string) (FeedType, error) {
	ft := FeedType(s)
	if !ft.IsValid() {
		return "", ErrUnknownFeedType(s)
	}
	return ft, nil
}

func (ft FeedType) IsValid() bool {
	switch ft {
	case GtfsSchedule, GtfsRtVehiclePositions, GtfsRtTripUpdates, GtfsRtServiceAlerts,
		SeptaArrivals, SeptaTrainView, SeptaTransitViewAll, SeptaBusDetours,
		SeptaAlertsWithoutMessage, SeptaAlerts, SeptaElevatorOutages:
		return true
	}
	return false
}

func (ft FeedType) String() string {
	return string(ft)
}

func (ft FeedType) TableName() string {
	return string(ft)
}

// MinutelyFeedTypes returns the feeds fetched every minute: everything
// except the daily gtfs_schedule snapshot.
func MinutelyFeedTypes() []FeedType {
	minutely := make([]FeedType, 0, len(AllFeedTypes)-1)
	for _, ft := range AllFeedTypes {
		if ft != GtfsSchedule {
			minutely = append(minutely, ft)
		}
	}
	return minutely
}

// GtfsScheduleFileType names one file inside a GTFS static ZIP.
type GtfsScheduleFileType string

const (
	Agency            GtfsScheduleFileType = "agency.txt"
	Stops             GtfsScheduleFileType = "stops.txt"
	Routes            GtfsScheduleFileType = "routes.txt"
	Trips             GtfsScheduleFileType = "trips.txt"
	StopTimes         GtfsScheduleFileType = "stop_times.txt"
	Calendar          GtfsScheduleFileType = "calendar.txt"
	CalendarDates     GtfsScheduleFileType = "calendar_dates.txt"
	FareAttributes    GtfsScheduleFileType = "fare_attributes.txt"
	FareRules         GtfsScheduleFileType = "fare_rules.txt"
	FareMedia         GtfsScheduleFileType = "fare_media.txt"
	FareProducts      GtfsScheduleFileType = "fare_products.txt"
	FareLegRules      GtfsScheduleFileType = "fare_leg_rules.txt"
	FareTransferRules GtfsScheduleFileType = "fare_transfer_rules.txt"
	Areas             GtfsScheduleFileType = "areas.txt"
	StopAreas         GtfsScheduleFileType = "stop_areas.txt"
	Shapes            GtfsScheduleFileType = "shapes.txt"
	Frequencies       GtfsScheduleFileType = "frequencies.txt"
	Transfers         GtfsScheduleFileType = "transfers.txt"
	Pathways          GtfsScheduleFileType = "pathways.txt"
	Levels            GtfsScheduleFileType = "levels.txt"
	Translations      GtfsScheduleFileType = "translations.txt"
	FeedInfo          GtfsScheduleFileType = "feed_info.txt"
	Attributions      GtfsScheduleFileType = "attributions.txt"
)

var AllGtfsScheduleFileTypes = []GtfsScheduleFileType{
	Agency, Stops, Routes, Trips, StopTimes, Calendar, CalendarDates,
	FareAttributes, FareRules, FareMedia, FareProducts, FareLegRules,
	FareTransferRules, Areas, StopAreas, Shapes, Frequencies, Transfers,
	Pathways, Levels, Translations, FeedInfo, Attributions,
}

// ScheduleFileTypeByName matches a ZIP entry name against the known
// GTFS schedule files.
func ScheduleFileTypeByName(name string) (GtfsScheduleFileType, bool) {
	for _, f := range AllGtfsScheduleFileTypes {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

func (f GtfsScheduleFileType) String() string {
	return string(f)
}

// TableName is the output partition name: gtfs_schedule__ plus the file
// name without its .txt suffix.
func (f GtfsScheduleFileType) TableName() string {
	return "gtfs_schedule__" + strings.TrimSuffix(string(f), ".txt")
}

// Table is the logical output table of parsed records: either a whole
// feed, or one file of the GTFS static archive.
type Table interface {
	TableName() string
}
