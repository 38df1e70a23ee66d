// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package decode

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/JarvusInnovations/transit-archiver/feed"
	"github.com/JarvusInnovations/transit-archiver/util/mcsv"
)

// GtfsSchedule decodes a GTFS static ZIP: one sub-file per known
// archive entry, each a UTF-8 CSV with a header row. Entries that are
// not part of the GTFS schedule set are skipped with a warning.
type GtfsSchedule struct{}

func (GtfsSchedule) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.GtfsSchedule}
}

func (GtfsSchedule) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	arch, err := zip.NewReader(bytes.NewReader(contents), int64(len(contents)))
	if err != nil {
		return nil, Error{ft, err}
	}

	// Archive order fixes the emit order, and with it the combined
	// outcome hash.
	var files []ParsedFile
	for _, entry := range arch.File {
		sub, known := feed.ScheduleFileTypeByName(entry.Name)
		if !known {
			slog.Warn("Skipping unknown GTFS schedule entry", "entry", entry.Name)
			continue
		}

		f, err := entry.Open()
		if err != nil {
			return nil, Error{ft, fmt.Errorf("%s: %w", entry.Name, err)}
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, Error{ft, fmt.Errorf("%s: %w", entry.Name, err)}
		}

		records, err := csvRecords(data)
		if err != nil {
			return nil, Error{ft, fmt.Errorf("%s: %w", entry.Name, err)}
		}
		files = append(files, ParsedFile{Table: sub, Digest: md5.Sum(data), Records: records})
	}
	return files, nil
}

func csvRecords(data []byte) ([]map[string]any, error) {
	r := mcsv.NewReader(bytes.NewReader(data))

	var records []map[string]any
	for row := range r.Iter() {
		record := make(map[string]any, len(row))
		for key, value := range row {
			record[key] = value
		}
		records = append(records, record)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// GtfsRealtime decodes a protobuf FeedMessage into one record per
// entity, each carrying the message header alongside the entity.
type GtfsRealtime struct{}

func (GtfsRealtime) FeedTypes() []feed.FeedType {
	return []feed.FeedType{feed.GtfsRtVehiclePositions, feed.GtfsRtTripUpdates, feed.GtfsRtServiceAlerts}
}

func (GtfsRealtime) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	var msg gtfs.FeedMessage
	if err := proto.Unmarshal(contents, &msg); err != nil {
		return nil, Error{ft, err}
	}

	header, err := protoMap(msg.GetHeader())
	if err != nil {
		return nil, Error{ft, err}
	}

	records := make([]map[string]any, 0, len(msg.GetEntity()))
	for _, entity := range msg.GetEntity() {
		e, err := protoMap(entity)
		if err != nil {
			return nil, Error{ft, err}
		}
		records = append(records, map[string]any{"header": header, "entity": e})
	}
	return single(ft, contents, records), nil
}

// protoMap renders a protobuf message as a plain JSON map. protojson's
// own output is not byte-stable, so the message is round-tripped into a
// map and re-marshaled by encoding/json downstream.
func protoMap(m proto.Message) (map[string]any, error) {
	raw, err := protojson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
