// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package feed

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

func testRaw() RawFetchedFile {
	return RawFetchedFile{
		Ts:              time2.Date(2024, time.January, 2, 3, 4, 0),
		Config:          FeedConfig{Name: "x", URL: "http://h/f", FeedType: GtfsRtVehiclePositions},
		Page:            []KeyValue{},
		ResponseCode:    200,
		ResponseHeaders: map[string]string{"Content-Type": "application/octet-stream"},
		Contents:        []byte{0x0a, 0x0b},
	}
}

func TestRawRoundTrip(t *testing.T) {
	raw := testRaw()

	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// Response bytes serialize as standard base64.
	if !strings.Contains(string(data), `"contents":"Cgs="`) {
		t.Errorf("envelope = %s, want base64 contents Cgs=", data)
	}
	if !strings.Contains(string(data), `"ts":"2024-01-02T03:04:00+00:00"`) {
		t.Errorf("envelope = %s, want offset-form ts", data)
	}

	decoded, err := DecodeRaw(data)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if string(decoded.Contents) != string(raw.Contents) {
		t.Errorf("Contents = %v, want %v", decoded.Contents, raw.Contents)
	}
	if decoded.Config.FeedType != GtfsRtVehiclePositions || decoded.ResponseCode != 200 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestValidateOneOf(t *testing.T) {
	raw := testRaw()
	if err := raw.Validate(); err != nil {
		t.Errorf("Validate with contents: %v", err)
	}

	raw.Contents = nil
	raw.Exception = "connection refused"
	if err := raw.Validate(); err != nil {
		t.Errorf("Validate with exception: %v", err)
	}

	raw.Exception = ""
	if err := raw.Validate(); err == nil {
		t.Error("Validate accepted neither contents nor exception")
	}

	raw.Contents = []byte{1}
	raw.Exception = "boom"
	if err := raw.Validate(); err == nil {
		t.Error("Validate accepted both contents and exception")
	}
}

func TestDecodeRawRejectsInvalid(t *testing.T) {
	if _, err := DecodeRaw([]byte("{not json")); err == nil {
		t.Error("DecodeRaw accepted malformed JSON")
	}
	if _, err := DecodeRaw([]byte(`{"ts":"2024-01-02T03:04:00+00:00"}`)); err == nil {
		t.Error("DecodeRaw accepted an envelope with no contents")
	}
}

func TestStripContents(t *testing.T) {
	raw := testRaw()
	stripped := raw.StripContents()

	if stripped.Contents != nil {
		t.Error("StripContents kept contents")
	}
	if len(raw.Contents) == 0 {
		t.Error("StripContents mutated the original")
	}

	data, err := json.Marshal(stripped)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "contents") {
		t.Errorf("stripped envelope still has a contents key: %s", data)
	}
	if !strings.Contains(string(data), `"response_code":200`) {
		t.Errorf("stripped envelope lost response metadata: %s", data)
	}
}

func TestRawDerivedAttributes(t *testing.T) {
	raw := testRaw()

	if got := raw.Dt(); got != "2024-01-02" {
		t.Errorf("Dt = %q", got)
	}
	if got := raw.Hour().String(); got != "2024-01-02T03:00:00+00:00" {
		t.Errorf("Hour = %q", got)
	}

	key, err := raw.GCSKey()
	if err != nil {
		t.Fatalf("GCSKey: %v", err)
	}
	if !strings.HasPrefix(key, "gtfs_rt__vehicle_positions/dt=2024-01-02/") {
		t.Errorf("GCSKey = %q", key)
	}
}

func TestHourAggKeying(t *testing.T) {
	agg := HourAgg{
		Table:     Stops,
		Base64URL: "aGk=",
		Hour:      time2.Date(2024, time.January, 2, 3, 0, 0),
	}

	if got := agg.Filename(); got != "aGk=.jsonl.gz" {
		t.Errorf("Filename = %q", got)
	}
	if got, want := agg.GCSKey(), "gtfs_schedule__stops/dt=2024-01-02/hour=2024-01-02T03:00:00+00:00/aGk=.jsonl.gz"; got != want {
		t.Errorf("GCSKey = %q, want %q", got, want)
	}
}
