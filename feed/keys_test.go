// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package feed

import (
	"encoding/base64"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

func TestRawKey(t *testing.T) {
	config := FeedConfig{Name: "x", URL: "http://h/f", FeedType: GtfsRtVehiclePositions}
	ts := time2.Date(2024, time.January, 2, 3, 4, 0)

	got, err := RawKey(config, ts, nil)
	if err != nil {
		t.Fatalf("RawKey: %v", err)
	}
	want := "gtfs_rt__vehicle_positions" +
		"/dt=2024-01-02" +
		"/hour=2024-01-02T03:00:00+00:00" +
		"/ts=2024-01-02T03:04:00+00:00" +
		"/base64url=aHR0cDovL2gvZg==" +
		"/aHR0cDovL2gvZg==.json"
	if got != want {
		t.Errorf("RawKey = %q, want %q", got, want)
	}
}

func TestFingerprintStableUnderQueryOrder(t *testing.T) {
	one, two := "1", "2"
	a := FeedConfig{Name: "x", URL: "http://h/f", FeedType: SeptaAlerts,
		Query: []KeyValue{{Key: "a", Value: &one}, {Key: "b", Value: &two}}}
	b := FeedConfig{Name: "x", URL: "http://h/f", FeedType: SeptaAlerts,
		Query: []KeyValue{{Key: "b", Value: &two}, {Key: "a", Value: &one}}}

	fpA, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fpB, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fpA != fpB {
		t.Errorf("fingerprints differ: %q vs %q", fpA, fpB)
	}

	decoded, err := base64.URLEncoding.DecodeString(fpA)
	if err != nil {
		t.Fatalf("decode fingerprint: %v", err)
	}
	if want := "http://h/f?a=1&b=2"; string(decoded) != want {
		t.Errorf("fingerprint decodes to %q, want %q", decoded, want)
	}
}

func TestSecretsStayOutOfKeys(t *testing.T) {
	t.Setenv("ARCHIVER_TEST_APIKEY", "tok123")
	secretName := "ARCHIVER_TEST_APIKEY"
	format := "json"
	config := FeedConfig{Name: "x", URL: "http://h/f", FeedType: SeptaAlerts,
		Query: []KeyValue{{Key: "format", Value: &format}, {Key: "apikey", ValueSecret: &secretName}}}

	fetchURL, err := FetchURL(config, nil)
	if err != nil {
		t.Fatalf("FetchURL: %v", err)
	}
	if want := "http://h/f?apikey=tok123&format=json"; fetchURL != want {
		t.Errorf("FetchURL = %q, want %q", fetchURL, want)
	}

	fp, err := Fingerprint(config)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	decoded, _ := base64.URLEncoding.DecodeString(fp)
	if strings.Contains(string(decoded), "tok123") || strings.Contains(string(decoded), "apikey") {
		t.Errorf("fingerprint %q embeds the secret parameter", decoded)
	}
	if want := "http://h/f?format=json"; string(decoded) != want {
		t.Errorf("fingerprint decodes to %q, want %q", decoded, want)
	}

	public := FeedConfig{Name: "x", URL: "http://h/f", FeedType: SeptaAlerts,
		Query: []KeyValue{{Key: "format", Value: &format}}}
	publicFp, err := Fingerprint(public)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if fp != publicFp {
		t.Error("secret parameter changed the fingerprint")
	}
}

func TestPageChangesFilenameNotFingerprint(t *testing.T) {
	routeA, routeB := "A", "B"
	config := FeedConfig{Name: "x", URL: "http://h/f", FeedType: SeptaArrivals,
		Pages: []KeyValues{{Key: "route", Values: []string{"A", "B"}}}}
	ts := time2.Date(2024, time.January, 2, 3, 4, 0)

	keyA, err := RawKey(config, ts, []KeyValue{{Key: "route", Value: &routeA}})
	if err != nil {
		t.Fatalf("RawKey A: %v", err)
	}
	keyB, err := RawKey(config, ts, []KeyValue{{Key: "route", Value: &routeB}})
	if err != nil {
		t.Fatalf("RawKey B: %v", err)
	}

	if path.Dir(keyA) != path.Dir(keyB) {
		t.Errorf("partitions differ:\n%s\n%s", keyA, keyB)
	}
	if path.Base(keyA) == path.Base(keyB) {
		t.Errorf("filenames identical: %s", path.Base(keyA))
	}

	wantA := base64.URLEncoding.EncodeToString([]byte("http://h/f?route=A")) + ".json"
	if path.Base(keyA) != wantA {
		t.Errorf("filename = %q, want %q", path.Base(keyA), wantA)
	}
}

func TestAggKey(t *testing.T) {
	hour := time2.Date(2024, time.January, 2, 3, 0, 0)

	got := AggKey(GtfsRtVehiclePositions, "aHR0cDovL2gvZg==", hour)
	want := "gtfs_rt__vehicle_positions/dt=2024-01-02/hour=2024-01-02T03:00:00+00:00/aHR0cDovL2gvZg==.jsonl.gz"
	if got != want {
		t.Errorf("AggKey = %q, want %q", got, want)
	}

	got = AggKey(Agency, "aHR0cDovL2gvZg==", hour)
	want = "gtfs_schedule__agency/dt=2024-01-02/hour=2024-01-02T03:00:00+00:00/aHR0cDovL2gvZg==.jsonl.gz"
	if got != want {
		t.Errorf("AggKey = %q, want %q", got, want)
	}
}

func TestOutcomesKey(t *testing.T) {
	hour := time2.Date(2024, time.January, 2, 3, 0, 0)

	got := OutcomesKey(GtfsRtVehiclePositions, hour)
	want := "gtfs_rt__vehicle_positions__parse_outcomes/dt=2024-01-02/2024-01-02T03:00:00+00:00.jsonl"
	if got != want {
		t.Errorf("OutcomesKey = %q, want %q", got, want)
	}
}
