// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package decode

import (
	"errors"
	"testing"

	"github.com/JarvusInnovations/transit-archiver/feed"
)

func TestNewRegistryCoversEveryFeedType(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, ft := range feed.AllFeedTypes {
		if _, ok := r[ft]; !ok {
			t.Errorf("no decoder for %s", ft)
		}
	}
	if len(r) != len(feed.AllFeedTypes) {
		t.Errorf("registry has %d entries, want %d", len(r), len(feed.AllFeedTypes))
	}
}

func TestRegistryDecodeDispatch(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	files, err := r.Decode(feed.SeptaTrainView, []byte(`[{"trainno":"123"}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(files) != 1 || len(files[0].Records) != 1 {
		t.Fatalf("files = %+v, want one sub-file with one record", files)
	}
	if files[0].Records[0]["trainno"] != "123" {
		t.Errorf("record = %v", files[0].Records[0])
	}
}

func TestRegistryDecodeUnknownFeedType(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	_, err = r.Decode(feed.FeedType("gtfs_rt__weather"), nil)
	var decodeErr Error
	if !errors.As(err, &decodeErr) {
		t.Errorf("Decode error = %v, want decode.Error", err)
	}
}

func TestObjectEntriesPreservesDocumentOrder(t *testing.T) {
	entries, err := objectEntries([]byte(`{"b": 1, "a": 2, "c": 3}`))
	if err != nil {
		t.Fatalf("objectEntries: %v", err)
	}

	var keys []string
	for _, e := range entries {
		keys = append(keys, e.key)
	}
	want := []string{"b", "a", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestObjectEntriesRejectsNonObjects(t *testing.T) {
	for _, input := range []string{`[1,2]`, `"str"`, `{"a":`} {
		if _, err := objectEntries([]byte(input)); err == nil {
			t.Errorf("objectEntries(%s) succeeded", input)
		}
	}
}
