// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package decode turns raw feed payloads into normalized record
// streams. Every FeedType maps to exactly one decoder; the registry
// refuses to start with a gap in coverage.
package decode

import (
	"bytes"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JarvusInnovations/transit-archiver/feed"
)

type Error struct {
	FeedType feed.FeedType
	Reason   error
}

func (e Error) Error() string {
	return fmt.Sprintf("decoding %s: %s", e.FeedType, e.Reason)
}

func (e Error) Unwrap() error {
	return e.Reason
}

// ParsedFile is one decoded sub-file: the table it belongs to, the MD5
// digest of its bytes, and its records in source order.
type ParsedFile struct {
	Table   feed.Table
	Digest  [md5.Size]byte
	Records []map[string]any
}

// Decoder turns one raw payload into parsed sub-files. Most feeds
// produce a single sub-file; a GTFS static ZIP produces one per
// archive entry.
type Decoder interface {
	FeedTypes() []feed.FeedType
	Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error)
}

// Registry maps every FeedType to its decoder.
type Registry map[feed.FeedType]Decoder

// NewRegistry assembles the default decoder set and verifies that every
// FeedType is covered exactly once.
func NewRegistry() (Registry, error) {
	decoders := []Decoder{
		GtfsSchedule{},
		GtfsRealtime{},
		ListOfDicts{},
		SeptaArrivals{},
		SeptaTransitViewAll{},
		SeptaBusDetours{},
		SeptaElevatorOutages{},
	}

	r := make(Registry)
	for _, d := range decoders {
		for _, ft := range d.FeedTypes() {
			if _, dup := r[ft]; dup {
				return nil, feed.ConfigError{Feed: string(ft), Field: "decoder", Reason: errors.New("registered twice")}
			}
			r[ft] = d
		}
	}

	for _, ft := range feed.AllFeedTypes {
		if _, ok := r[ft]; !ok {
			return nil, feed.ConfigError{Feed: string(ft), Field: "decoder", Reason: errors.New("no decoder registered")}
		}
	}
	return r, nil
}

func (r Registry) Decode(ft feed.FeedType, contents []byte) ([]ParsedFile, error) {
	d, ok := r[ft]
	if !ok {
		return nil, Error{ft, feed.ErrUnknownFeedType(ft)}
	}
	return d.Decode(ft, contents)
}

// single wraps the common case of one sub-file covering the whole
// payload.
func single(ft feed.FeedType, contents []byte, records []map[string]any) []ParsedFile {
	return []ParsedFile{{Table: ft, Digest: md5.Sum(contents), Records: records}}
}

type objEntry struct {
	key string
	raw json.RawMessage
}

// objectEntries reads a JSON object's entries in document order.
// encoding/json maps lose ordering, and aggregation output must follow
// source order for re-runs to be byte-identical.
func objectEntries(data []byte) ([]objEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected a JSON object")
	}

	var entries []objEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected an object key")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		entries = append(entries, objEntry{key, raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}
