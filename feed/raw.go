// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

// RawFetchedFile is the envelope written for every fetch: the response
// bytes plus enough request context to replay or audit it. It is
// written once and never mutated.
type RawFetchedFile struct {
	Ts              time2.Time        `json:"ts"`
	Config          FeedConfig        `json:"config"`
	Page            []KeyValue        `json:"page"`
	ResponseCode    int               `json:"response_code"`
	ResponseHeaders map[string]string `json:"response_headers"`
	Contents        []byte            `json:"contents,omitempty"`
	Exception       string            `json:"exception,omitempty"`
}

var errContentsExceptionOneOf = errors.New("exactly one of contents or exception is required")

func (r RawFetchedFile) Validate() error {
	hasContents := len(r.Contents) > 0
	hasException := r.Exception != ""
	if hasContents == hasException {
		return errContentsExceptionOneOf
	}
	return nil
}

func (r RawFetchedFile) Dt() string {
	return r.Ts.DateString()
}

func (r RawFetchedFile) Hour() time2.Time {
	return r.Ts.TruncateHour()
}

func (r RawFetchedFile) Base64URL() (string, error) {
	return Fingerprint(r.Config)
}

func (r RawFetchedFile) Filename() (string, error) {
	return PageFilename(r.Config, r.Page)
}

func (r RawFetchedFile) GCSKey() (string, error) {
	return RawKey(r.Config, r.Ts, r.Page)
}

// StripContents returns a copy without the response bytes, for
// embedding in parsed records and outcomes.
func (r RawFetchedFile) StripContents() RawFetchedFile {
	r.Contents = nil
	return r
}

// DecodeRaw reads a stored envelope back.
func DecodeRaw(data []byte) (RawFetchedFile, error) {
	var r RawFetchedFile
	if err := json.Unmarshal(data, &r); err != nil {
		return RawFetchedFile{}, fmt.Errorf("raw envelope: %w", err)
	}
	if err := r.Validate(); err != nil {
		return RawFetchedFile{}, fmt.Errorf("raw envelope: %w", err)
	}
	return r, nil
}

// HourAgg locates one hourly aggregation output: all records of one
// table, for one url fingerprint, over one clock hour.
type HourAgg struct {
	Table     Table
	Base64URL string
	Hour      time2.Time
}

func (a HourAgg) Dt() string {
	return a.Hour.DateString()
}

func (a HourAgg) Filename() string {
	return a.Base64URL + ".jsonl.gz"
}

func (a HourAgg) GCSKey() string {
	return AggKey(a.Table, a.Base64URL, a.Hour)
}

// HourOutcomes locates the parse-outcomes ledger for one feed over one
// hour.
type HourOutcomes struct {
	FeedType FeedType
	Hour     time2.Time
}

func (h HourOutcomes) GCSKey() string {
	return OutcomesKey(h.FeedType, h.Hour)
}

type LineMetadata struct {
	LineNumber int `json:"line_number"`
}

// ParsedRecord is one normalized record inside an hourly aggregation,
// wrapped with the envelope it came from (minus the response bytes).
type ParsedRecord struct {
	File     RawFetchedFile `json:"file"`
	Record   map[string]any `json:"record"`
	Metadata LineMetadata   `json:"metadata"`
}

type OutcomeMetadata struct {
	// Hash is the hex MD5 of the concatenated per-sub-file content
	// digests, in emit order.
	Hash string `json:"hash,omitempty"`
}

// ParseOutcome records whether one raw snapshot decoded cleanly.
type ParseOutcome struct {
	File      RawFetchedFile  `json:"file"`
	Metadata  OutcomeMetadata `json:"metadata"`
	Success   bool            `json:"success"`
	Exception string          `json:"exception,omitempty"`
}
