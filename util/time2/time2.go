// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package time2

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout renders instants the way the archive partitions expect:
// RFC 3339 with an explicit numeric offset, so UTC reads +00:00, never Z.
const Layout = "2006-01-02T15:04:05-07:00"

type ErrInvalidTime string

func (e ErrInvalidTime) Error() string {
	return fmt.Sprintf("invalid time string: %q", string(e))
}

// Time is a UTC instant with whole-second precision. Partition keys are
// built from its string forms, so lexicographic order of rendered values
// matches temporal order.
type Time struct {
	time.Time
}

func New(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Second)}
}

func Now() Time {
	return New(time.Now())
}

func Date(year int, month time.Month, day, hour, min, sec int) Time {
	return Time{time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

func Parse(s string) (Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Time{}, ErrInvalidTime(s)
	}
	return New(t), nil
}

// ParseDate reads a YYYY-MM-DD string as UTC midnight.
func ParseDate(s string) (Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Time{}, ErrInvalidTime(s)
	}
	return New(t), nil
}

func (t Time) String() string {
	return t.Format(Layout)
}

// DateString renders the YYYY-MM-DD portion, used for dt= partitions.
func (t Time) DateString() string {
	return t.Format(time.DateOnly)
}

func (t Time) TruncateMinute() Time {
	return Time{t.Truncate(time.Minute)}
}

func (t Time) TruncateHour() Time {
	return Time{t.Truncate(time.Hour)}
}

func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Time) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time method, which would
// render UTC with a Z suffix.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}
