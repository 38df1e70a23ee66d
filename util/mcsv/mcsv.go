// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package mcsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"slices"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader decodes CSV rows into header-keyed maps. Each call yields a
// fresh map, so rows may be retained by the caller. Short rows are
// padded with empty strings, extra fields are dropped.
type Reader struct {
	r      *csv.Reader
	header []string
	err    error
}

func NewReader(r io.Reader) *Reader {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	o := &Reader{r: csv.NewReader(br)}
	o.r.ReuseRecord = true
	o.r.FieldsPerRecord = -1
	return o
}

func (r *Reader) readHeader() {
	var row []string
	row, r.err = r.r.Read()
	if r.err != nil {
		return
	}

	r.header = slices.Clone(row)
}

func (r *Reader) next() map[string]string {
	if r.header == nil {
		r.readHeader()
		if r.err != nil {
			return nil
		}
	}

	var row []string
	row, r.err = r.r.Read()
	if r.err != nil {
		return nil
	}

	record := make(map[string]string, len(r.header))
	for i, key := range r.header {
		if i < len(row) {
			record[key] = row[i]
		} else {
			record[key] = ""
		}
	}
	return record
}

func (r *Reader) Read() (map[string]string, error) {
	record := r.next()
	if r.err != nil {
		return nil, r.err
	}
	return record, nil
}

func (r *Reader) Iter() iter.Seq[map[string]string] {
	return func(yield func(map[string]string) bool) {
		for {
			record := r.next()
			if r.err != nil || !yield(record) {
				return
			}
		}
	}
}

func (r *Reader) Err() error {
	if errors.Is(r.err, io.EOF) {
		return nil
	}
	return r.err
}

func (r *Reader) Line() int {
	line, _ := r.r.FieldPos(0)
	return line
}
