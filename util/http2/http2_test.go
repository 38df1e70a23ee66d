// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package http2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGet(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	resp, err := Get(context.Background(), srv.Client(), srv.URL, map[string]string{"X-Api-Key": "k"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "payload" {
		t.Errorf("Body = %q, want %q", resp.Body, "payload")
	}
	if resp.Headers.Get("Content-Type") != "application/octet-stream" {
		t.Errorf("Content-Type = %q", resp.Headers.Get("Content-Type"))
	}
	if gotHeader != "k" {
		t.Errorf("request X-Api-Key = %q, want %q", gotHeader, "k")
	}
}

func TestGetErrorStatus(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))

		_, err := Get(context.Background(), srv.Client(), srv.URL, nil)
		srv.Close()

		var httpErr *Error
		if !errors.As(err, &httpErr) {
			t.Errorf("status %d: error = %v, want *Error", c.status, err)
			continue
		}
		if httpErr.StatusCode != c.status {
			t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, c.status)
		}
		if httpErr.Transient() != c.transient {
			t.Errorf("status %d: Transient() = %v, want %v", c.status, httpErr.Transient(), c.transient)
		}
	}
}

func TestGetContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Get(ctx, srv.Client(), srv.URL, nil); err == nil {
		t.Error("Get with canceled context succeeded")
	}
}
