package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "schoolcal/internal/errors"
)

const tinyFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func TestFetchUsesConditionalCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(tinyFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "f1", DeptID: "dept-1", URL: srv.URL + "/feed.ics?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || string(first.Body) != tinyFeed {
		t.Fatalf("first = %+v", first)
	}

	second, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || string(second.Body) != tinyFeed {
		t.Fatalf("second = %+v", second)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestFetchFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(tinyFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "f1", URL: srv.URL}
	if _, err := f.FetchOne(context.Background(), src); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if !res.FromCache {
		t.Fatal("expected cached body")
	}
}

func TestFetchAllReportsPerFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(tinyFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "bad", URL: srv.URL + "/bad"},
		{ID: "good", URL: srv.URL + "/good"},
		{ID: "empty"},
	})
	if len(results) != 1 || results[0].Source.ID != "good" {
		t.Fatalf("results = %+v", results)
	}
	if len(errs) != 2 {
		t.Fatalf("errs = %v", errs)
	}
	for _, err := range errs {
		if !errors.Is(err, apperrors.ErrFetch) {
			t.Fatalf("expected fetch error, got %v", err)
		}
	}
}

func TestRedactURL(t *testing.T) {
	tests := map[string]string{
		"https://calendar.example.com/private/abc.ics?token=1": "https://calendar.example.com/...(redacted)",
		"not a url": "ics://...(redacted)",
	}
	for in, want := range tests {
		if got := redactURL(in); got != want {
			t.Fatalf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}
