// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/campusfeed/internal/events"
	"github.com/tomtom215/campusfeed/internal/preference"
	"github.com/tomtom215/campusfeed/internal/preference/storage"
)

type testServer struct {
	handler *Handler
	router  http.Handler
	repo    *storage.MemoryRepository
	updater *preference.Updater
}

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func newTestServer(t *testing.T, defaults []string, opts ...func(*testServer) HandlerOption) *testServer {
	t.Helper()
	ctx := context.Background()

	repo := storage.NewMemoryRepository()
	for _, s := range defaults {
		if err := repo.SetDefault(ctx, s, true); err != nil {
			t.Fatal(err)
		}
	}

	cfg := preference.DefaultConfig()
	cfg.Dimensions.TagDim = 4
	cfg.Dimensions.KeywordDim = 3
	cfg.Concurrency.RetryBackoff = 0

	store := preference.NewStore(repo, repo, cfg, zerolog.Nop())
	updater, err := preference.NewUpdater(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUpdater() error = %v", err)
	}
	ranker := preference.NewRanker(store, preference.NewScorer(cfg, zerolog.Nop()), zerolog.Nop())

	ts := &testServer{repo: repo, updater: updater}
	handlerOpts := make([]HandlerOption, 0, len(opts))
	for _, o := range opts {
		handlerOpts = append(handlerOpts, o(ts))
	}
	h, err := NewHandler(updater, ranker, zerolog.Nop(), handlerOpts...)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	t.Cleanup(h.Close)

	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.RateLimitDisabled = true
	ts.handler = h
	ts.router = NewRouter(h, NewChiMiddleware(mwCfg))
	return ts
}

func withFanOut(ts *testServer) HandlerOption {
	cfg := preference.DefaultFanOutConfig()
	cfg.RatePerSecond = 0
	return WithFanOut(preference.NewFanOut(ts.updater, ts.repo, cfg, zerolog.Nop()))
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewHandler_RequiresEngine(t *testing.T) {
	if _, err := NewHandler(nil, nil, zerolog.Nop()); err == nil {
		t.Error("NewHandler(nil, nil) expected error")
	}
}

func TestRank(t *testing.T) {
	ts := newTestServer(t, []string{"s1", "s2"})
	body := `{"candidates":[
		{"id":"a3","source_id":"s9"},
		{"id":"a2","source_id":"s2"},
		{"id":"a1","source_id":"s1","tags":["major"]}
	]}`

	rec, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/rank", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp RankResponse
	decodeData(t, env, &resp)
	got := make([]string, len(resp.Articles))
	for i, a := range resp.Articles {
		got[i] = a.ID
	}
	if strings.Join(got, ",") != "a1,a2,a3" {
		t.Errorf("order = %v, want a1,a2,a3", got)
	}
	if resp.Scores != nil {
		t.Error("scores returned without explain")
	}
	if env.Metadata.RequestID == "" {
		t.Error("metadata.request_id is empty")
	}

	_, env = ts.do(t, http.MethodPost, "/api/v1/users/u1/rank?explain=true", body)
	decodeData(t, env, &resp)
	if len(resp.Scores) != 3 {
		t.Fatalf("len(scores) = %d, want 3", len(resp.Scores))
	}
	if s := resp.Scores[0]; s.ArticleID != "a1" || !near(s.Total, 1.0) || !near(s.MajorTag, 0.5) {
		t.Errorf("top score = %+v, want a1 total 1.0", s)
	}
}

func TestRank_BadRequests(t *testing.T) {
	ts := newTestServer(t, []string{"s1"})

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode string
	}{
		{name: "malformed json", path: "/api/v1/users/u1/rank", body: `{"candidates":`, wantCode: ErrCodeBadRequest},
		{name: "missing candidates", path: "/api/v1/users/u1/rank", body: `{}`, wantCode: ErrCodeValidationFailed},
		{name: "candidate without source", path: "/api/v1/users/u1/rank", body: `{"candidates":[{"id":"a1"}]}`, wantCode: ErrCodeValidationFailed},
		{name: "user id with space", path: "/api/v1/users/a%20b/rank", body: `{"candidates":[]}`, wantCode: ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Status != "error" || env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	ts := newTestServer(t, []string{"s1"})

	steps := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusCreated},
		{http.MethodPost, http.StatusConflict},
		{http.MethodDelete, http.StatusOK},
		{http.MethodDelete, http.StatusNotFound},
	}
	for i, step := range steps {
		rec, _ := ts.do(t, step.method, "/api/v1/users/u1/subscriptions/s2", "")
		if rec.Code != step.want {
			t.Fatalf("step %d %s: status = %d, want %d", i, step.method, rec.Code, step.want)
		}
	}

	_, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/sources", "")
	var sources SourcesResponse
	decodeData(t, env, &sources)
	if strings.Join(sources.Sources, ",") != "s1" {
		t.Errorf("sources = %v, want [s1]", sources.Sources)
	}
}

func TestCandidateSources(t *testing.T) {
	ts := newTestServer(t, []string{"s2", "s1"})
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/users/u1/subscriptions/s3", ""); rec.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d", rec.Code)
	}

	_, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/sources", "")
	var resp SourcesResponse
	decodeData(t, env, &resp)
	if resp.UserID != "u1" || strings.Join(resp.Sources, ",") != "s1,s2,s3" {
		t.Errorf("resp = %+v, want s1,s2,s3", resp)
	}
}

func TestRecordAction(t *testing.T) {
	ts := newTestServer(t, []string{"s1", "s2"})

	rec, env := ts.do(t, http.MethodPost, "/api/v1/users/u1/actions",
		`{"kind":"favorite","article":{"id":"a1","source_id":"s1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ActionResponse
	decodeData(t, env, &resp)
	if resp.Kind != "favorite" || resp.ArticleID != "a1" {
		t.Errorf("resp = %+v", resp)
	}

	p, err := ts.updater.Store().Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.SourceWeights["s1"] <= 0.5 {
		t.Errorf("w(s1) = %v, want > 0.5 after favorite", p.SourceWeights["s1"])
	}

	rec, env = ts.do(t, http.MethodPost, "/api/v1/users/u1/actions",
		`{"kind":"share","article":{"id":"a1","source_id":"s1"}}`)
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("unknown kind: status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestPreferenceGetAndDelete(t *testing.T) {
	ts := newTestServer(t, []string{"s1"})

	if rec, _ := ts.do(t, http.MethodGet, "/api/v1/users/u1/preference", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET before create: status = %d, want 404", rec.Code)
	}
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/users/u1/subscriptions/s2", ""); rec.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d", rec.Code)
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/users/u1/preference", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var p preference.Preference
	decodeData(t, env, &p)
	if p.UserID != "u1" || len(p.TagVector) != 4 || !p.IsSubscribed("s2") {
		t.Errorf("preference = %+v", p)
	}

	if rec, _ := ts.do(t, http.MethodDelete, "/api/v1/users/u1/preference", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}
	if rec, _ := ts.do(t, http.MethodGet, "/api/v1/users/u1/preference", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete: status = %d, want 404", rec.Code)
	}
}

func TestDefaultSource_InProcessFanOut(t *testing.T) {
	ts := newTestServer(t, []string{"s1", "s2"}, withFanOut)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2"} {
		if _, err := ts.updater.Init(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/sources/s3/default", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp DefaultSourceResponse
	decodeData(t, env, &resp)
	if resp.JobID == "" || resp.Kind != string(preference.FanOutDefaultAdded) {
		t.Errorf("resp = %+v", resp)
	}
	ts.handler.Wait()

	for _, u := range []string{"u1", "u2"} {
		p, err := ts.updater.Store().Get(ctx, u)
		if err != nil {
			t.Fatal(err)
		}
		for _, src := range []string{"s1", "s2", "s3"} {
			if !near(p.SourceWeights[src], 1.0/3) {
				t.Errorf("%s: w(%s) = %v, want 1/3", u, src, p.SourceWeights[src])
			}
		}
	}

	_, env = ts.do(t, http.MethodGet, "/api/v1/sources/default", "")
	var listed map[string][]string
	decodeData(t, env, &listed)
	if strings.Join(listed["sources"], ",") != "s1,s2,s3" {
		t.Errorf("default sources = %v", listed["sources"])
	}

	if rec, _ := ts.do(t, http.MethodDelete, "/api/v1/sources/s3/default", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	ts.handler.Wait()
	p, _ := ts.updater.Store().Get(ctx, "u1")
	if p.SourceWeights.Has("s3") {
		t.Errorf("w(s3) still present after removal: %v", p.SourceWeights)
	}
}

func TestDefaultSource_Published(t *testing.T) {
	pub := &recordingPublisher{}
	ts := newTestServer(t, []string{"s1"}, func(*testServer) HandlerOption { return WithPublisher(pub) })

	rec, env := ts.do(t, http.MethodDelete, "/api/v1/sources/s1/default", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp DefaultSourceResponse
	decodeData(t, env, &resp)

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	e := pub.events[0]
	if e.Type != events.TypeDefaultSourceRemoved || e.SourceID != "s1" || e.EventID != resp.EventID {
		t.Errorf("event = %+v, response = %+v", e, resp)
	}

	pub.err = events.ErrPublisherClosed
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/sources/s2/default", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("closed publisher: status = %d, want 503", rec.Code)
	}
}

func TestDefaultSource_Unconfigured(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, env := ts.do(t, http.MethodPost, "/api/v1/sources/s1/default", "")
	if rec.Code != http.StatusServiceUnavailable || env.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestDefaultSource_AfterClose(t *testing.T) {
	ts := newTestServer(t, []string{"s1"}, withFanOut)
	ts.handler.Close()
	if rec, _ := ts.do(t, http.MethodPost, "/api/v1/sources/s2/default", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestExportPreferences(t *testing.T) {
	ts := newTestServer(t, []string{"s1"})
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := ts.updater.Init(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "everyone", want: 3},
		{name: "selected", query: "?user_id=u1,u3,missing", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := ts.do(t, http.MethodGet, "/api/v1/preferences/export"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
				t.Errorf("Content-Type = %q", ct)
			}
			lines := 0
			sc := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
			sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for sc.Scan() {
				var p preference.Preference
				if err := json.Unmarshal(sc.Bytes(), &p); err != nil {
					t.Fatalf("line %d: %v", lines, err)
				}
				lines++
			}
			if lines != tt.want {
				t.Errorf("exported %d records, want %d", lines, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		check      HealthCheck
		wantStatus int
		wantHealth string
	}{
		{name: "healthy", check: func(context.Context) error { return nil }, wantStatus: http.StatusOK, wantHealth: "healthy"},
		{name: "degraded", check: func(context.Context) error { return errors.New("badger closed") }, wantStatus: http.StatusServiceUnavailable, wantHealth: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil, func(*testServer) HandlerOption { return WithHealthCheck("storage", tt.check) })
			rec, env := ts.do(t, http.MethodGet, "/healthz", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			decodeData(t, env, &resp)
			if resp.Status != tt.wantHealth {
				t.Errorf("health = %q, want %q", resp.Status, tt.wantHealth)
			}
		})
	}
}

func TestRouter_FallbackRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/v1/nowhere", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown route: status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, env = ts.do(t, http.MethodPut, "/api/v1/users/u1/rank", "")
	if rec.Code != http.StatusMethodNotAllowed || env.Error == nil || env.Error.Code != ErrCodeMethodNotAllowed {
		t.Errorf("wrong method: status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "campusfeed_") {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}
