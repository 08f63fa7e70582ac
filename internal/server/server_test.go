package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rostermap/internal/model"
	"github.com/sells-group/rostermap/internal/render"
	"github.com/sells-group/rostermap/internal/scheduler"
	"github.com/sells-group/rostermap/pkg/geocode"
)

type fakeSyncer struct {
	report scheduler.Report
	err    error
	state  scheduler.State
	ran    int
}

func (f *fakeSyncer) RunOnce(context.Context) (scheduler.Report, error) {
	f.ran++
	return f.report, f.err
}

func (f *fakeSyncer) State() scheduler.State { return f.state }

func (f *fakeSyncer) LastReport() (scheduler.Report, bool) {
	if f.ran == 0 {
		return scheduler.Report{}, false
	}
	return f.report, true
}

func (f *fakeSyncer) Skipped() int64 { return 2 }

type fakeEntities struct {
	list        []model.Entity
	invalidated []string
}

func (f *fakeEntities) Snapshot() []model.Entity { return f.list }

func (f *fakeEntities) Get(id string) (model.Entity, bool) {
	for _, e := range f.list {
		if e.ID == id {
			return e, true
		}
	}
	return model.Entity{}, false
}

func (f *fakeEntities) Invalidate(id string) bool {
	if _, ok := f.Get(id); !ok {
		return false
	}
	f.invalidated = append(f.invalidated, id)
	return true
}

type fakeStats struct{}

func (fakeStats) Stats() geocode.Stats { return geocode.Stats{Hits: 4, Requests: 3, Matched: 2, Failed: 1} }

type testEnv struct {
	syncer   *fakeSyncer
	entities *fakeEntities
	layer    *render.Layer
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		syncer: &fakeSyncer{report: scheduler.Report{CycleID: "c1", Records: 2}},
		entities: &fakeEntities{list: []model.Entity{
			{ID: "1", Name: "Alon", Status: model.StatusEnRoute, Coordinates: &model.Coordinates{Lat: 32, Lon: 34.9}},
			{ID: "2", Name: "Rimon", Status: model.StatusUnknown},
		}},
		layer: render.NewLayer(),
	}
	env.layer.UpsertMarker("1", model.Coordinates{Lat: 32, Lon: 34.9}, render.Marker{Status: model.StatusEnRoute})

	s, err := New(Deps{
		Syncer:   env.syncer,
		Entities: env.entities,
		Layer:    env.layer,
		Geocoder: fakeStats{},
	}, Options{Map: MapOptions{Title: "Test Map", TileURL: "https://tiles.example/{z}/{x}/{y}.png", Zoom: 8}})
	require.NoError(t, err)
	env.handler = s.Routes()
	return env
}

func (e *testEnv) do(method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "<title>Test Map</title>")
	assert.Contains(t, body, "markers.geojson")
	assert.Contains(t, body, "30000")
	assert.Contains(t, body, "tiles.example")
}

func TestMarkers_ETag(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/markers.geojson", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 1)

	w = env.do(http.MethodGet, "/markers.geojson", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)

	env.layer.RemoveMarker("1")
	w = env.do(http.MethodGet, "/markers.geojson", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListEntities(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/entities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []model.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = env.do(http.MethodGet, "/entities?renderable=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var unresolved []model.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unresolved))
	require.Len(t, unresolved, 1)
	assert.Equal(t, "2", unresolved[0].ID)

	w = env.do(http.MethodGet, "/entities?renderable=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEntity(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/entities/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Alon"`)

	w = env.do(http.MethodGet, "/entities/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/entities/1/invalidate", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"1"}, env.entities.invalidated)

	w = env.do(http.MethodPost, "/entities/404/invalidate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSync(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cycle_id":"c1"`)

	env.syncer.err = scheduler.ErrCycleInProgress
	w = env.do(http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	env.syncer.err = errors.New("roster: source unavailable")
	env.syncer.report.Stale = true
	w = env.do(http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"stale":true`)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, int64(2), resp.Skipped)
	assert.Nil(t, resp.LastReport)
	require.NotNil(t, resp.Geocode)
	assert.Equal(t, int64(4), resp.Geocode.Hits)

	env.do(http.MethodPost, "/sync", nil)
	w = env.do(http.MethodGet, "/status", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastReport)
	assert.Equal(t, "c1", resp.LastReport.CycleID)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/health", map[string]string{"Origin": "https://example.org"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "required"))
}
