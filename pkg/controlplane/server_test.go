package controlplane_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/monitor-provider/pkg/controlplane"
	"github.com/openfroyo/monitor-provider/pkg/monitorapi"
	"github.com/openfroyo/monitor-provider/pkg/stores"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

const testKey = "simulator-key-0001"

func newStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSimulator(t *testing.T, cfg controlplane.Config, tel *telemetry.Telemetry) (*httptest.Server, *stores.SQLiteStore) {
	t.Helper()

	store := newStore(t)
	srv := httptest.NewServer(controlplane.NewServer(store, cfg, tel))
	t.Cleanup(srv.Close)
	return srv, store
}

func call(t *testing.T, srv *httptest.Server, method, path, key string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(monitorapi.HeaderAPIKey, key)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func sitePayload(name string) monitorapi.MonitorPayload {
	return monitorapi.MonitorPayload{Name: name, URI: "https://" + name + ".example.org"}
}

func TestHealth(t *testing.T) {
	srv, _ := newSimulator(t, controlplane.Config{}, nil)

	resp, body := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)
}

func TestAPIKeyEnforcement(t *testing.T) {
	srv, _ := newSimulator(t, controlplane.Config{APIKeys: []string{testKey}}, nil)

	resp, _ := call(t, srv, http.MethodGet, "/v3/monitors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/v3/monitors", "someone-else", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/v3/monitors", testKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnyKeyAcceptedWhenNoneConfigured(t *testing.T) {
	srv, _ := newSimulator(t, controlplane.Config{}, nil)

	resp, _ := call(t, srv, http.MethodGet, "/v3/monitors", "anything", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMonitorResource(t *testing.T) {
	srv, store := newSimulator(t, controlplane.Config{}, nil)

	resp, body := call(t, srv, http.MethodPost, "/v3/monitors", testKey, sitePayload("homepage"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/v3/monitors/"), location)

	var created monitorapi.MonitorPayload
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/v3/monitors/"+created.ID, location)
	assert.Equal(t, "SIMPLE", created.Type)
	assert.Equal(t, "MUTED", created.Status)
	assert.Equal(t, []string{"region-a", "region-b"}, created.Locations)
	require.NotNil(t, created.SLAThreshold)
	assert.Equal(t, 7.0, *created.SLAThreshold)

	t.Run("duplicate name is a bad request", func(t *testing.T) {
		resp, _ := call(t, srv, http.MethodPost, "/v3/monitors", testKey, sitePayload("homepage"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get", func(t *testing.T) {
		resp, body := call(t, srv, http.MethodGet, location, testKey, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got monitorapi.MonitorPayload
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "homepage", got.Name)
		assert.Equal(t, "https://homepage.example.org", got.URI)
	})

	t.Run("replace", func(t *testing.T) {
		update := sitePayload("homepage")
		update.URI = "https://moved.example.org"
		update.Status = "ENABLED"
		resp, _ := call(t, srv, http.MethodPut, location, testKey, update)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		record, err := store.GetMonitor(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://moved.example.org", record.URI)
		assert.Equal(t, "ENABLED", record.Status)
	})

	t.Run("replace with foreign id is rejected", func(t *testing.T) {
		update := sitePayload("homepage")
		update.ID = "other"
		resp, _ := call(t, srv, http.MethodPut, location, testKey, update)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		resp, body := call(t, srv, http.MethodGet, "/v3/monitors?limit=10", testKey, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), created.ID)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := call(t, srv, http.MethodDelete, location, testKey, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = call(t, srv, http.MethodGet, location, testKey, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = call(t, srv, http.MethodDelete, location, testKey, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = call(t, srv, http.MethodPut, location, testKey, sitePayload("homepage"))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCreateRejectsBadPayloads(t *testing.T) {
	srv, _ := newSimulator(t, controlplane.Config{}, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing uri", body: monitorapi.MonitorPayload{Name: "x"}},
		{name: "id supplied", body: monitorapi.MonitorPayload{ID: "m-1", Name: "x", URI: "https://x.example.org"}},
		{name: "not an object", body: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := call(t, srv, http.MethodPost, "/v3/monitors", testKey, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		})
	}
}

func TestListRejectsBadPagination(t *testing.T) {
	srv, _ := newSimulator(t, controlplane.Config{}, nil)

	resp, _ := call(t, srv, http.MethodGet, "/v3/monitors?limit=0", testKey, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/v3/monitors?offset=-1", testKey, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAuditTrailMasksKeys(t *testing.T) {
	srv, store := newSimulator(t, controlplane.Config{}, nil)

	resp, _ := call(t, srv, http.MethodPost, "/v3/monitors", testKey, sitePayload("homepage"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = call(t, srv, http.MethodPost, "/v3/monitors", testKey, sitePayload("homepage"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = call(t, srv, http.MethodGet, "/v3/monitors/missing", testKey, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	entries, err := store.ListAuditEntries(context.Background(), nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for _, e := range entries {
		assert.NotContains(t, e.Actor, testKey)
		assert.Equal(t, "****0001", e.Actor)
	}

	assert.Equal(t, controlplane.RouteGetMonitor, entries[0].Operation)
	assert.Equal(t, http.StatusNotFound, entries[0].StatusCode)
	require.NotNil(t, entries[0].MonitorID)
	assert.Equal(t, "missing", *entries[0].MonitorID)

	assert.Equal(t, http.StatusBadRequest, entries[1].StatusCode)
	require.NotNil(t, entries[1].Details)
	assert.Equal(t, "duplicate_name", *entries[1].Details)

	assert.Equal(t, controlplane.RouteCreateMonitor, entries[2].Operation)
	require.NotNil(t, entries[2].MonitorID)

	resp, body := call(t, srv, http.MethodGet, "/v3/audit?operation=create_monitor", testKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Entries []stores.AuditEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed.Entries, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	require.NoError(t, err)
	tel := telemetry.NewNop()
	tel.Metrics = metrics

	srv, _ := newSimulator(t, controlplane.Config{}, tel)

	resp, _ := call(t, srv, http.MethodPost, "/v3/monitors", testKey, sitePayload("homepage"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := call(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `api_calls_total{operation="create_monitor",status_code="201"} 1`)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	store := newStore(t)
	server := controlplane.NewServer(store, controlplane.Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}
