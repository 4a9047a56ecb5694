package monitorapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second, UserAgent: "test-agent"}, opts...)
	require.NoError(t, err)
	return c, srv
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, base := range []string{"", "   ", "ftp://example.com", "://bad"} {
		_, err := NewClient(Config{BaseURL: base})
		assert.Error(t, err, "base %q", base)
	}
}

func TestCreateMonitorSendsHeadersAndBody(t *testing.T) {
	var got MonitorPayload
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/monitors", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "key-1", r.Header.Get(HeaderAPIKey))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NotContains(t, string(body), "key-1")
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Location", "/v3/monitors/m-1")
		w.WriteHeader(http.StatusCreated)
	})

	m := model.Monitor{Name: "shop", URI: "https://shop.example.com", APIKey: "key-1"}.
		WithServerDefaults().
		WithDefaultFrequency()

	location, err := c.CreateMonitor(context.Background(), "key-1", m)
	require.NoError(t, err)
	assert.Equal(t, "/v3/monitors/m-1", location)

	assert.Equal(t, "shop", got.Name)
	assert.Equal(t, "https://shop.example.com", got.URI)
	assert.Equal(t, model.KindSimple, got.Type)
	assert.Equal(t, model.StatusMuted, got.Status)
	assert.Equal(t, model.DefaultLocations(), got.Locations)
	assert.Equal(t, model.DefaultFrequency, *got.Frequency)
	assert.Equal(t, model.DefaultSLAThreshold, *got.SLAThreshold)
	assert.Empty(t, got.ID)
}

func TestCreateMonitorRequiresLocation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	_, err := c.CreateMonitor(context.Background(), "k", model.Monitor{Name: "shop"})
	require.Error(t, err)
	assert.True(t, engine.IsInternalFailure(err))
}

func TestFetchMonitorResolvesRelativeLocation(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/monitors/m-7", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"m-7","name":"shop","uri":"https://shop.example.com","type":"SIMPLE","status":"MUTED","locations":["region-a"],"frequency":5,"slaThreshold":7}`))
	})

	for _, location := range []string{"/v3/monitors/m-7", srv.URL + "/v3/monitors/m-7"} {
		m, err := c.FetchMonitor(context.Background(), "k", location)
		require.NoError(t, err, location)
		assert.Equal(t, "m-7", m.ID)
		assert.Equal(t, "shop", m.Name)
		assert.Equal(t, model.KindSimple, m.Kind)
		assert.Equal(t, []string{"region-a"}, m.Locations)
		assert.Equal(t, 7.0, *m.SLAThreshold)
	}
}

func TestEmptyBodyIsEmptyObject(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	m, err := c.GetMonitor(context.Background(), "k", "m-1")
	require.NoError(t, err)
	assert.Equal(t, model.Monitor{}, *m)
}

func TestMalformedBodyIsInternalFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	})

	_, err := c.GetMonitor(context.Background(), "k", "m-1")
	assert.True(t, engine.IsInternalFailure(err))

	_, err = c.FetchMonitor(context.Background(), "k", "/v3/monitors/m-2")
	herr := engine.AsHandlerError(err)
	require.NotNil(t, herr)
	assert.Equal(t, model.TypeName, herr.TypeName)
	assert.Equal(t, "/v3/monitors/m-2", herr.Identifier)
	assert.Equal(t, http.StatusOK, herr.StatusCode)
}

func TestReplaceAndDeleteUseIdentifierPath(t *testing.T) {
	var calls []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var p MonitorPayload
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			assert.Equal(t, "m-1", p.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.ReplaceMonitor(context.Background(), "k", "m-1", model.Monitor{Name: "shop"}))
	require.NoError(t, c.DeleteMonitor(context.Background(), "k", "m-1"))
	assert.Equal(t, []string{"PUT /v3/monitors/m-1", "DELETE /v3/monitors/m-1"}, calls)
}

func TestStatusClassificationAppliesToEveryCall(t *testing.T) {
	tests := []struct {
		status int
		code   engine.HandlerErrorCode
	}{
		{status: http.StatusBadRequest, code: engine.ErrCodeAlreadyExists},
		{status: http.StatusNotFound, code: engine.ErrCodeNotFound},
		{status: http.StatusUnauthorized, code: engine.ErrCodeInternalFailure},
		{status: http.StatusConflict, code: engine.ErrCodeInternalFailure},
		{status: http.StatusInternalServerError, code: engine.ErrCodeInternalFailure},
		{status: http.StatusFound, code: engine.ErrCodeInternalFailure},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			})
			ctx := context.Background()

			_, err := c.CreateMonitor(ctx, "k", model.Monitor{Name: "shop"})
			assert.Equal(t, tt.code, engine.CodeOf(err), "create")

			_, err = c.GetMonitor(ctx, "k", "m-1")
			assert.Equal(t, tt.code, engine.CodeOf(err), "get")

			err = c.ReplaceMonitor(ctx, "k", "m-1", model.Monitor{})
			assert.Equal(t, tt.code, engine.CodeOf(err), "replace")

			err = c.DeleteMonitor(ctx, "k", "m-1")
			assert.Equal(t, tt.code, engine.CodeOf(err), "delete")

			he := engine.AsHandlerError(err)
			assert.Equal(t, tt.status, he.StatusCode)
		})
	}
}

func TestTransportErrorIsInternalFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	err = c.DeleteMonitor(context.Background(), "k", "m-1")
	require.Error(t, err)
	assert.True(t, engine.IsInternalFailure(err))
	assert.True(t, engine.IsRetryable(err))
}

func TestClientRecordsMetrics(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	require.NoError(t, err)
	tel := telemetry.NewNop()
	tel.Metrics = metrics

	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}, WithTelemetry(tel))

	_, _ = c.GetMonitor(context.Background(), "k", "missing")

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	count, err := testutil.GatherAndCount(metrics.Registry(), "monitor_provider_api_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
