package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/monitorapi"
)

// fakeControlPlane is an in-memory /v3/monitors endpoint that records
// every call it receives.
type fakeControlPlane struct {
	mu       sync.Mutex
	monitors map[string]monitorapi.MonitorPayload
	calls    []string
	apiKeys  []string
	failWith int
	nextID   int
}

func (f *fakeControlPlane) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.apiKeys = append(f.apiKeys, r.Header.Get(monitorapi.HeaderAPIKey))

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/v3/monitors"), "/")

	switch {
	case r.Method == http.MethodPost && id == "":
		var p monitorapi.MonitorPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		for _, existing := range f.monitors {
			if existing.Name == p.Name {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		f.nextID++
		p.ID = fmt.Sprintf("m-%d", f.nextID)
		f.monitors[p.ID] = p
		w.Header().Set("Location", "/v3/monitors/"+p.ID)
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodGet && id != "":
		p, ok := f.monitors[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(p)

	case r.Method == http.MethodPut && id != "":
		if _, ok := f.monitors[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var p monitorapi.MonitorPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		p.ID = id
		f.monitors[id] = p
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete && id != "":
		if _, ok := f.monitors[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.monitors, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeControlPlane) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeControlPlane) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeControlPlane) recordedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apiKeys...)
}

func (f *fakeControlPlane) seed(p monitorapi.MonitorPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitors[p.ID] = p
}

func (f *fakeControlPlane) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = status
}

func newHarness(t *testing.T, opts ...Option) (*MonitorHandler, *fakeControlPlane) {
	t.Helper()

	fake := &fakeControlPlane{monitors: make(map[string]monitorapi.MonitorPayload)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := monitorapi.NewClient(monitorapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	return New(client, nil, opts...), fake
}

func request(action engine.Action, desired string) *engine.Request {
	return &engine.Request{
		Action:               action,
		TypeName:             "Example::Monitoring::Website",
		ClientRequestToken:   "token-" + strings.ToLower(string(action)),
		DesiredResourceState: json.RawMessage(desired),
	}
}

func decodeModel(t *testing.T, event *engine.ProgressEvent) map[string]interface{} {
	t.Helper()
	require.NotNil(t, event)
	require.NotEmpty(t, event.ResourceModel)

	var props map[string]interface{}
	require.NoError(t, json.Unmarshal(event.ResourceModel, &props))
	return props
}
