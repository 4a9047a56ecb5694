// Package controlplane is a local simulator of the monitoring control plane.
// It serves the /v3/monitors resource the provider talks to, persists
// monitors through a stores.Store and records an audit entry per request.
package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/openfroyo/monitor-provider/pkg/credentials"
	"github.com/openfroyo/monitor-provider/pkg/monitorapi"
	"github.com/openfroyo/monitor-provider/pkg/policy"
	"github.com/openfroyo/monitor-provider/pkg/stores"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// Route names double as audit operations and metric labels.
const (
	RouteCreateMonitor  = "create_monitor"
	RouteListMonitors   = "list_monitors"
	RouteGetMonitor     = "get_monitor"
	RouteReplaceMonitor = "replace_monitor"
	RouteDeleteMonitor  = "delete_monitor"
	RouteListAudit      = "list_audit"
)

const (
	monitorsPath   = "/v3/monitors"
	auditPath      = "/v3/audit"
	maxRequestSize = 1 << 20
	defaultLimit   = 100
)

// Admitter evaluates admission policies for a monitor about to be stored.
type Admitter interface {
	Evaluate(ctx context.Context, in policy.Input) (*policy.Result, error)
}

// Config configures a Server.
type Config struct {
	// APIKeys restricts access to the listed keys. When empty any
	// non-empty Api-Key header is accepted.
	APIKeys []string

	// Admitter, when set, rejects monitors that violate a blocking
	// policy with 422.
	Admitter Admitter
}

// Server is the simulator's HTTP handler.
type Server struct {
	store    stores.Store
	keys     map[string]struct{}
	admitter Admitter
	tel      *telemetry.Telemetry
	logger   *telemetry.Logger
	router   *mux.Router
}

// NewServer builds the router for store.
func NewServer(store stores.Store, cfg Config, tel *telemetry.Telemetry) *Server {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	s := &Server{
		store:    store,
		keys:     make(map[string]struct{}, len(cfg.APIKeys)),
		admitter: cfg.Admitter,
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("controlplane"),
	}
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			s.keys[k] = struct{}{}
		}
	}

	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", tel.Metrics.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.authenticate, s.audit)

	api.HandleFunc(monitorsPath, s.handleCreate).Methods(http.MethodPost).Name(RouteCreateMonitor)
	api.HandleFunc(monitorsPath, s.handleList).Methods(http.MethodGet).Name(RouteListMonitors)
	api.HandleFunc(monitorsPath+"/{id}", s.handleGet).Methods(http.MethodGet).Name(RouteGetMonitor)
	api.HandleFunc(monitorsPath+"/{id}", s.handleReplace).Methods(http.MethodPut).Name(RouteReplaceMonitor)
	api.HandleFunc(monitorsPath+"/{id}", s.handleDelete).Methods(http.MethodDelete).Name(RouteDeleteMonitor)
	api.HandleFunc(auditPath, s.handleListAudit).Methods(http.MethodGet).Name(RouteListAudit)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("control plane simulator listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("control plane simulator stopped")
	return nil
}

type apiKeyContextKey struct{}

func apiKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyContextKey{}).(string)
	return key
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(monitorapi.HeaderAPIKey))
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing_api_key")
			return
		}
		if len(s.keys) > 0 {
			if _, ok := s.keys[key]; !ok {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), apiKeyContextKey{}, key)))
	})
}

// audit runs inside authenticate, so every audited request carries a key.
func (s *Server) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		op := routeName(r)
		if op == RouteListAudit {
			return
		}
		entry := &stores.AuditEntry{
			Operation:  op,
			Actor:      credentials.Mask(apiKeyFrom(r.Context())),
			StatusCode: rec.status,
		}
		if id := rec.monitorID; id != "" {
			entry.MonitorID = &id
		} else if id := mux.Vars(r)["id"]; id != "" {
			entry.MonitorID = &id
		}
		if rec.detail != "" {
			detail := rec.detail
			entry.Details = &detail
		}
		if err := s.store.CreateAuditEntry(r.Context(), entry); err != nil {
			s.logger.WithError(err).WithField("operation", op).Warn("failed to record audit entry")
		}
	})
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := telemetry.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		op := routeName(r)
		if op != "" {
			s.tel.Metrics.RecordAPICall(op, rec.status, timer.Duration())
		}

		event := s.logger.Zerolog().Info()
		switch {
		case rec.status >= 500:
			event = s.logger.Zerolog().Error()
		case rec.status >= 400:
			event = s.logger.Zerolog().Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", timer.Duration()).
			Msg("request handled")
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// statusRecorder captures what the handlers wrote for logging and audit.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	detail    string
	monitorID string
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) note(detail, monitorID string) {
	if detail != "" {
		r.detail = detail
	}
	if monitorID != "" {
		r.monitorID = monitorID
	}
	if inner, ok := r.ResponseWriter.(*statusRecorder); ok {
		inner.note(detail, monitorID)
	}
}

func annotate(w http.ResponseWriter, detail, monitorID string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.note(detail, monitorID)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	annotate(w, code, "")
	writeJSON(w, status, errorBody{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
