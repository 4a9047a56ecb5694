package controlplane

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
	"github.com/openfroyo/monitor-provider/pkg/monitorapi"
	"github.com/openfroyo/monitor-provider/pkg/policy"
	"github.com/openfroyo/monitor-provider/pkg/stores"
)

type monitorList struct {
	Monitors []monitorapi.MonitorPayload `json:"monitors"`
}

type auditList struct {
	Entries []*stores.AuditEntry `json:"entries"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	if payload.ID != "" {
		writeError(w, http.StatusUnprocessableEntity, "id_not_allowed")
		return
	}

	record := recordFromPayload(uuid.NewString(), payload)
	if !s.admit(w, r, engine.ActionCreate, record, nil) {
		return
	}
	if err := s.store.CreateMonitor(r.Context(), record); err != nil {
		s.writeStoreError(w, err)
		return
	}

	annotate(w, "", record.ID)
	w.Header().Set("Location", monitorsPath+"/"+url.PathEscape(record.ID))
	writeJSON(w, http.StatusCreated, payloadFromRecord(record))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	records, err := s.store.ListMonitors(r.Context(), limit, offset)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	out := monitorList{Monitors: make([]monitorapi.MonitorPayload, 0, len(records))}
	for _, rec := range records {
		out.Monitors = append(out.Monitors, payloadFromRecord(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetMonitor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payloadFromRecord(record))
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	if payload.ID != "" && payload.ID != id {
		writeError(w, http.StatusUnprocessableEntity, "id_mismatch")
		return
	}

	existing, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	record := recordFromPayload(id, payload)
	record.CreatedAt = existing.CreatedAt
	if !s.admit(w, r, engine.ActionUpdate, record, existing) {
		return
	}
	if err := s.store.ReplaceMonitor(r.Context(), record); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payloadFromRecord(record))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMonitor(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	var operation *string
	if op := strings.TrimSpace(r.URL.Query().Get("operation")); op != "" {
		operation = &op
	}

	entries, err := s.store.ListAuditEntries(r.Context(), operation, limit, offset)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auditList{Entries: entries})
}

// admit evaluates the admission policies and writes the rejection itself
// when the monitor is not admitted.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, action engine.Action, record, previous *stores.MonitorRecord) bool {
	if s.admitter == nil {
		return true
	}

	in := policy.Input{Action: action, Monitor: payloadFromRecord(record).Model()}
	if previous != nil {
		prev := payloadFromRecord(previous).Model()
		in.Previous = &prev
	}

	result, err := s.admitter.Evaluate(r.Context(), in)
	if err != nil {
		s.logger.WithError(err).Error("policy evaluation failed")
		writeError(w, http.StatusInternalServerError, "policy_evaluation_failed")
		return false
	}
	if result.Allowed {
		return true
	}

	messages := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		messages = append(messages, v.String())
	}
	annotate(w, "policy_violation: "+strings.Join(messages, "; "), "")
	writeJSON(w, http.StatusUnprocessableEntity, policyRejection{Error: "policy_violation", Violations: result.Violations})
	return false
}

type policyRejection struct {
	Error      string             `json:"error"`
	Violations []policy.Violation `json:"violations"`
}

// writeStoreError maps store failures onto the status codes the real
// control plane uses. A taken name is reported as 400.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stores.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, stores.ErrDuplicateName):
		writeError(w, http.StatusBadRequest, "duplicate_name")
	default:
		s.logger.WithError(err).Error("store operation failed")
		writeError(w, http.StatusInternalServerError, "store_failed")
	}
}

func decodePayload(w http.ResponseWriter, r *http.Request) (monitorapi.MonitorPayload, bool) {
	var payload monitorapi.MonitorPayload

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_body")
		return payload, false
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_json")
		return payload, false
	}
	if strings.TrimSpace(payload.Name) == "" || strings.TrimSpace(payload.URI) == "" {
		writeError(w, http.StatusUnprocessableEntity, "name_and_uri_required")
		return payload, false
	}
	return payload, true
}

func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "invalid_limit")
			return 0, 0, false
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "invalid_offset")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// recordFromPayload applies the control plane's server-side defaults to
// fields the caller left empty.
func recordFromPayload(id string, p monitorapi.MonitorPayload) *stores.MonitorRecord {
	record := &stores.MonitorRecord{
		ID:           id,
		Name:         p.Name,
		URI:          p.URI,
		Type:         p.Type,
		Status:       p.Status,
		Frequency:    p.Frequency,
		Locations:    append([]string(nil), p.Locations...),
		SLAThreshold: p.SLAThreshold,
	}
	if record.Type == "" {
		record.Type = model.KindSimple
	}
	if record.Status == "" {
		record.Status = model.StatusMuted
	}
	if len(record.Locations) == 0 {
		record.Locations = model.DefaultLocations()
	}
	if record.SLAThreshold == nil {
		record.SLAThreshold = model.Float64(model.DefaultSLAThreshold)
	}
	return record
}

func payloadFromRecord(rec *stores.MonitorRecord) monitorapi.MonitorPayload {
	return monitorapi.MonitorPayload{
		ID:           rec.ID,
		Name:         rec.Name,
		URI:          rec.URI,
		Type:         rec.Type,
		Frequency:    rec.Frequency,
		Status:       rec.Status,
		Locations:    rec.Locations,
		SLAThreshold: rec.SLAThreshold,
	}
}
