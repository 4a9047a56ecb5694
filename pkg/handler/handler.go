// Package handler implements the Create, Read, Update, and Delete
// transitions of the Example::Monitoring::Website resource.
//
// Every transition builds a fresh model.Monitor from the request, checks it
// against the previous state before any network call, resolves the API key
// through a credentials.Relay scoped to the invocation, and returns a new
// value as the result. The handler keeps no per-invocation state.
//
// Create, Read (missing identifier), and Delete report failures as errors.
// Update reports control-plane failures as a FAILED progress event with a
// nil error, and Read does the same once the identifier is known. Callers
// branch on the difference.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/monitor-provider/pkg/credentials"
	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
	"github.com/openfroyo/monitor-provider/pkg/policy"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// APIClient is the subset of the control-plane client the handler uses.
type APIClient interface {
	CreateMonitor(ctx context.Context, apiKey string, m model.Monitor) (string, error)
	FetchMonitor(ctx context.Context, apiKey, location string) (*model.Monitor, error)
	GetMonitor(ctx context.Context, apiKey, id string) (*model.Monitor, error)
	ReplaceMonitor(ctx context.Context, apiKey, id string, m model.Monitor) error
	DeleteMonitor(ctx context.Context, apiKey, id string) error
}

// Admitter evaluates admission policies for a monitor about to be written.
type Admitter interface {
	Evaluate(ctx context.Context, in policy.Input) (*policy.Result, error)
}

// MonitorHandler reconciles website monitors against the control plane.
type MonitorHandler struct {
	client   APIClient
	admitter Admitter
	logger   *telemetry.Logger
}

var _ engine.ResourceHandler = (*MonitorHandler)(nil)

// Option customises a MonitorHandler.
type Option func(*MonitorHandler)

// WithAdmitter checks every Create and Update target against a.
func WithAdmitter(a Admitter) Option {
	return func(h *MonitorHandler) {
		h.admitter = a
	}
}

// New creates a handler. A nil telemetry value disables logging.
func New(client APIClient, tel *telemetry.Telemetry, opts ...Option) *MonitorHandler {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	h := &MonitorHandler{
		client: client,
		logger: tel.Logger.NewComponentLogger("handler").WithTypeName(model.TypeName),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create provisions a new monitor and returns it with its assigned Id.
func (h *MonitorHandler) Create(ctx context.Context, req *engine.Request) (*engine.ProgressEvent, error) {
	logger := h.requestLogger(ctx, req)

	desired, err := parseState(req.DesiredResourceState, "desired")
	if err != nil {
		return nil, err
	}
	logRequest(logger, desired)

	if desired.HasID() {
		return nil, engine.NewInvalidRequest(fmt.Sprintf("Read only property [%s] cannot be provided by the user.", model.PropID))
	}
	if err := desired.ValidateForCreate(); err != nil {
		return nil, engine.NewInvalidRequest(err.Error())
	}

	target := desired.WithDefaultFrequency().WithServerDefaults()
	if err := h.admit(ctx, logger, policy.Input{Action: engine.ActionCreate, Monitor: target}); err != nil {
		return nil, err
	}

	relay := credentials.ForRequest(req)
	key, err := resolveKey(ctx, relay, desired.APIKey)
	if err != nil {
		return nil, err
	}
	logger.Zerolog().Debug().Object("credentials", relay).Msg("resolved api key")

	location, err := h.client.CreateMonitor(ctx, key, target)
	if err != nil {
		logger.WithError(err).Warn("create monitor call failed")
		return nil, engine.AsHandlerError(err)
	}
	relay.Remember(key)

	key, err = resolveKey(ctx, relay, desired.APIKey)
	if err != nil {
		return nil, err
	}
	created, err := h.client.FetchMonitor(ctx, key, location)
	if err != nil {
		logger.WithError(err).Warn("fetch created monitor call failed")
		return nil, engine.AsHandlerError(err)
	}
	if !created.HasID() {
		return nil, engine.NewInternalFailure(fmt.Sprintf("monitor at %s has no id", location), nil)
	}

	result := relay.Redact(target.WithID(created.ID))
	annotateSpan(ctx, result.ID)
	return h.success(logger, req, result)
}

// Read returns the current state of an existing monitor.
func (h *MonitorHandler) Read(ctx context.Context, req *engine.Request) (*engine.ProgressEvent, error) {
	logger := h.requestLogger(ctx, req)

	desired, err := parseState(req.DesiredResourceState, "desired")
	if err != nil {
		return nil, err
	}
	logRequest(logger, desired)

	if !desired.HasID() {
		return nil, engine.NewNotFound(model.TypeName, identifierOf(req, desired))
	}
	annotateSpan(ctx, desired.ID)

	relay := credentials.ForRequest(req)
	key, err := resolveKey(ctx, relay, desired.APIKey)
	if err != nil {
		return nil, err
	}

	current, err := h.client.GetMonitor(ctx, key, desired.ID)
	if err != nil {
		logger.WithError(err).Warn("get monitor call failed")
		return h.failed(logger, req, err), nil
	}

	result := current.
		WithFallback(desired).
		WithFallback(serverDefaults())
	return h.success(logger, req, relay.Redact(result))
}

// Update replaces an existing monitor. Name and Id cannot change.
func (h *MonitorHandler) Update(ctx context.Context, req *engine.Request) (*engine.ProgressEvent, error) {
	logger := h.requestLogger(ctx, req)

	desired, err := parseState(req.DesiredResourceState, "desired")
	if err != nil {
		return nil, err
	}
	previous, err := parseState(req.PreviousResourceState, "previous")
	if err != nil {
		return nil, err
	}
	logRequest(logger, desired)

	if !desired.HasID() {
		return nil, engine.NewNotFound(model.TypeName, identifierOf(req, desired))
	}
	if desired.ID != previous.ID {
		logger.Zerolog().Info().Str("new", desired.ID).Str("old", previous.ID).Msg("identifier does not match saved resource")
		return nil, engine.NewNotUpdatable(fmt.Sprintf("Read only property [%s] cannot be updated.", model.PropID))
	}
	if desired.Name != previous.Name {
		logger.Zerolog().Info().Str("new", desired.Name).Str("old", previous.Name).Msg("name does not match saved resource")
		return nil, engine.NewNotUpdatable(fmt.Sprintf("Create only property [%s] cannot be updated.", model.PropName))
	}
	if err := desired.Validate(); err != nil {
		return nil, engine.NewInvalidRequest(err.Error())
	}
	annotateSpan(ctx, previous.ID)

	// Server-defaulted fields are overwritten on every update, matching Create.
	target := desired.WithDefaultFrequency().WithServerDefaults()
	if err := h.admit(ctx, logger, policy.Input{Action: engine.ActionUpdate, Monitor: target, Previous: &previous}); err != nil {
		return nil, err
	}

	relay := credentials.ForRequest(req)
	key, err := resolveKey(ctx, relay, desired.APIKey)
	if err != nil {
		return nil, err
	}

	if err := h.client.ReplaceMonitor(ctx, key, previous.ID, target); err != nil {
		logger.WithError(err).Warn("replace monitor call failed")
		return h.failed(logger, req, err), nil
	}

	return h.success(logger, req, relay.Redact(target.WithID(previous.ID)))
}

// Delete removes an existing monitor.
func (h *MonitorHandler) Delete(ctx context.Context, req *engine.Request) (*engine.ProgressEvent, error) {
	logger := h.requestLogger(ctx, req)

	desired, err := parseState(req.DesiredResourceState, "desired")
	if err != nil {
		return nil, err
	}
	logRequest(logger, desired)

	if !desired.HasID() {
		return nil, engine.NewNotFound(model.TypeName, identifierOf(req, desired))
	}
	annotateSpan(ctx, desired.ID)

	relay := credentials.ForRequest(req)
	key, err := resolveKey(ctx, relay, desired.APIKey)
	if err != nil {
		return nil, err
	}

	if err := h.client.DeleteMonitor(ctx, key, desired.ID); err != nil {
		logger.WithError(err).Warn("delete monitor call failed")
		return nil, engine.AsHandlerError(err)
	}

	event := engine.Success(nil)
	event.CallbackContext = req.CallbackContext
	logProgress(logger, event)
	return event, nil
}

func (h *MonitorHandler) requestLogger(ctx context.Context, req *engine.Request) *telemetry.Logger {
	logger := h.logger.WithInvocation(req.ClientRequestToken, string(req.Action))
	if req.LogicalResourceIdentifier != "" {
		logger = logger.WithResourceID(req.LogicalResourceIdentifier)
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		logger = logger.WithField("trace_id", span.SpanContext().TraceID().String())
	}
	return logger
}

func (h *MonitorHandler) success(logger *telemetry.Logger, req *engine.Request, m model.Monitor) (*engine.ProgressEvent, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, engine.NewInternalFailure("failed to encode resource model", err)
	}
	event := engine.Success(data)
	event.CallbackContext = req.CallbackContext
	logProgress(logger, event)
	return event, nil
}

func (h *MonitorHandler) failed(logger *telemetry.Logger, req *engine.Request, err error) *engine.ProgressEvent {
	event := engine.FailedFromError(err)
	event.CallbackContext = req.CallbackContext
	logProgress(logger, event)
	return event
}

// admit runs the admission policies. Warnings are logged; blocking
// violations become InvalidRequest.
func (h *MonitorHandler) admit(ctx context.Context, logger *telemetry.Logger, in policy.Input) error {
	if h.admitter == nil {
		return nil
	}
	result, err := h.admitter.Evaluate(ctx, in)
	if err != nil {
		return engine.NewInternalFailure("policy evaluation failed", err)
	}
	for _, w := range result.Warnings {
		logger.Zerolog().Warn().Str("policy", w.Policy).Str("property", w.Property).Msg(w.Message)
	}
	return result.Err()
}

func parseState(raw json.RawMessage, which string) (model.Monitor, error) {
	m, err := model.ParseMonitor(raw)
	if err != nil {
		return model.Monitor{}, engine.NewInvalidRequest(fmt.Sprintf("invalid %s resource state: %v", which, err))
	}
	return m, nil
}

func serverDefaults() model.Monitor {
	return model.Monitor{}.WithServerDefaults().WithDefaultFrequency()
}

func identifierOf(req *engine.Request, m model.Monitor) string {
	if req.LogicalResourceIdentifier != "" {
		return req.LogicalResourceIdentifier
	}
	return m.Name
}

// resolveKey resolves the API key and records where it came from on the
// invocation span.
func resolveKey(ctx context.Context, relay *credentials.Relay, desiredKey string) (string, error) {
	key, err := relay.Resolve(desiredKey)
	trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrCredentialSource.String(string(relay.Source())))
	return key, err
}

func annotateSpan(ctx context.Context, id string) {
	trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrResourceID.String(id))
}

func logRequest(logger *telemetry.Logger, desired model.Monitor) {
	state, err := json.Marshal(desired.WithoutSecrets())
	if err != nil {
		return
	}
	logger.Zerolog().Debug().RawJSON("desired_state", state).Msg("request")
}

func logProgress(logger *telemetry.Logger, event *engine.ProgressEvent) {
	e := logger.Zerolog().Debug().Str("status", string(event.Status))
	if event.ErrorCode != "" {
		e = e.Str("error_code", string(event.ErrorCode))
	}
	if len(event.ResourceModel) > 0 {
		e = e.RawJSON("resource_model", event.ResourceModel)
	}
	e.Msg("progress")
}
