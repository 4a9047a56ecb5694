package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// Dispatcher routes lifecycle invocations to the handler function
// registered for each action.
type Dispatcher struct {
	typeName string
	tel      *telemetry.Telemetry
	logger   *telemetry.Logger

	mu       sync.RWMutex
	handlers map[Action]HandlerFunc
}

// NewDispatcher creates a dispatcher for one resource type. A nil
// telemetry value disables logging, tracing, metrics, and events.
func NewDispatcher(typeName string, tel *telemetry.Telemetry) *Dispatcher {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &Dispatcher{
		typeName: typeName,
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("dispatcher").WithTypeName(typeName),
		handlers: make(map[Action]HandlerFunc),
	}
}

// TypeName returns the resource type served by the dispatcher.
func (d *Dispatcher) TypeName() string {
	return d.typeName
}

// Register binds a handler function to an action.
func (d *Dispatcher) Register(action Action, fn HandlerFunc) error {
	if err := action.Validate(); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("handler for %s is nil", action)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[action]; exists {
		return fmt.Errorf("handler for %s already registered", action)
	}
	d.handlers[action] = fn
	return nil
}

// RegisterHandler binds all four transitions of h.
func (d *Dispatcher) RegisterHandler(h ResourceHandler) error {
	table := map[Action]HandlerFunc{
		ActionCreate: h.Create,
		ActionRead:   h.Read,
		ActionUpdate: h.Update,
		ActionDelete: h.Delete,
	}
	for _, action := range Actions {
		if err := d.Register(action, table[action]); err != nil {
			return err
		}
	}
	return nil
}

// Actions returns the registered actions in dispatch order.
func (d *Dispatcher) Actions() []Action {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var actions []Action
	for _, a := range Actions {
		if _, ok := d.handlers[a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

// Invoke runs one lifecycle invocation and always returns a progress event.
// Errors returned by the handler become FAILED events carrying the error's
// code; panics become InternalFailure.
func (d *Dispatcher) Invoke(ctx context.Context, req *Request) (event *ProgressEvent) {
	if req == nil {
		return FailedFromError(NewInvalidRequest("request is required"))
	}
	// Defaults are filled on a copy; the caller's request is left as given.
	local := *req
	req = &local
	if req.TypeName == "" {
		req.TypeName = d.typeName
	}
	if req.ClientRequestToken == "" {
		req.ClientRequestToken = uuid.New().String()
	}

	action := string(req.Action)
	logger := d.logger.WithInvocation(req.ClientRequestToken, action)
	if req.LogicalResourceIdentifier != "" {
		logger = logger.WithResourceID(req.LogicalResourceIdentifier)
	}

	if req.TypeName != d.typeName {
		return FailedFromError(NewInvalidRequest(fmt.Sprintf("type %q is not handled by %q", req.TypeName, d.typeName)))
	}

	d.mu.RLock()
	fn, ok := d.handlers[req.Action]
	d.mu.RUnlock()
	if !ok {
		logger.Warn("no handler registered for action")
		return FailedFromError(NewInvalidRequest(fmt.Sprintf("no handler for action %q", action)))
	}

	ctx, span := d.tel.Tracer.StartInvocationSpan(ctx, d.typeName, action, req.ClientRequestToken)
	defer span.End()
	ctx = logger.WithContext(ctx)
	timer := telemetry.NewTimer()

	_ = d.tel.Events.PublishInvocationStarted(req.ClientRequestToken, action, req.LogicalResourceIdentifier)

	defer func() {
		if r := recover(); r != nil {
			event = FailedFromError(NewInternalFailure(fmt.Sprintf("handler panicked: %v", r), nil))
		}
		d.finish(req, event, timer, logger)
		span.SetAttributes(telemetry.AttrOperationStatus.String(string(event.Status)))
		if event.Status == OperationStatusFailed {
			span.SetAttributes(telemetry.AttrErrorCode.String(string(event.ErrorCode)))
			telemetry.RecordError(span, fmt.Errorf("%s", event.Message))
		} else {
			telemetry.RecordSuccess(span)
		}
	}()

	event, err := fn(ctx, req)
	switch {
	case err != nil:
		he := AsHandlerError(err)
		d.tel.Metrics.RecordError(string(he.Class), string(he.Code))
		logger.WithError(err).WithField("permanent", IsPermanent(he)).Warnf("%s failed with %s", action, he.Code)
		event = FailedFromError(he)
	case event == nil:
		event = FailedFromError(NewInternalFailure("handler returned no progress event", nil))
	}
	return event
}

func (d *Dispatcher) finish(req *Request, event *ProgressEvent, timer *telemetry.Timer, logger *telemetry.Logger) {
	action := string(req.Action)
	duration := timer.Duration()

	d.tel.Metrics.RecordInvocation(action, string(event.Status), string(event.ErrorCode), duration)

	if event.Status == OperationStatusFailed {
		_ = d.tel.Events.PublishInvocationFailed(req.ClientRequestToken, action, req.LogicalResourceIdentifier, string(event.ErrorCode), event.Message)
		logger.Zerolog().Info().
			Str("status", string(event.Status)).
			Str("error_code", string(event.ErrorCode)).
			Dur("duration", duration).
			Msg("invocation finished")
		return
	}

	_ = d.tel.Events.PublishInvocationCompleted(req.ClientRequestToken, action, req.LogicalResourceIdentifier, string(event.Status), duration)
	logger.Zerolog().Info().
		Str("status", string(event.Status)).
		Dur("duration", duration).
		Msg("invocation finished")
}
