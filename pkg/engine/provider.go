package engine

import (
	"context"
	"encoding/json"
)

// ResourceHandler is the contract every resource type implements.
// Each method handles exactly one invocation for one resource instance.
//
// Handlers may report failure either by returning an error (hard failure)
// or by returning a progress event with OperationStatusFailed. Callers
// that branch on the difference must not collapse the two.
type ResourceHandler interface {
	// Create provisions the resource described by the desired state.
	Create(ctx context.Context, req *Request) (*ProgressEvent, error)

	// Read returns the current state of the resource.
	Read(ctx context.Context, req *Request) (*ProgressEvent, error)

	// Update converges the resource to the desired state.
	Update(ctx context.Context, req *Request) (*ProgressEvent, error)

	// Delete removes the resource.
	Delete(ctx context.Context, req *Request) (*ProgressEvent, error)
}

// HandlerFunc implements a single lifecycle transition.
type HandlerFunc func(ctx context.Context, req *Request) (*ProgressEvent, error)

// Credentials is the credentials context supplied by the orchestrator.
type Credentials struct {
	// APIKey is the control-plane key available to the invocation, if any.
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

// Request is one lifecycle invocation.
type Request struct {
	// Action is the requested transition.
	Action Action `json:"action" yaml:"action"`

	// TypeName is the resource type name.
	TypeName string `json:"typeName,omitempty" yaml:"typeName,omitempty"`

	// ClientRequestToken uniquely identifies the invocation.
	ClientRequestToken string `json:"clientRequestToken,omitempty" yaml:"clientRequestToken,omitempty"`

	// LogicalResourceIdentifier is the caller's name for the resource.
	LogicalResourceIdentifier string `json:"logicalResourceIdentifier,omitempty" yaml:"logicalResourceIdentifier,omitempty"`

	// DesiredResourceState is the declared target state.
	DesiredResourceState json.RawMessage `json:"desiredResourceState,omitempty" yaml:"-"`

	// PreviousResourceState is the last reconciled state (Update and Delete only).
	PreviousResourceState json.RawMessage `json:"previousResourceState,omitempty" yaml:"-"`

	// CallbackContext is opaque state carried between orchestrator retries.
	CallbackContext map[string]interface{} `json:"callbackContext,omitempty" yaml:"callbackContext,omitempty"`

	// Credentials is the credentials context for the invocation.
	Credentials Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// ProgressEvent is the outcome of one lifecycle transition.
type ProgressEvent struct {
	// Status is the operation status.
	Status OperationStatus `json:"status"`

	// ErrorCode is set when Status is FAILED.
	ErrorCode HandlerErrorCode `json:"errorCode,omitempty"`

	// Message is a human-readable description of the outcome.
	Message string `json:"message,omitempty"`

	// ResourceModel is the resulting resource state, if any.
	ResourceModel json.RawMessage `json:"resourceModel,omitempty"`

	// CallbackContext is returned to the orchestrator unchanged.
	CallbackContext map[string]interface{} `json:"callbackContext,omitempty"`

	// CallbackDelaySeconds asks the orchestrator to wait before calling back.
	CallbackDelaySeconds int `json:"callbackDelaySeconds,omitempty"`
}

// Success returns a SUCCESS progress event carrying the given model.
// A nil model produces an event without a resource model.
func Success(model json.RawMessage) *ProgressEvent {
	return &ProgressEvent{
		Status:        OperationStatusSuccess,
		ResourceModel: model,
	}
}

// Failed returns a FAILED progress event with the given code and message.
func Failed(code HandlerErrorCode, message string) *ProgressEvent {
	return &ProgressEvent{
		Status:    OperationStatusFailed,
		ErrorCode: code,
		Message:   message,
	}
}

// FailedFromError converts an error into a FAILED progress event.
func FailedFromError(err error) *ProgressEvent {
	he := AsHandlerError(err)
	return Failed(he.Code, he.Error())
}

// IsSuccess returns true if the event reports success.
func (p *ProgressEvent) IsSuccess() bool {
	return p != nil && p.Status == OperationStatusSuccess
}
