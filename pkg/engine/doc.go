// Package engine provides the lifecycle contract shared by resource handlers
// and the orchestrator that invokes them.
//
// # Overview
//
// An orchestrator drives a resource through four transitions. Each
// invocation carries the desired state, the previous state (Update and
// Delete only), an opaque callback context, and a credentials context:
//
//  1. CREATE - provision the resource and report its assigned identifier
//  2. READ - describe the current state of an existing resource
//  3. UPDATE - converge an existing resource to a new desired state
//  4. DELETE - remove the resource
//
// # Core Types
//
//   - Request: one lifecycle invocation
//   - ProgressEvent: the outcome of a transition (status, error code, model)
//   - ResourceHandler: the four transitions a resource type implements
//   - Dispatcher: the dispatch table mapping actions to handler functions
//
// # Handler Contract
//
//	type ResourceHandler interface {
//	    Create(ctx context.Context, req *Request) (*ProgressEvent, error)
//	    Read(ctx context.Context, req *Request) (*ProgressEvent, error)
//	    Update(ctx context.Context, req *Request) (*ProgressEvent, error)
//	    Delete(ctx context.Context, req *Request) (*ProgressEvent, error)
//	}
//
// A handler may fail hard by returning an error, or soft by returning a
// FAILED progress event. The Dispatcher turns hard failures into FAILED
// events carrying the error's code, so the orchestrator always receives
// an event.
//
// # Error Classification
//
// HandlerError carries both a code reported to the orchestrator and a
// class describing whether a retry can help:
//
//   - Transient: InternalFailure; the orchestrator may retry
//   - Conflict: AlreadyExists; the desired state must change
//   - Permanent: InvalidRequest, NotFound, NotUpdatable
//
// The engine itself never retries:
//
//	if IsRetryable(err) {
//	    // schedule a callback
//	}
//
// # Status Tracking
//
// OperationStatus is PENDING, IN_PROGRESS, SUCCESS or FAILED. Handlers
// in this module complete in a single step and only report SUCCESS or
// FAILED.
package engine
