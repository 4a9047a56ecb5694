package monitorapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
)

// Classify maps a control-plane response status to an error. It returns
// nil for success (any status below 300). The same table applies to every
// call: 400 means the monitor already exists, 404 that it does not exist,
// and everything else is an internal failure carrying the status text.
func Classify(status int, statusText, identifier string) error {
	switch {
	case status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusBadRequest:
		return engine.NewAlreadyExists(model.TypeName, identifier).WithStatusCode(status)
	case status == http.StatusNotFound:
		return engine.NewNotFound(model.TypeName, identifier).WithStatusCode(status)
	case status > http.StatusBadRequest:
		return engine.NewInternalFailure(fmt.Sprintf("control plane returned %s", describeStatus(status, statusText)), nil).
			WithStatusCode(status)
	default:
		return engine.NewInternalFailure(fmt.Sprintf("unexpected control plane response %s", describeStatus(status, statusText)), nil).
			WithStatusCode(status)
	}
}

func describeStatus(status int, statusText string) string {
	// resp.Status is "404 Not Found"; keep only the text.
	text := strings.TrimSpace(strings.TrimPrefix(statusText, fmt.Sprint(status)))
	if text == "" {
		text = http.StatusText(status)
	}
	if text == "" {
		return fmt.Sprint(status)
	}
	return fmt.Sprintf("%d %s", status, text)
}
