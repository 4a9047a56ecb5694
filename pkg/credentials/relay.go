// Package credentials relays the write-only control-plane API key from a
// lifecycle invocation into the outbound calls it makes.
//
// A Relay lives for exactly one invocation. Handlers create one at the
// start of every transition and drop it when the transition returns, so a
// key supplied for one monitor can never authorise calls made for another.
package credentials

import (
	"github.com/rs/zerolog"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
)

// Source identifies where the relay found the key it handed out.
type Source string

const (
	SourceNone       Source = ""
	SourceDesired    Source = "desired_state"
	SourceRemembered Source = "remembered"
	SourceContext    Source = "credentials_context"
)

// Relay holds the API key for one invocation.
type Relay struct {
	seed       string
	remembered string
	source     Source
}

// NewRelay creates a relay seeded with the key from the invocation's
// credentials context. The seed may be empty.
func NewRelay(seed string) *Relay {
	return &Relay{seed: seed}
}

// ForRequest creates a relay for an engine request.
func ForRequest(req *engine.Request) *Relay {
	if req == nil {
		return NewRelay("")
	}
	return NewRelay(req.Credentials.APIKey)
}

// Resolve returns the key to use for the next call. The desired-state key
// wins; otherwise a key remembered earlier in the invocation is used, and
// finally the credentials context seed. With no key at all Resolve fails
// with InvalidRequest.
func (r *Relay) Resolve(desiredKey string) (string, error) {
	switch {
	case desiredKey != "":
		r.source = SourceDesired
		return desiredKey, nil
	case r.remembered != "":
		r.source = SourceRemembered
		return r.remembered, nil
	case r.seed != "":
		r.source = SourceContext
		return r.seed, nil
	default:
		r.source = SourceNone
		return "", engine.NewInvalidRequest("ApiKey is required")
	}
}

// Remember keeps key for the remaining calls of the invocation. Handlers
// call it after the key has been accepted by the control plane.
func (r *Relay) Remember(key string) {
	if key != "" {
		r.remembered = key
	}
}

// Source reports where the last resolved key came from.
func (r *Relay) Source() Source {
	return r.source
}

// Redact returns m without its write-only properties.
func (r *Relay) Redact(m model.Monitor) model.Monitor {
	return m.WithoutSecrets()
}

// String never prints the key.
func (r *Relay) String() string {
	if r.remembered == "" && r.seed == "" {
		return "credentials.Relay{empty}"
	}
	return "credentials.Relay{ApiKey:" + Mask(r.current()) + "}"
}

// MarshalZerologObject logs the relay without the key.
func (r *Relay) MarshalZerologObject(e *zerolog.Event) {
	e.Str("source", string(r.source)).
		Bool("remembered", r.remembered != "").
		Bool("seeded", r.seed != "")
}

func (r *Relay) current() string {
	if r.remembered != "" {
		return r.remembered
	}
	return r.seed
}

// Mask hides all but the last four characters of a key.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
