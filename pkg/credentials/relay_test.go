package credentials

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
)

func TestResolvePrefersDesiredKey(t *testing.T) {
	r := NewRelay("seed-key")

	key, err := r.Resolve("desired-key")
	require.NoError(t, err)
	assert.Equal(t, "desired-key", key)
	assert.Equal(t, SourceDesired, r.Source())
}

func TestResolveDoesNotStoreDesiredKey(t *testing.T) {
	r := NewRelay("seed-key")

	_, err := r.Resolve("desired-key")
	require.NoError(t, err)

	key, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "seed-key", key, "only Remember stores a key")
	assert.Equal(t, SourceContext, r.Source())
}

func TestResolveFallsBackToRememberedThenSeed(t *testing.T) {
	r := NewRelay("seed-key")

	key, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "seed-key", key)
	assert.Equal(t, SourceContext, r.Source())

	r.Remember("accepted-key")
	key, err = r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "accepted-key", key)
	assert.Equal(t, SourceRemembered, r.Source())
}

func TestResolveWithoutKey(t *testing.T) {
	_, err := NewRelay("").Resolve("")
	require.Error(t, err)
	assert.True(t, engine.IsInvalidRequest(err))
	assert.Contains(t, err.Error(), "ApiKey is required")
}

func TestRelaysAreIndependent(t *testing.T) {
	first := NewRelay("")
	first.Remember("key-for-site-a")

	second := NewRelay("")
	_, err := second.Resolve("")
	assert.True(t, engine.IsInvalidRequest(err), "a new relay must not see keys from another invocation")
}

func TestForRequest(t *testing.T) {
	r := ForRequest(&engine.Request{Credentials: engine.Credentials{APIKey: "ctx-key"}})
	key, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "ctx-key", key)

	_, err = ForRequest(nil).Resolve("")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	in := model.Monitor{Name: "shop", APIKey: "secret"}
	out := NewRelay("").Redact(in)
	assert.Empty(t, out.APIKey)
	assert.Equal(t, "shop", out.Name)
}

func TestRelayNeverPrintsKey(t *testing.T) {
	r := NewRelay("abcdefghijkl-secret")
	_, _ = r.Resolve("")

	assert.NotContains(t, r.String(), "abcdefghijkl")
	assert.True(t, strings.HasSuffix(r.String(), "cret}"))

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("credentials", r).Msg("resolved")
	assert.NotContains(t, buf.String(), "secret")
	assert.Contains(t, buf.String(), `"source":"credentials_context"`)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "****6789", Mask("0123456789"))
}
