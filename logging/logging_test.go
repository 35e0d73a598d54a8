package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithSoleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(
		WithSoleWriter(&buf),
		WithLevel("debug"),
	)
	require.NoError(t, err)

	logger.Debug().Str("component", "test").Msg("hello")

	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestNewInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(WithLevel("definitely-not-a-level"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(
		WithSoleWriter(&buf),
		WithLevel("warn"),
	)
	require.NoError(t, err)

	logger.Info().Msg("should be dropped")
	logger.Warn().Msg("should be kept")

	assert.NotContains(t, buf.String(), "should be dropped")
	assert.Contains(t, buf.String(), "should be kept")
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(
		WithSoleWriter(&buf),
		WithLevel("info"),
		WithSecrets([]string{"ghp_supersecret", "0123webhooksecret"}),
	)
	require.NoError(t, err)

	logger.Info().
		Str("token", "ghp_supersecret").
		Str("secret", "0123webhooksecret").
		Msg("configured webhook")

	output := buf.String()
	assert.NotContains(t, output, "ghp_supersecret")
	assert.NotContains(t, output, "0123webhooksecret")
	assert.Equal(t, 2, strings.Count(output, "[REDACTED]"))
}
