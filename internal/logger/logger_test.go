package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, line []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(line, &entry))
	return entry
}

func TestNewLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cli")
	l.Logger = l.Output(&buf)

	l.Info().Msg("hello")

	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "cli", entry["role"])
	assert.Contains(t, entry, "time")
	assert.Equal(t, "func", zerolog.CallerFieldName)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestNewClientLogger_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.log")

	NewClientLogger("clinic-keeper", path).Info().Msg("first")
	NewClientLogger("clinic-keeper", path).Warn().Msg("second")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	first := decodeLine(t, []byte(lines[0]))
	second := decodeLine(t, []byte(lines[1]))
	assert.Equal(t, "first", first["message"])
	assert.Equal(t, "clinic-keeper", first["role"])
	assert.Equal(t, "warn", second["level"])
}

func TestNewClientLogger_UnwritablePathFallsBack(t *testing.T) {
	l := NewClientLogger("clinic-keeper", filepath.Join(t.TempDir(), "missing", "dir", "log"))
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info().Msg("to stderr") })
}

func TestNop_DiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Nop()
	l.Logger = l.Output(&buf)

	l.Error().Msg("discarded")

	assert.Empty(t, buf.String())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	parent := &Logger{zerolog.New(&buf).With().Str("role", "clinic").Logger()}

	child := parent.WithComponent("token_manager")
	assert.NotSame(t, parent, child)

	child.Info().Msg("refreshed")
	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "clinic", entry["role"])
	assert.Equal(t, "token_manager", entry["component"])

	buf.Reset()
	parent.Info().Msg("untagged")
	assert.NotContains(t, decodeLine(t, buf.Bytes()), "component")
}

func TestGetChildLogger_InheritsFields(t *testing.T) {
	var buf bytes.Buffer
	parent := &Logger{zerolog.New(&buf).With().Str("role", "inherited").Logger()}

	parent.GetChildLogger().Info().Msg("child")

	assert.Equal(t, "inherited", decodeLine(t, buf.Bytes())["role"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zerolog.New(&buf).With().Str("request", "r-1").Logger()}

	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info().Msg("from context")

	assert.Equal(t, "r-1", decodeLine(t, buf.Bytes())["request"])
	assert.NotNil(t, FromContext(context.Background()))
}
