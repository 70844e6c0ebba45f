package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/logging"
)

func TestZerolog_InfoIncludesMessageAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logging.NewZerolog(zerolog.New(&buf))

	l.Info("save completed", logging.F("segments", 3), logging.F("name", "coll"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "save completed", line["message"])
	require.Equal(t, float64(3), line["segments"])
	require.Equal(t, "coll", line["name"])
	require.Equal(t, "info", line["level"])
}

func TestZerolog_ErrorSetsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logging.NewZerolog(zerolog.New(&buf))

	l.Error("save failed", logging.F("reason", "conflict"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "error", line["level"])
	require.Equal(t, "conflict", line["reason"])
}

func TestNoop_NeverPanics(t *testing.T) {
	t.Parallel()

	var n logging.Noop
	n.Debug("x")
	n.Info("x", logging.F("k", "v"))
	n.Warn("x")
	n.Error("x")
}
