package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/pointlog/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, dataDir, id string, records ...session.Record) {
	t.Helper()
	files := session.NewFiles(filepath.Join(dataDir, "sessions"), zerolog.Nop())
	require.NoError(t, files.Bootstrap())
	require.NoError(t, files.Save(context.Background(), id, records))
}

func testRecord(x float64, inRegion bool) session.Record {
	return session.Record{X: x, Y: 1, R: 3, InRegion: inRegion, ObservedAt: "2024-01-01 10:00:00", DurationMillis: 0.25}
}

func resetSessionFlags(t *testing.T) {
	t.Cleanup(func() {
		showJSON = false
		forceClear = false
	})
}

func TestSessionsList(t *testing.T) {
	resetSessionFlags(t)
	path, dataDir := writeTestConfig(t)

	out, err := execute(t, "sessions", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions stored")

	seedSession(t, dataDir, "beta", testRecord(1, true))
	seedSession(t, dataDir, "alpha", testRecord(1, true), testRecord(2, false))

	out, err = execute(t, "sessions", "list", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Regexp(t, `alpha\s+2`, out)
	assert.Regexp(t, `beta\s+1`, out)
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "beta"))
}

func TestSessionsShow(t *testing.T) {
	resetSessionFlags(t)
	path, dataDir := writeTestConfig(t)
	seedSession(t, dataDir, "abc", testRecord(-2, true), testRecord(4, false))

	out, err := execute(t, "sessions", "show", "abc", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "TIME")
	assert.Less(t, strings.Index(out, "false"), strings.Index(out, "true"), "newest first")

	out, err = execute(t, "sessions", "show", "abc", "--json", "--config", path)
	require.NoError(t, err)

	var body map[string][]session.Record
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body["results"], 2)
	assert.Equal(t, 4.0, body["results"][0].X)
	assert.Equal(t, -2.0, body["results"][1].X)
}

func TestSessionsShowEmptyAndInvalid(t *testing.T) {
	resetSessionFlags(t)
	path, _ := writeTestConfig(t)

	out, err := execute(t, "sessions", "show", "nobody", "--json=false", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "has no records")

	_, err = execute(t, "sessions", "show", "../etc", "--config", path)
	assert.Error(t, err)
}

func TestSessionsClear(t *testing.T) {
	resetSessionFlags(t)
	path, dataDir := writeTestConfig(t)
	seedSession(t, dataDir, "abc", testRecord(1, true))

	out, err := execute(t, "sessions", "clear", "abc", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Session abc cleared")

	_, err = execute(t, "sessions", "clear", "abc", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSessionsClearRefusesWhileRunning(t *testing.T) {
	resetSessionFlags(t)
	path, dataDir := writeTestConfig(t)
	seedSession(t, dataDir, "abc", testRecord(1, true))
	require.NoError(t, writePIDFile(filepath.Join(dataDir, "pointlog.pid")))

	_, err := execute(t, "sessions", "clear", "abc", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server is running")

	_, err = execute(t, "sessions", "clear", "abc", "--force", "--config", path)
	assert.NoError(t, err)
}
