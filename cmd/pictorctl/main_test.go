package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictor/internal/config"
	"pictor/internal/core"
	"pictor/pkg/domain"
)

const testConfig = `
storage:
  driver: sqlite
  sqlite_path: %DIR%/pictor.db
blob:
  driver: fs
  fs_root: %DIR%/thumbnails
log:
  level: error
  format: console
  file: %DIR%/pictor.log
metrics:
  backend: none
`

// writeConfig writes a sqlite backed configuration into a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pictor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(testConfig, "%DIR%", dir)), 0o600))
	return path
}

// seed stores two projects and one flight for the stored session user.
func seed(t *testing.T, path string) domain.SessionContext {
	t.Helper()
	ctx := t.Context()
	cfg, _, err := config.Load(path)
	require.NoError(t, err)
	c, err := core.Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close()) }()

	sess, err := c.StartSession(ctx)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	roof := domain.Project{Title: "Roof", Type: "classic", LastUpdated: now}
	roof.UUID = "p1"
	barn := domain.Project{Title: "Barn", Type: "classic", LastUpdated: now.Add(time.Hour)}
	barn.UUID = "p2"
	_, err = c.Create(ctx, sess, domain.Projects{roof, barn})
	require.NoError(t, err)

	f := domain.Flight{Title: "morning", RunDate: now, Duration: 120, Distance: 300}
	f.UUID = "f1"
	_, err = c.Create(ctx, sess, domain.Flights{f})
	require.NoError(t, err)
	return sess
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestProjectsCommand(t *testing.T) {
	path := writeConfig(t)
	seed(t, path)

	out, err := run(t, "-c", path, "projects")
	require.NoError(t, err)
	assert.Equal(t, "Barn\nRoof\n", out)

	out, err = run(t, "-c", path, "projects", "--like", "ROO")
	require.NoError(t, err)
	assert.Equal(t, "Roof\n", out)
}

func TestStatsCommand(t *testing.T) {
	path := writeConfig(t)
	sess := seed(t, path)

	out, err := run(t, "-c", path, "stats", "--json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, sess.UserUUID, report.User)
	assert.Equal(t, 2, report.Counts[domain.EntityProject])
	assert.Equal(t, 1, report.Counts[domain.EntityFlight])
	assert.Equal(t, 0, report.Counts[domain.EntityDrone])
	assert.Equal(t, 300.0, report.Flights.TotalDistance)

	out, err = run(t, "-c", path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "flight time")
	assert.Contains(t, out, "2m0s")
}

func TestPendingCommand(t *testing.T) {
	path := writeConfig(t)
	seed(t, path)

	out, err := run(t, "-c", path, "pending")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.ElementsMatch(t, []string{"flight\tf1", "project\tp1", "project\tp2"}, lines)

	_, err = run(t, "-c", path, "pending", "--since", "yesterday")
	assert.ErrorContains(t, err, "--since")
}

func TestPurgeUserCommand(t *testing.T) {
	path := writeConfig(t)
	sess := seed(t, path)

	out, err := run(t, "-c", path, "purge-user", sess.UserUUID)
	require.NoError(t, err)
	assert.Equal(t, "purged user "+sess.UserUUID+"\n", out)

	out, err = run(t, "-c", path, "projects")
	require.NoError(t, err)
	assert.Empty(t, out, "the detached session gets a fresh user")

	_, err = run(t, "-c", path, "purge-user")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "-c", path, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite storage is up to date\n", out)
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "pictor.db"))
}

func TestWatchRejectsUnknownEntity(t *testing.T) {
	path := writeConfig(t)

	_, err := run(t, "-c", path, "watch", "balloon")
	assert.ErrorContains(t, err, `unknown entity "balloon"`)
}

func TestInvalidConfigIsReported(t *testing.T) {
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	assert.ErrorContains(t, err, "read config")
}
