package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a config file with one badger-backed table named "t".
type testEnv struct {
	t          *testing.T
	configPath string
	dir        string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
logging:
  level: warn
tables:
  - name: t
    location: badger://%s
`, filepath.Join(dir, "db"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return &testEnv{t: t, configPath: configPath, dir: dir}
}

func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(stdin string, args ...string) string {
	e.t.Helper()
	out, err := e.run(stdin, args...)
	require.NoError(e.t, err, "tablestore %v", args)
	return out
}

func TestObjectCommands(t *testing.T) {
	env := newTestEnv(t)

	etag := strings.TrimSpace(env.mustRun("hello world", "put", "t", "data/a.txt", "-"))
	assert.NotEmpty(t, etag)
	env.mustRun("second", "put", "t", "data/sub/b.txt", "-")

	assert.Equal(t, "hello world", env.mustRun("", "cat", "t", "data/a.txt"))
	assert.Equal(t, "world", env.mustRun("", "cat", "t", "data/a.txt", "--range", "-5"))
	assert.Equal(t, "ello", env.mustRun("", "cat", "t", "data/a.txt", "--range", "1-5"))

	out := env.mustRun("", "ls", "t", "data")
	assert.Contains(t, out, "PRE")
	assert.Contains(t, out, "data/sub/")
	assert.Contains(t, out, "data/a.txt")
	assert.NotContains(t, out, "b.txt")

	out = env.mustRun("", "ls", "-r", "t")
	assert.Contains(t, out, "data/sub/b.txt")

	out = env.mustRun("", "stat", "t", "data/a.txt")
	assert.Contains(t, out, "Size:          11")
	assert.Contains(t, out, "ETag:          "+etag)

	t.Run("ConditionalPut", func(t *testing.T) {
		_, err := env.run("again", "put", "--if-not-exists", "t", "data/a.txt", "-")
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		_, err = env.run("again", "put", "--if-match", "stale", "t", "data/a.txt", "-")
		assert.ErrorIs(t, err, storage.ErrPrecondition)

		env.mustRun("updated", "put", "--if-match", etag, "t", "data/a.txt", "-")
		assert.Equal(t, "updated", env.mustRun("", "cat", "t", "data/a.txt"))
	})

	t.Run("CopyAndRename", func(t *testing.T) {
		env.mustRun("", "cp", "t", "data/a.txt", "copy/a.txt")
		_, err := env.run("", "cp", "--if-not-exists", "t", "data/a.txt", "copy/a.txt")
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		env.mustRun("", "mv", "t", "copy/a.txt", "moved/a.txt")
		_, err = env.run("", "stat", "t", "copy/a.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = env.run("", "mv", "t", "data/sub/b.txt", "moved/a.txt")
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("Remove", func(t *testing.T) {
		env.mustRun("", "rm", "t", "moved/a.txt", "data/sub/b.txt")
		_, err := env.run("", "rm", "t", "moved/a.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestPutMultipart(t *testing.T) {
	env := newTestEnv(t)

	payload := strings.Repeat("0123456789", 1000)
	source := filepath.Join(env.dir, "payload.bin")
	require.NoError(t, os.WriteFile(source, []byte(payload), 0644))

	env.mustRun("", "put", "--multipart", "--part-size", "4096", "--progress", "t", "big.bin", source)
	assert.Equal(t, payload, env.mustRun("", "cat", "t", "big.bin"))

	_, err := env.run("", "put", "--multipart", "--if-not-exists", "t", "big.bin", source)
	assert.Error(t, err)
}

func TestLogCommands(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("", "log", "latest", "t")
	assert.ErrorIs(t, err, logstore.ErrNotATable)

	env.mustRun(`{"commitInfo":{}}`, "log", "commit", "t", "0", "-")
	env.mustRun(`{"add":{}}`, "log", "commit", "t", "1", "-")

	_, err = env.run(`{"add":{}}`, "log", "commit", "t", "1", "-")
	assert.ErrorIs(t, err, logstore.ErrVersionAlreadyExists)

	assert.Equal(t, "1\n", env.mustRun("", "log", "latest", "t"))
	assert.Equal(t, `{"commitInfo":{}}`, env.mustRun("", "log", "show", "t", "0"))

	out := env.mustRun("", "ls", "t", "_delta_log")
	assert.Contains(t, out, "_delta_log/00000000000000000001.json")
	assert.NotContains(t, out, ".tmp")
}

func TestRawLocationAndOptions(t *testing.T) {
	env := newTestEnv(t)

	// A location that is not a configured table name
	out := env.mustRun("x", "-o", "badger_in_memory=true", "put", "badger:", "a", "-")
	assert.NotEmpty(t, out)

	_, err := env.run("", "-o", "novalue", "ls", "t")
	assert.Error(t, err)

	_, err = env.run("", "ls", "gs://bucket/t")
	assert.ErrorIs(t, err, storage.ErrInvalidLocation)
}

func TestSchemesAndConfig(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("", "schemes")
	for _, scheme := range []string{"hdfs", "viewfs", "s3", "s3a", "badger", "memory"} {
		assert.Contains(t, out, scheme)
	}

	out = env.mustRun("", "config", "show")
	assert.Contains(t, out, "level: WARN")
	assert.Contains(t, out, "name: t")

	path := filepath.Join(env.dir, "generated", "config.yaml")
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), path)
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestParseRange(t *testing.T) {
	cases := map[string]storage.GetRange{
		"":     {},
		"0-10": storage.Bounded(0, 10),
		"5-":   storage.Offset(5),
		"-3":   storage.Suffix(3),
	}
	for in, want := range cases {
		got, err := parseRange(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"-", "a-b", "1-x", "-1-2", "10"} {
		_, err := parseRange(in)
		assert.Error(t, err, in)
	}
}

func TestMetricsFile(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "tablestore.prom")

	env.mustRun("payload", "--metrics-file", path, "put", "t", "data/m.bin", "-")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tablestore_store_operations_total{backend="badger",operation="put",status="success"} `)
	assert.Contains(t, string(data), `tablestore_store_bytes_total{backend="badger",operation="put"} `)
}
