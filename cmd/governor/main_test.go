package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig points the CLI at a fresh data dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	file := filepath.Join(dir, "governor.yaml")
	content := "dataDir: " + filepath.Join(dir, "data") + "\nadminAddress: hive:tibfox\nvotingPeriod: 1h\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return file
}

func run(t *testing.T, configFile string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configFile}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, configFile string, args ...string) string {
	t.Helper()
	out, err := run(t, configFile, args...)
	require.NoError(t, err, strings.Join(args, " "))
	return out
}

func TestCLIFlow(t *testing.T) {
	cfg := writeTestConfig(t)

	out := mustRun(t, cfg, "deploy")
	assert.Contains(t, out, "governor: contract:governor")
	_, err := run(t, cfg, "deploy")
	assert.ErrorContains(t, err, "already initialized")

	mustRun(t, cfg, "call", "contract:token", "mint", `{"to":"hive:someone","amount":50}`)
	out = mustRun(t, cfg, "call", "contract:token", "balance", `{"account":"hive:someone"}`)
	assert.JSONEq(t, `{"amount":50}`, strings.TrimSpace(out))

	out = mustRun(t, cfg, "call", "contract:governor", "proposal_create",
		`{"description":"relay","recipient":"hive:someone","amount":2,"token":"native"}`, "--sender", "hive:someone")
	assert.JSONEq(t, `{"id":0}`, strings.TrimSpace(out))
	mustRun(t, cfg, "call", "contract:governor", "proposal_vote", `{"id":0,"support":true}`, "--sender", "hive:someone")
	mustRun(t, cfg, "deposit", "contract:treasury", "2")

	out = mustRun(t, cfg, "proposal", "0")
	assert.Contains(t, out, `"for_votes":50`)
	assert.Contains(t, out, `"description":"relay"`)

	out = mustRun(t, cfg, "events", "--type", "pc")
	assert.Equal(t, 1, strings.Count(out, "pc|id:0"))
	out = mustRun(t, cfg, "events", "--proposal", "0")
	assert.Contains(t, out, "v|id:0|by:hive:someone")

	out = mustRun(t, cfg, "actions", "contract:treasury")
	assert.Contains(t, out, "emergency_withdraw\n")
}

func TestCLIErrors(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, cfg, "call", "contract:nope", "mint")
	assert.ErrorContains(t, err, "unknown contract")
	_, err = run(t, cfg, "proposal", "abc")
	assert.ErrorContains(t, err, "invalid proposal id")
	_, err = run(t, cfg, "deposit", "hive:someone", "-1")
	assert.ErrorContains(t, err, "invalid amount")
	_, err = run(t, cfg, "call", "contract:token")
	assert.Error(t, err)
	_, err = run(t, cfg, "events", "--type", "zz")
	assert.ErrorContains(t, err, "unknown event type")

	_, err = run(t, filepath.Join(t.TempDir(), "missing.yaml"), "actions", "contract:token")
	assert.ErrorContains(t, err, "failed to load config")
}

func TestCLIVersion(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "governor devel"))
}
