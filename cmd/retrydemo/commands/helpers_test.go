package commands

import (
	"bytes"
	"testing"
)

var retryEnv = []string{
	"RETRY_INITIAL_DELAY", "RETRY_MAX_DELAY", "RETRY_MULTIPLIER", "RETRY_MAX_RETRIES",
	"RETRY_JITTER", "RETRY_RATE_LIMIT", "RETRY_RATE_BURST",
	"RETRY_SIM_OPERATIONS", "RETRY_SIM_WORKERS", "RETRY_SIM_FAILURE_RATE", "RETRY_SIM_LATENCY",
}

// isolate runs the test in an empty directory with every RETRY_* variable
// blanked, so neither a stray .env nor the caller's environment leaks in.
func isolate(t *testing.T, env map[string]string) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range retryEnv {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
