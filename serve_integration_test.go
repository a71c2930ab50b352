package main

import (
	"bytes"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer collects process output written from another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func buildBinary(t *testing.T) string {
	t.Helper()
	binaryPath := filepath.Join(t.TempDir(), "coordenv-test")
	out, err := exec.Command("go", "build", "-o", binaryPath, ".").CombinedOutput()
	require.NoError(t, err, "build failed:\n%s", out)
	return binaryPath
}

// TestServeStartupShutdown runs the service binary without a broker,
// queries it over HTTP and stops it with SIGINT.
func TestServeStartupShutdown(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test (set RUN_INTEGRATION_TESTS=1 to run)")
	}

	configPath := writeFile(t, "config.yaml", `batch:
  workers: 2
  budget: 10s
http:
  port: 18089
`)
	binaryPath := buildBinary(t)

	var output syncBuffer
	cmd := exec.Command(binaryPath, "serve", "--config", configPath)
	cmd.Env = append(os.Environ(), "MQTT_BROKER=")
	cmd.Stdout = &output
	cmd.Stderr = &output
	require.NoError(t, cmd.Start())

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18089/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 100*time.Millisecond, "service never became healthy:\n%s", output.String())

	resp, err := http.Post("http://127.0.0.1:18089/match", "application/json", strings.NewReader(sitesJSON))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, cmd.Process.Signal(os.Interrupt))
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("service did not shut down within timeout")
	}

	for _, want := range []string{
		"Starting coordenv service",
		"Loaded config from",
		"MQTT] disabled",
		"Press Ctrl+C to stop",
		"Service stopped",
	} {
		assert.Contains(t, output.String(), want)
	}
}

func TestServeMissingConfig(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test (set RUN_INTEGRATION_TESTS=1 to run)")
	}

	out, err := exec.Command(buildBinary(t), "serve", "--config", "nonexistent.yaml").CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(out), "config file not found")
}
