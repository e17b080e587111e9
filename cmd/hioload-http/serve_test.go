package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-http/server"
)

func execute(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestServeRejectsUnknownHandler(t *testing.T) {
	err := execute("serve", "--handler", "nope")
	assert.ErrorContains(t, err, "unknown handler")
}

func TestServeValidatesFlags(t *testing.T) {
	assert.ErrorContains(t, execute("serve", "--port", "70000"), "invalid port")
	assert.ErrorContains(t, execute("serve", "--idle-timeout", "0s"), "idle timeout")
	assert.ErrorContains(t, execute("--log-level", "loud", "serve"), "unknown log level")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("HIOLOAD_PORT", "9000")
	t.Setenv("HIOLOAD_THREADS", "2")

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9100", "--dispatch-timeout", "1s"}))
	cfg, err := server.LoadFromEnv()
	require.NoError(t, err)

	opts := &serveOptions{}
	opts.port, _ = cmd.Flags().GetInt("port")
	opts.dispatchTimeout, _ = cmd.Flags().GetDuration("dispatch-timeout")
	opts.apply(cmd, cfg)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, time.Second, cfg.DispatchTimeout)
}
