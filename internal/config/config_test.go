package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikempw/dnsfailover/internal/dnsprovider"
	"github.com/mikempw/dnsfailover/internal/lease"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadControllerConfigDefaults(t *testing.T) {
	cfg := LoadControllerConfig()
	require.Equal(t, lease.Primary, cfg.Role)
	require.Equal(t, dnsprovider.NameFile, cfg.Provider)
	require.Equal(t, 60, cfg.LeaseTTL)
	require.Equal(t, 10, cfg.UpdateInterval)
	require.NoError(t, cfg.Validate())
}

func TestControllerConfigRejectsLeaseTTLNotGreaterThanUpdateInterval(t *testing.T) {
	withEnv(t, map[string]string{"LEASE_TTL": "10", "UPDATE_INTERVAL": "10"})
	cfg := LoadControllerConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LEASE_TTL")
}

func TestControllerConfigRequiresScriptPaths(t *testing.T) {
	withEnv(t, map[string]string{"DNS_PROVIDER": "script"})
	cfg := LoadControllerConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SCRIPT_SET")
	require.Contains(t, err.Error(), "SCRIPT_GET")
}

func TestControllerConfigAcceptsExecutableScript(t *testing.T) {
	script := t.TempDir() + "/set.sh"
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	withEnv(t, map[string]string{
		"DNS_PROVIDER": "script",
		"SCRIPT_SET":   script,
		"SCRIPT_GET":   script,
	})
	cfg := LoadControllerConfig()
	require.NoError(t, cfg.Validate())
}

func TestControllerConfigRequiresAWSCredsForRoute53(t *testing.T) {
	withEnv(t, map[string]string{"DNS_PROVIDER": "aws"})
	cfg := LoadControllerConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
}

func TestControllerConfigMetricsModeOnDRRequiresURL(t *testing.T) {
	withEnv(t, map[string]string{"ROLE": "dr", "HEALTH_MODE": "metrics"})
	cfg := LoadControllerConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "HEALTH_URL")
}

func TestLoadFollowerConfigRequiresCommandForSubprocess(t *testing.T) {
	withEnv(t, map[string]string{"DR_IP": "10.20.20.10", "OTEL_COMMAND": ""})
	cfg := LoadFollowerConfig()
	require.Error(t, cfg.Validate())
}

func TestLoadFollowerConfigValidWithDefaults(t *testing.T) {
	withEnv(t, map[string]string{"DR_IP": "10.20.20.10"})
	cfg := LoadFollowerConfig()
	require.NoError(t, cfg.Validate())
}

func TestLoadReconcilerConfigRequiresDSNs(t *testing.T) {
	cfg := LoadReconcilerConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LOCAL_DSN")
	require.Contains(t, err.Error(), "REMOTE_DSN")
}

func TestLoadReconcilerConfigValid(t *testing.T) {
	withEnv(t, map[string]string{
		"LOCAL_DSN":  "tcp://localhost:9000",
		"REMOTE_DSN": "tcp://remote:9000",
	})
	cfg := LoadReconcilerConfig()
	require.NoError(t, cfg.Validate())
}

func TestReconcilerConfigRejectsBadGapThreshold(t *testing.T) {
	withEnv(t, map[string]string{
		"LOCAL_DSN":     "tcp://localhost:9000",
		"REMOTE_DSN":    "tcp://remote:9000",
		"GAP_THRESHOLD": "1.5",
	})
	cfg := LoadReconcilerConfig()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "GAP_THRESHOLD")
}
