package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRoot("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEvalAllowsAndDenies(t *testing.T) {
	// IP-literal targets keep the checker away from real DNS.
	policy := writePolicy(t, `
allowed_ip_ranges: ["1.2.3.0/24"]
`)

	out, err := runRoot(t, "--policy", policy, "eval", "https://1.2.3.4/")
	require.NoError(t, err)
	assert.Contains(t, out, "ALLOW")

	out, err = runRoot(t, "--policy", policy, "eval", "https://10.0.0.5/")
	require.Error(t, err)
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.Code())
	assert.Contains(t, out, "DENY")
}

func TestEvalMethodFlag(t *testing.T) {
	policy := writePolicy(t, `
allowed_ip_ranges: ["1.2.3.0/24"]
denied_methods: []
allowed_methods: [GET]
`)

	out, err := runRoot(t, "--policy", policy, "eval", "-X", "delete", "https://1.2.3.4/")
	require.Error(t, err)
	assert.Contains(t, out, "DENY")
	assert.Contains(t, out, "method")
}

func TestResolveDeniedHostFails(t *testing.T) {
	policy := writePolicy(t, `
denied_hosts: [bad.example]
`)

	// The host gate fires before any delegation, so no network is touched.
	_, err := runRoot(t, "--policy", policy, "resolve", "bad.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestResolveStaticMapping(t *testing.T) {
	policy := writePolicy(t, `
host_acl_default: true
ip_acl_default: true
static_dns_mappings:
  pinned.example: "93.184.216.34:443"
`)

	out, err := runRoot(t, "--policy", policy, "resolve", "pinned.example")
	require.NoError(t, err)
	assert.Contains(t, out, "93.184.216.34")
}

func TestRootRejectsBadPolicyFile(t *testing.T) {
	policy := writePolicy(t, "no_such_field: true\n")

	_, err := runRoot(t, "--policy", policy, "eval", "https://1.2.3.4/")
	require.Error(t, err)

	_, err = runRoot(t, "--policy", filepath.Join(t.TempDir(), "missing.yaml"), "eval", "https://1.2.3.4/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}