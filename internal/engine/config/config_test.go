package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConf_MissingFileUsesDefaults(t *testing.T) {
	c := NewCompositor()
	require.NoError(t, c.LoadConf(filepath.Join(t.TempDir(), "absent.yaml")))

	assert.Equal(t, "0.0.0.0", *c.Conf.HTTPServer.Address)
	assert.Equal(t, "8080", *c.Conf.HTTPServer.Port)
	assert.Equal(t, "/sse", *c.Conf.HTTPServer.StreamPath)
	assert.Equal(t, "/rpc", *c.Conf.HTTPServer.MessagePath)
	assert.Equal(t, 30*time.Minute, *c.Conf.HTTPServer.SessionTTL)
	assert.Equal(t, 15*time.Second, *c.Conf.HTTPServer.KeepAlive)
	assert.Equal(t, 100, *c.Conf.HTTPServer.MaxConnections)
	assert.False(t, *c.Conf.TLS.TlsEnabled)
	assert.Equal(t, "token", *c.Conf.Auth.TokenParam)
	assert.Equal(t, 30*time.Second, *c.Conf.Tools.CallTimeout)
	assert.False(t, *c.Conf.Journal.Enabled)
	assert.Equal(t, "info", *c.Conf.Log.Level)
	assert.Equal(t, "%2%", *c.Conf.Log.OutPath)
	assert.Empty(t, *c.Conf.DisableWarnings)
}

func TestLoadConf_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node:
  name: edge-1
http_server:
  port: "9090"
  session_ttl: 10s
auth:
  jwt_secret: s3cret
journal:
  enabled: true
  path: /var/lib/gs/journal.db
log:
  level: debug
  json_format: true
`), 0o644))

	c := NewCompositor()
	require.NoError(t, c.LoadConf(path))

	assert.Equal(t, "edge-1", *c.Conf.Node.Name)
	assert.Equal(t, "9090", *c.Conf.HTTPServer.Port)
	assert.Equal(t, 10*time.Second, *c.Conf.HTTPServer.SessionTTL)
	assert.Equal(t, "s3cret", *c.Conf.Auth.JWTSecret)
	assert.True(t, *c.Conf.Journal.Enabled)
	assert.Equal(t, "/var/lib/gs/journal.db", *c.Conf.Journal.Path)
	assert.True(t, *c.Conf.Log.JSON)
	assert.Equal(t, "debug", *c.Conf.Log.Level)
	assert.Equal(t, "/sse", *c.Conf.HTTPServer.StreamPath)
}

func TestLoadConf_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node: [unterminated"), 0o644))
	assert.Error(t, NewCompositor().LoadConf(path))
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("GS_CONFIG_PATH", "/etc/gs/config.yaml")
	c := NewCompositor()
	require.NoError(t, c.LoadEnv())
	assert.Equal(t, "/etc/gs/config.yaml", *c.Env.ConfigPath)
	assert.Equal(t, "./", *c.Env.NodePath)
}

func TestLoadCMDLine(t *testing.T) {
	root := &cobra.Command{Use: "node"}
	call := &cobra.Command{Use: "call <method>", RunE: func(*cobra.Command, []string) error { return nil }}
	root.AddCommand(call)

	c := NewCompositor()
	c.LoadCMDLine(root)

	root.SetArgs([]string{"call", "ping", "--config", "x.yaml", "-u", "http://node:1", "--timeout", "3s"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "x.yaml", c.CMDLine.Node.ConfigPath)
	assert.Equal(t, "http://node:1", c.CMDLine.Call.URL)
	assert.Equal(t, 3*time.Second, c.CMDLine.Call.Timeout)
	assert.Equal(t, "", c.CMDLine.Call.Params)
}

func TestPrint_MasksSecrets(t *testing.T) {
	c := NewCompositor()
	require.NoError(t, c.LoadConf(filepath.Join(t.TempDir(), "absent.yaml")))
	secret := "hunter2"
	c.Conf.Auth.JWTSecret = &secret

	var sb strings.Builder
	c.Print(&sb, c.Conf)
	out := sb.String()

	assert.Contains(t, out, "http_server:\n")
	assert.Contains(t, out, `    port: "8080"`)
	assert.Contains(t, out, "    session_ttl: 30m0s")
	assert.Contains(t, out, `    jwt_secret: "********"`)
	assert.NotContains(t, out, secret)
}
