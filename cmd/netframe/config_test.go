package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/netframe/internal/config"
	"github.com/danmuck/netframe/internal/testutil/testlog"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadServiceConfigTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "netframe.toml")
	require.NoError(t, config.WriteTemplate(path, config.KindService, false))

	svc, err := loadServiceConfig(path)
	require.NoError(t, err)
	require.Equal(t, "netframe", svc.Server.Name)
	require.Equal(t, ":17653", svc.Server.ListenAddr)
	require.Equal(t, "127.0.0.1:17654", svc.Server.AdminListenAddr)
	require.Equal(t, "echo", svc.Handler)
	require.Equal(t, 32<<20, svc.Server.Framing.MaxFrameLength)
	require.True(t, svc.Server.Framing.StripFrame)
	require.Equal(t, 100*time.Millisecond, svc.Server.Session.PollInterval)
	require.Equal(t, 15*time.Second, svc.Server.Session.WriteTimeout)
}

func TestLoadServiceConfigOverlaysDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, t.TempDir(), "svc.toml", `
name = "edge-a"
handler = "log"
admin_token = " tok "
read_timeout = "30s"
`)
	svc, err := loadServiceConfig(path)
	require.NoError(t, err)

	def := defaultServiceConfig()
	require.Equal(t, "edge-a", svc.Server.Name)
	require.Equal(t, "log", svc.Handler)
	require.Equal(t, "tok", svc.Server.AdminToken)
	require.Equal(t, 30*time.Second, svc.Server.Session.ReadTimeout)
	require.Equal(t, def.Server.ListenAddr, svc.Server.ListenAddr)
	require.Equal(t, def.Server.Framing, svc.Server.Framing)
	require.Equal(t, def.Server.Session.WriteTimeout, svc.Server.Session.WriteTimeout)
}

func TestLoadServiceConfigInlineFramingWinsOverProfile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeFile(t, dir, "framing.toml", `
max_frame_length = "4KiB"
length_field_offset = 2
strip_frame = false
`)
	path := writeFile(t, dir, "svc.toml", `
framing_profile = "framing.toml"
length_field_offset = 1
`)
	svc, err := loadServiceConfig(path)
	require.NoError(t, err)
	require.Equal(t, 4096, svc.Server.Framing.MaxFrameLength)
	require.Equal(t, 1, svc.Server.Framing.LengthFieldOffset)
	require.False(t, svc.Server.Framing.StripFrame)
}

func TestLoadServiceConfigErrors(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	cases := map[string]string{
		"unknown key":     "nmae = \"typo\"\n",
		"bad duration":    "write_timeout = \"soon\"\n",
		"bad size":        "max_frame_length = \"lots\"\n",
		"zero max":        "max_frame_length = \"0\"\n",
		"missing profile": "framing_profile = \"nope.toml\"\n",
		"bad origin":      "cors_origins = [\"localhost\"]\n",
		"tls no cert":     "[tls]\nenabled = true\n",
	}
	for name, body := range cases {
		path := writeFile(t, dir, "bad.toml", body)
		_, err := loadServiceConfig(path)
		require.Error(t, err, name)
	}
	_, err := loadServiceConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func TestLoadServiceConfigResolvesTLSPathsRelativeToFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	abs := filepath.Join(dir, "abs-ca.pem")
	path := writeFile(t, dir, "svc.toml", `
[tls]
enabled = true
cert_file = "certs/server.pem"
key_file = "certs/server.key"
ca_file = "`+abs+`"
`)
	svc, err := loadServiceConfig(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "certs", "server.pem"), svc.Server.Session.TLS.CertFile)
	require.Equal(t, filepath.Join(dir, "certs", "server.key"), svc.Server.Session.TLS.KeyFile)
	require.Equal(t, abs, svc.Server.Session.TLS.CAFile)
}

func TestConfigCommands(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, kind := range []string{config.KindService, config.KindFraming} {
		path := filepath.Join(dir, kind+".toml")

		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"config", "init", "--kind", kind, path})
		require.NoError(t, cmd.Execute())
		require.Contains(t, out.String(), "wrote "+kind)

		cmd = rootCmd()
		cmd.SetArgs([]string{"config", "init", "--kind", kind, path})
		require.Error(t, cmd.Execute(), "init must not overwrite without --force")

		out.Reset()
		cmd = rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"config", "validate", "--kind", kind, path})
		require.NoError(t, cmd.Execute())
		require.Contains(t, out.String(), "32 MiB")
	}
}
