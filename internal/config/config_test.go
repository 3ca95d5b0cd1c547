package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("XT_USER", "ann")
	t.Setenv("XT_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{in: "user: ${XT_USER}", want: "user: ann"},
		{in: "a: ${XT_USER}-${XT_USER}", want: "a: ann-ann"},
		{in: "e: '${XT_EMPTY}'", want: "e: ''"},
		{in: "broken: ${XT_USER", want: "broken: ${XT_USER"},
		{in: "none", want: "none"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, substituteEnvVars(tc.in))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("XT_PASSWORD", "s3cret")
	path := filepath.Join(t.TempDir(), "xtract.yaml")
	doc := `
api:
  server: catalog.local
  port: 9000
credentials:
  username: ann
  password: ${XT_PASSWORD}
settings:
  tokenfile: /tmp/token
engine:
  kind: postgres
  dsn: postgres://localhost/xtract
metrics:
  backend: pushgateway
  flush_every: 30s
profile:
  workers: 4
rules:
  legacy_concat: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://catalog.local:9000", cfg.API.BaseURL())
	assert.Equal(t, "s3cret", cfg.Credentials.Password)
	assert.Equal(t, "/tmp/token", cfg.Settings.TokenFile)
	assert.Equal(t, "postgres", cfg.Engine.Kind)
	assert.Equal(t, 30*time.Second, cfg.Metrics.FlushEvery)
	assert.Equal(t, "http://localhost:9091", cfg.Metrics.PushgatewayURL, "defaults survive partial files")
	assert.Equal(t, 4, cfg.Profile.Workers)
	assert.True(t, cfg.Rules.LegacyConcat)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  sever: typo\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_EmptyDocumentKeepsDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg))
	assert.Equal(t, "sqlite", cfg.Engine.Kind)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := Default()
	want.Credentials.Username = "bob"
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Backend = "statsd"
	cfg.Engine.Kind = ""
	cfg.Profile.Workers = -1
	cfg.API.Port = 70000

	assert.Len(t, cfg.Validate(), 4)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://catalog", API{Server: "catalog", Scheme: "https"}.BaseURL())
}
