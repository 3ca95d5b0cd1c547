package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInit_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}}))
	t.Cleanup(func() {
		mu.Lock()
		global = nil
		mu.Unlock()
	})

	With(zap.String("column", "amount")).Debug("profiled")
	Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"column":"amount"`)
	assert.Contains(t, string(b), `"message":"profiled"`)
}

func TestGet_DefaultsToNop(t *testing.T) {
	mu.Lock()
	global = nil
	mu.Unlock()
	assert.NotNil(t, Get())
}
