package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
id: weather
version: 1.0
domain: weather
start:
  - intent: forecast
    continuation: forecast
responses:
  forecast:
    text: "Sunny."
`

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weather.yaml"), []byte(validYAML), 0o600))

	failed, err := runValidate(dir)
	require.NoError(t, err)
	assert.Zero(t, failed)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("id: ["), 0o600))
	failed, err = runValidate(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestRunValidate_Empty(t *testing.T) {
	_, err := runValidate(t.TempDir())
	assert.ErrorContains(t, err, "no handler definitions")
}
