package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComandosRegistrados(t *testing.T) {
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"auditar"},
		{"outbox", "procesar"},
		{"outbox", "pendientes"},
		{"deudas", "vencer"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateDown_ValidaN(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"migrate", "down", "cero"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive integer")
}

func TestDeudasVencer_ValidaFecha(t *testing.T) {
	rootCmd.SetArgs([]string{"deudas", "vencer", "--fecha", "31/03/2026"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}
