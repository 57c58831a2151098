package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()

	for _, path := range [][]string{
		{"migrate"},
		{"bootstrap-admin"},
		{"outbox", "failed"},
		{"outbox", "replay"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"env", "config-dir", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestBootstrapAdmin_RequiresEmail(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"bootstrap-admin", "--password", "secret"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}
