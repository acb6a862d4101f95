package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"hunt", "serve", "runs", "leads", "extract", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hunter-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestHuntCommand_Flags(t *testing.T) {
	for _, name := range []string{"intent", "city", "time-filter", "user", "mode", "json"} {
		require.NotNil(t, huntCmd.Flags().Lookup(name), "hunt command should have --%s flag", name)
	}
	assert.Equal(t, "qdr:m", huntCmd.Flags().Lookup("time-filter").DefValue)
	assert.Equal(t, "admin", huntCmd.Flags().Lookup("user").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLeadsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range leadsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["count"])
	assert.NotNil(t, leadsListCmd.Flags().Lookup("csv"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["stats"])
}
