package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistration(t *testing.T) {
	expected := []string{"ingest", "ask", "chat", "serve", "sessions", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, registered[name], "command %q not registered", name)
	}
}

func TestSessionsSubcommands(t *testing.T) {
	subs := make(map[string]bool)
	for _, c := range sessionsCmd.Commands() {
		subs[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "delete"} {
		assert.True(t, subs[name], "sessions subcommand %q not registered", name)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"error":   "ERROR",
		"unknown": "INFO",
		"":        "INFO",
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input).String(), "input %q", input)
	}
}

func TestRootHasDebugFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
