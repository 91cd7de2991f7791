package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "calc", "reconcile", "renewals", "renew", "balances", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "commissions", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCalcCommand_Flags(t *testing.T) {
	for _, name := range []string{"type", "premium", "pct", "origination", "effective"} {
		assert.NotNil(t, calcCmd.Flags().Lookup(name), "calc should have --%s flag", name)
	}
	typeFlag := calcCmd.Flags().Lookup("type")
	assert.Equal(t, "NEW", typeFlag.DefValue)
	for _, tt := range commission.TransactionTypes() {
		assert.Contains(t, typeFlag.Usage, string(tt))
	}
}

func TestReconcileCommand_Flags(t *testing.T) {
	flag := reconcileCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "f", flag.Shorthand)

	dry := reconcileCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dry)
	assert.Equal(t, "false", dry.DefValue)
}

func TestRenewCommand_Flags(t *testing.T) {
	for _, name := range []string{"term-months", "policy-number", "premium"} {
		assert.NotNil(t, renewCmd.Flags().Lookup(name), "renew should have --%s flag", name)
	}
	assert.NotNil(t, renewalsCmd.Flags().Lookup("window"))
	assert.NotNil(t, renewalsCmd.Flags().Lookup("as-of"))
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "csv", flag.DefValue)
	assert.NotNil(t, exportCmd.Flags().Lookup("table"))
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
}
