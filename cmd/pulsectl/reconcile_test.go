package main

import (
	"bytes"
	"testing"

	"github.com/fastprodman/pulsecards/internal/services/credits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintReports(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := printReports(&buf, []credits.Report{
		{UserID: "alice", Balance: 10, LedgerSum: 10},
		{UserID: "bob", Balance: 12, LedgerSum: 9},
	})
	require.ErrorIs(t, err, errMismatch)

	out := buf.String()
	assert.Contains(t, out, "bob")
	assert.NotContains(t, out, "alice")
	assert.Contains(t, out, "1 mismatched accounts")

	buf.Reset()
	require.NoError(t, printReports(&buf, []credits.Report{{UserID: "alice", Balance: 1, LedgerSum: 1}}))
	assert.Contains(t, buf.String(), "ledger consistent")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["reconcile"])
	assert.True(t, names["rebuild-cache"])

	flag := reconcileCmd.Flags().Lookup("user")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
