package cli

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "panopticon", cmd.Use)
	assert.Contains(t, cmd.Long, "rules tree")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"diff", "dispatch", "validate", "test", "put", "get", "list", "audit"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestDocumentCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"put", "get", "audit"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			require.NotNil(t, sub.Flags().Lookup("db"))
			require.NotNil(t, sub.Flags().Lookup("id"))
			collection := sub.Flags().Lookup("collection")
			require.NotNil(t, collection)
			assert.Equal(t, DefaultCollection, collection.DefValue)
		})
	}

	put, _, err := cmd.Find([]string{"put"})
	require.NoError(t, err)
	assert.NotNil(t, put.Flags().Lookup("rules"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, "--format", "invalid", "diff", "a.json", "b.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoggerLevel(t *testing.T) {
	ctx := t.Context()

	quiet := (&RootOptions{}).Logger(nil)
	assert.False(t, quiet.Enabled(ctx, slog.LevelDebug))
	assert.True(t, quiet.Enabled(ctx, slog.LevelInfo))

	verbose := (&RootOptions{Verbose: true}).Logger(nil)
	assert.True(t, verbose.Enabled(ctx, slog.LevelDebug))
}
