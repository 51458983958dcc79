package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "sync")
	assert.Contains(t, names, "download")
	assert.Contains(t, names, "version")
}

func TestNewSyncCommand_RequiresExactlyOneArg(t *testing.T) {
	cmd := newSyncCommand()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"one", "two"}))
	assert.NoError(t, cmd.Args(cmd, []string{"account-id"}))
}

func TestNewDownloadCommand_RejectsNonNumericTrackID(t *testing.T) {
	cmd := newDownloadCommand()
	cmd.SetArgs([]string{"not-a-number"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid track id")
}

func TestNewDownloadCommand_RejectsNonNumericCandidateID(t *testing.T) {
	cmd := newDownloadCommand()
	cmd.SetArgs([]string{"42", "--candidate", "not-a-number"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid candidate id")
}

func TestNewDownloadCommand_FlagDefaults(t *testing.T) {
	cmd := newDownloadCommand()

	candidateFlag := cmd.Flags().Lookup("candidate")
	require.NotNil(t, candidateFlag)
	assert.Equal(t, "", candidateFlag.DefValue)

	forceFlag := cmd.Flags().Lookup("force")
	require.NotNil(t, forceFlag)
	assert.Equal(t, "false", forceFlag.DefValue)
}

func TestNewSyncCommand_ForceFlagDefaultsFalse(t *testing.T) {
	cmd := newSyncCommand()

	forceFlag := cmd.Flags().Lookup("force")
	require.NotNil(t, forceFlag)
	assert.Equal(t, "false", forceFlag.DefValue)
}
