package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "raftnode", cmd.Use)

	commands := cmd.Commands()
	assert.Len(t, commands, 3, "should have run, propose, and status subcommands")

	names := make(map[string]bool)
	for _, c := range commands {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["propose"])
	assert.True(t, names["status"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag, "should have --config flag")
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestBuildRunCommand(t *testing.T) {
	cmd := buildRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildProposeCommand(t *testing.T) {
	cmd := buildProposeCommand()

	assert.Equal(t, "propose", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("target"))
	assert.NotNil(t, cmd.Flags().Lookup("item"))
	assert.NotNil(t, cmd.RunE)
}

func TestBuildStatusCommand(t *testing.T) {
	cmd := buildStatusCommand()

	assert.Equal(t, "status", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("target"))
	assert.NotNil(t, cmd.RunE)
}

func TestProposeItemMissingConfigErrors(t *testing.T) {
	old := configFile
	configFile = "/nonexistent/config.yaml"
	defer func() { configFile = old }()

	err := proposeItem(1, []byte("x"))
	assert.Error(t, err)
}

func TestShowStatusMissingConfigErrors(t *testing.T) {
	old := configFile
	configFile = "/nonexistent/config.yaml"
	defer func() { configFile = old }()

	err := showStatus(1)
	assert.Error(t, err)
}
