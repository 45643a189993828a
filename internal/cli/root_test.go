package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := GetRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "wabridge", cmd.Use)
	assert.Equal(t, version, cmd.Version)
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := GetRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "flush")
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}
