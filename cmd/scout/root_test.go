package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "scout", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "crawl")
	assert.Contains(t, names, "init")
	assert.Contains(t, names, "version")
}

func TestRootCmdHelp(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "scout")
	assert.Contains(t, out.String(), "crawl")
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "scout version "))
	assert.Contains(t, out.String(), "commit:")
}

func TestGetVersionFallback(t *testing.T) {
	// Without ldflags the version comes from build info or the devel marker.
	assert.NotEmpty(t, getVersion())
	assert.NotEmpty(t, getCommit())
	assert.NotEmpty(t, getDate())
}
