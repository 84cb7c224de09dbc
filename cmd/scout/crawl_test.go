package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scout-crawler/scout/internal/testutil"
)

func TestBuildConfigSeedFromArgs(t *testing.T) {
	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := buildConfig(cmd, []string{"http://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", cfg.Seed)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.True(t, cfg.RespectRobots)
}

func TestBuildConfigMissingSeed(t *testing.T) {
	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	_, err := buildConfig(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed")
}

func TestBuildConfigFlagOverrides(t *testing.T) {
	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"-d", "5",
		"-n", "50",
		"--delay", "2s",
		"--no-robots",
		"--fuzz",
		"--ext", ".php,.bak",
		"-H", "Authorization=Bearer tok",
		"-H", "X-Custom = 1 ",
	}))

	cfg, err := buildConfig(cmd, []string{"http://example.com"})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, 50, cfg.MaxURLs)
	assert.Equal(t, 2*time.Second, cfg.Delay)
	assert.False(t, cfg.RespectRobots)
	assert.True(t, cfg.Fuzzing.Enabled)
	assert.Equal(t, []string{".php", ".bak"}, cfg.Fuzzing.Extensions)
	assert.Equal(t, "Bearer tok", cfg.CustomHeaders["Authorization"])
	assert.Equal(t, "1", cfg.CustomHeaders["X-Custom"])
}

func TestBuildConfigInvalidHeader(t *testing.T) {
	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-H", "no-equals-sign"}))

	_, err := buildConfig(cmd, []string{"http://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid header")
}

func TestBuildConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.yaml")
	content := "seed: http://file.example\nmax_depth: 9\nconcurrency: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-c", path, "-d", "4"}))

	cfg, err := buildConfig(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://file.example", cfg.Seed)
	assert.Equal(t, 4, cfg.MaxDepth, "explicit flags override file values")
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestBuildConfigMissingFile(t *testing.T) {
	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := buildConfig(cmd, []string{"http://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestBuildConfigSeedArgOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: http://file.example\n"), 0o600))

	cmd := NewCrawlCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-c", path}))

	cfg, err := buildConfig(cmd, []string{"http://arg.example"})
	require.NoError(t, err)
	assert.Equal(t, "http://arg.example", cfg.Seed)
}

func TestCrawlCmdEndToEnd(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.BuildSite()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"crawl", srv.URL(),
		"-d", "1",
		"--delay", "0s",
		"--no-robots",
		"-t", "2s",
	})

	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, srv.URL()+"/a")
	assert.Contains(t, got, srv.URL()+"/b")
	assert.Contains(t, got, "COMPLETED")
	assert.Contains(t, got, "fetched:    3")
}

func TestCrawlCmdJSONOutput(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	srv.AddPage("/", `<html></html>`)

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"crawl", srv.URL(),
		"-d", "0",
		"--delay", "0s",
		"--no-robots",
		"--json",
	})

	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, `"url"`)
	assert.Contains(t, got, `"state":"COMPLETED"`)
}
