package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.Dispatch.ConcurrencyInSession)
	assert.Equal(t, 8, cfg.Dispatch.HandlerPoolSize)
	assert.Equal(t, "#", cfg.Dispatch.CommandPrefix)
	assert.Equal(t, 200, cfg.Dispatch.PollIntervalMs)
	assert.Equal(t, []string{"ALL_GROUP"}, cfg.Chat.GroupNameWhiteList)
	assert.True(t, cfg.Chat.TriggerBySelf)
	assert.Equal(t, 3600, cfg.Session.ExpiresSeconds)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Dispatch.ConcurrencyInSession = 2
	cfg.Chat.GroupChatReplyPrefix = "[bot] "
	cfg.Bot.Type = "echo"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Dispatch.ConcurrencyInSession)
	assert.Equal(t, "[bot] ", loaded.Chat.GroupChatReplyPrefix)
	assert.Equal(t, "echo", loaded.Bot.Type)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("dispatch:\n  concurrencyInSession: 3\n  commandPrefix: \"!\"\nbot:\n  type: echo\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Dispatch.ConcurrencyInSession)
	assert.Equal(t, "!", cfg.Dispatch.CommandPrefix)
	assert.Equal(t, "echo", cfg.Bot.Type)
	// Untouched sections keep defaults.
	assert.Equal(t, 8, cfg.Dispatch.HandlerPoolSize)
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
