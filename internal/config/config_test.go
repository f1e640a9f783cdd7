package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func Test_Load_Applies_Defaults(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, "app:\n  env: dev\n")

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal(8084, cfg.App.Port)
	req.Equal("chat_messages", cfg.Mongo.MessagesCollection)
	req.Equal("chat.events", cfg.Nats.EventsSubject)
	req.Equal("info", cfg.LogLevel)
}

func Test_Load_Env_Overrides_Nested_Keys(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, "mongodb:\n  uri: mongodb://file:27017\napp:\n  port: 9000\n")
	t.Setenv("APP_MONGODB_URI", "mongodb://env:27017")

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal("mongodb://env:27017", cfg.Mongo.URI)
	req.Equal(9000, cfg.App.Port)
}
