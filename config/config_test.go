package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ynotnauk/go-irc/ctcp"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/protection"
)

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "ircore.toml"))
	require.NoError(t, err)

	want := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Networks: []NetworkEntry{{
			ID: "libera",
			Network: entities.NetworkConfig{
				Name:            "Libera.Chat",
				Host:            "irc.libera.chat",
				Port:            6697,
				TLS:             true,
				NickServAccount: "tester",
				Capabilities:    []string{"server-time", "batch"},
			},
			Connection: entities.ConnectionConfig{
				Nick:        "tester",
				Username:    "tester",
				Realname:    "Test Account",
				QuitMessage: "bye",
				AutoJoin:    []string{"#go-nuts", "#ircv3"},
			},
		}},
		Protection: ProtectionConfig{MessagesPerSecond: 1.5, Burst: 3},
		Ignore:     []string{"spammer", "*!*@bad.example"},
		Storage: StorageConfig{
			IdentityDir:   "/var/lib/ircore/identities",
			AuthDir:       "/var/lib/ircore/auth",
			TopicDatabase: "/var/lib/ircore/topics.db",
		},
		CTCP: CTCPConfig{Version: "ircore 1.0"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLFillsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "ircore.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Networks, 1)

	entry := cfg.Networks[0]
	assert.Equal(t, "oftc", entry.ID)
	assert.True(t, entry.Network.InsecureSkipVerify)
	assert.Equal(t, "tester", entry.Connection.Realname)
	assert.Equal(t, DefaultCapabilities, entry.Network.Capabilities)
	assert.Equal(t, []string{"#debian"}, entry.Connection.AutoJoin)
	assert.Equal(t, protection.DefaultBurst, cfg.Protection.Burst)
	assert.Equal(t, ctcp.DefaultVersion, cfg.CTCP.Version)
	assert.Equal(t, []string{"troll"}, cfg.Ignore)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrBlankPath)

	_, err = Load("ircore.ini")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networks: [\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Networks = []NetworkEntry{
		{ID: "a", Network: entities.NetworkConfig{Host: "irc.a"}, Connection: entities.ConnectionConfig{Nick: "n"}},
		{ID: "a", Network: entities.NetworkConfig{Host: "irc.b"}, Connection: entities.ConnectionConfig{Nick: "n"}},
		{Network: entities.NetworkConfig{Port: 70000}},
	}
	err := cfg.Validate()
	var errs ValidateErrors
	require.ErrorAs(t, err, &errs)

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{
		"logging.level",
		"networks[1].id",
		"networks[2].id",
		"networks[2].network.host",
		"networks[2].network.port",
		"networks[2].connection.nick",
	}, fields)
	assert.Contains(t, err.Error(), "duplicate id 'a'")

	assert.NoError(t, Default().Validate())
}

const watchedConfig = `
[[networks]]
id = "%s"
[networks.network]
host = "irc.example"
[networks.connection]
nick = "tester"
`

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ircore.toml")
	write := func(id string) {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(watchedConfig, id)), 0o600))
	}
	write("first")

	var (
		mu  sync.Mutex
		ids []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			mu.Lock()
			ids = append(ids, cfg.Networks[0].ID)
			mu.Unlock()
		}, WithLogger(zaptest.NewLogger(t)), WithDebounce(20*time.Millisecond))
	}()

	reloaded := func(id string) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(ids) > 0 && ids[len(ids)-1] == id
		}
	}
	// The watcher may not be registered yet, so keep writing until seen
	assert.Eventually(t, func() bool {
		write("second")
		return reloaded("second")()
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("[[networks]]\nid = \"\"\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.True(t, reloaded("second")(), "invalid config must be skipped")

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchBlankPath(t *testing.T) {
	assert.ErrorIs(t, Watch(context.Background(), "", func(*Config) {}), ErrBlankPath)
}
