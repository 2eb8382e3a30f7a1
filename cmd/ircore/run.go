package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/auth"
	"github.com/ynotnauk/go-irc/cmd/ircore/commands"
	"github.com/ynotnauk/go-irc/config"
	"github.com/ynotnauk/go-irc/connection"
	"github.com/ynotnauk/go-irc/ctcp"
	"github.com/ynotnauk/go-irc/detect"
	"github.com/ynotnauk/go-irc/e2ee"
	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/events"
	"github.com/ynotnauk/go-irc/interfaces"
	"github.com/ynotnauk/go-irc/multiline"
	"github.com/ynotnauk/go-irc/protection"
	"github.com/ynotnauk/go-irc/store"
	"github.com/ynotnauk/go-irc/transport"
)

const (
	sourceURL    = "https://github.com/ynotnauk/go-irc"
	pingInterval = 2 * time.Minute
	readTimeout  = 5 * time.Minute
)

func newRunCommand(options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to every configured network",
		Long:  `Connects to every network in the config file and logs display lines and events until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), options)
		},
	}
}

func runClient(parent context.Context, options *rootOptions) error {
	cfg, err := config.Load(options.configPath)
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg.Logging.Level, options.verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	bus := events.NewBus(events.WithLogger(logger))
	bus.OnDisplay(func(message *entities.DisplayMessage) {
		logger.Info("Display",
			zap.String("connection", message.ConnectionID),
			zap.String("type", message.Type),
			zap.String("channel", message.Channel),
			zap.String("from", message.From),
			zap.String("text", message.Text),
			zap.Bool("encrypted", message.Encrypted),
		)
	})
	bus.Subscribe(events.AnyEvent, func(event *entities.Event) {
		logger.Debug("Event",
			zap.String("connection", event.ConnectionID),
			zap.String("name", event.Name),
			zap.Any("args", event.Args),
		)
	})

	manager, cleanup, err := buildManager(cfg, bus, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, entry := range cfg.Networks {
		network := entry.Network
		connectionConfig := entry.Connection
		id, err := manager.Connect(ctx, entry.ID, &network, &connectionConfig)
		if err != nil {
			logger.Error("Unable to connect", zap.String("network", entry.ID), zap.Error(err))
			continue
		}
		logger.Info("Connection started", zap.String("connection", id))
	}

	ignores := manager.ignores
	go func() {
		err := config.Watch(ctx, options.configPath, func(fresh *config.Config) {
			ignores.Replace(fresh.Ignore)
		}, config.WithLogger(logger))
		if err != nil {
			logger.Warn("Config watch stopped", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return manager.ClearAll()
		case <-ticker.C:
			for _, c := range manager.GetAllConnections() {
				if !c.Connected() {
					continue
				}
				if err := c.Ping(); err != nil {
					logger.Warn("Unable to ping", zap.String("connection", c.ID), zap.Error(err))
				}
			}
		}
	}
}

// client bundles the manager with the ignore list the config watcher
// refreshes.
type client struct {
	*connection.Manager
	ignores *protection.IgnoreList
}

func buildManager(cfg *config.Config, bus *events.Bus, logger *zap.Logger) (*client, func(), error) {
	ignores := protection.NewIgnoreList(cfg.Ignore...)
	responder := ctcp.NewResponder(ctcp.WithLogger(logger), ctcp.WithVersion(cfg.CTCP.Version))
	responder.On("SOURCE", &commands.SourceCTCPCommand{URL: sourceURL})
	provider := e2ee.NewBoxProvider()

	opts := []connection.Option{
		connection.WithLogger(logger),
		connection.WithDialer(transport.NewDialer(
			transport.WithLogger(logger),
			transport.WithConnOptions(
				transport.WithSendRate(2, 5),
				transport.WithReadTimeout(readTimeout),
			),
		)),
		connection.WithDisplay(bus),
		connection.WithEvents(bus),
		connection.WithServiceDetector(detect.NewCache(detect.WithLogger(logger))),
		connection.WithProtection(protection.NewFloodGuard(cfg.Protection.MessagesPerSecond, cfg.Protection.Burst)),
		connection.WithIgnores(ignores),
		connection.WithCTCP(responder),
		connection.WithMultiline(multiline.NewAssembler(multiline.WithLogger(logger))),
		connection.WithOverlay(func(c *connection.Context) interfaces.MarkerInterceptor {
			return e2ee.NewOverlay(c.ID, c.NetworkName(), provider, c,
				e2ee.WithLogger(logger),
				e2ee.WithDisplay(bus),
				e2ee.WithEvents(bus),
				e2ee.WithUsers(c.State),
			)
		}),
		connection.WithChannelAnnouncer(func(connectionID string, channel string) {
			logger.Debug("Channel updated", zap.String("connection", connectionID), zap.String("channel", channel))
		}),
	}

	cleanup := func() {}
	if cfg.Storage.TopicDatabase != "" {
		topics, err := store.NewSQLiteTopicStore(cfg.Storage.TopicDatabase)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if err := topics.Close(); err != nil {
				logger.Warn("Unable to close topic store", zap.Error(err))
			}
		}
		opts = append(opts, connection.WithTopicStore(topics))
	} else {
		opts = append(opts, connection.WithTopicStore(store.NewMemoryTopicStore()))
	}
	if cfg.Storage.IdentityDir != "" {
		profiles, err := store.NewIdentityFilesystemStore(cfg.Storage.IdentityDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, connection.WithIdentityProfiles(profiles))
	}
	if cfg.Storage.AuthDir != "" {
		authStore, err := store.NewAuthFilesystemStore(cfg.Storage.AuthDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		credentials, err := auth.NewStoredCredentialProvider(authStore)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, connection.WithCredentials(credentials))
	}

	return &client{Manager: connection.NewManager(opts...), ignores: ignores}, cleanup, nil
}
