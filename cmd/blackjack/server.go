package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lox/blackjacktable/internal/room"
	"github.com/lox/blackjacktable/internal/serverconfig"
	"github.com/lox/blackjacktable/internal/store"
	"github.com/lox/blackjacktable/internal/storeserver"
)

// ServeCmd runs the store server every table replicates through
type ServeCmd struct {
	Config   string `kong:"short='c',default='blackjack-server.hcl',help='Path to HCL configuration file'"`
	Addr     string `kong:"short='a',help='Listen address (overrides config)'"`
	LogLevel string `kong:"short='l',help='Log level (overrides config)'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := serverconfig.Load(c.Config)
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	addr := cfg.ListenAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	logger := newLogger(os.Stderr, cfg.Server.LogLevel)
	logger.Info("starting blackjack store server",
		"addr", addr,
		"startingBalance", cfg.Game.StartingBalance,
		"decks", cfg.Game.Decks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.NewMemStore()
	// Publish the game settings so every joining client plays by this
	// server's rules rather than its own defaults.
	if err := room.PublishConfig(ctx, st, room.TableConfig{
		StartingBalance: cfg.Game.StartingBalance,
		Decks:           cfg.Game.Decks,
		DealerDrawMs:    cfg.Game.DealerDrawMs,
		DealerResolveMs: cfg.Game.DealerResolveMs,
	}); err != nil {
		return err
	}

	srv := storeserver.New(addr, st, logger)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
