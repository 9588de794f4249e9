package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/blackjacktable/internal/room"
	"github.com/lox/blackjacktable/internal/roomid"
	"github.com/lox/blackjacktable/internal/store"
	"github.com/lox/blackjacktable/internal/tui"
)

// PlayCmd connects to a server and seats the player at a table
type PlayCmd struct {
	Addr     string `kong:"short='a',default='ws://localhost:8080/store',help='Store server URL'"`
	Name     string `kong:"short='n',help='Player name'"`
	Room     string `kong:"short='r',help='Room code to join (omit to create a new room)'"`
	LogFile  string `kong:"default='blackjack-client.log',help='Log file path'"`
	LogLevel string `kong:"short='l',default='info',help='Log level'"`
}

func (c *PlayCmd) Run() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		fmt.Print("Enter your player name: ")
		var input string
		_, _ = fmt.Scanln(&input)
		name = strings.TrimSpace(input)
		if name == "" {
			return fmt.Errorf("player name is required")
		}
	}

	// Log to a file; the terminal belongs to the TUI.
	logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := newLogger(logFile, c.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.DialWSStore(ctx, c.Addr, logger)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.Addr, err)
	}
	defer st.Close()

	// Player ids must be unique per seat, not per person; two Alices at
	// one table stay distinct.
	playerID := sanitizeID(name) + "-" + strings.ToLower(roomid.Generate())

	var session *room.Session
	if c.Room == "" {
		session, err = room.Create(context.Background(), st, playerID, name, room.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		logger.Info("created room", "code", session.Code())
	} else {
		code := strings.ToUpper(strings.TrimSpace(c.Room))
		session, err = room.Join(context.Background(), st, code, playerID, name, room.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("join room %s: %w", code, err)
		}
		logger.Info("joined room", "code", code)
	}
	defer session.Close()

	p := tea.NewProgram(tui.New(session, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// sanitizeID reduces a display name to characters safe inside a store
// path. Names are free-form; ids are path segments, so anything outside
// lowercase alphanumerics is dropped.
func sanitizeID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "player"
	}
	return b.String()
}
