package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/blackjacktable/internal/room"
	"github.com/lox/blackjacktable/internal/store"
)

// RoomsCmd lists the rooms a server currently hosts
type RoomsCmd struct {
	Addr string `kong:"short='a',default='ws://localhost:8080/store',help='Store server URL'"`
}

func (c *RoomsCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.DialWSStore(ctx, c.Addr, log.New(io.Discard))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.Addr, err)
	}
	defer st.Close()

	listings, err := room.Lobby(ctx, st)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Println("No rooms.")
		return nil
	}

	fmt.Printf("%-6s %-10s %-8s %s\n", "CODE", "STATUS", "PLAYERS", "JOINABLE")
	for _, l := range listings {
		joinable := "no"
		if l.Open {
			joinable = "yes"
		}
		fmt.Printf("%-6s %-10s %-8d %s\n", l.Code, l.Status, l.Players, joinable)
	}
	return nil
}
