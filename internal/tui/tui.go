// Package tui is the terminal table view: it renders every table
// snapshot the session observes and turns typed commands into room
// actions.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/blackjacktable/internal/deck"
	"github.com/lox/blackjacktable/internal/game"
	"github.com/lox/blackjacktable/internal/room"
)

// Model represents the Bubble Tea model for the blackjack table
type Model struct {
	session *room.Session
	logger  *log.Logger

	input textinput.Model

	table  *game.Table
	status string // transient feedback from the last command

	width    int
	height   int
	quitting bool
}

// updateMsg carries one observed table state into the update loop.
type updateMsg room.Update

// updatesClosedMsg signals the session ended.
type updatesClosedMsg struct{}

// actionDoneMsg carries the outcome of a dispatched command.
type actionDoneMsg struct {
	verb string
	err  error
}

// New creates a model bound to a running room session
func New(session *room.Session, logger *log.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "bet 100 | deal | hit | stand | double | split | next | quit"
	ti.Focus()
	ti.CharLimit = 40
	ti.Width = 60
	ti.Prompt = "> "

	return &Model{
		session: session,
		logger:  logger.WithPrefix("tui"),
		input:   ti,
		table:   session.Table(),
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.nextUpdate())
}

// nextUpdate returns a command that waits for the next table snapshot
func (m *Model) nextUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.session.Updates()
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(u)
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case updateMsg:
		if msg.Err != nil {
			m.status = ErrorStyle.Render(msg.Err.Error())
		} else {
			m.table = msg.Table
		}
		return m, m.nextUpdate()

	case updatesClosedMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case actionDoneMsg:
		if msg.err != nil {
			m.status = ErrorStyle.Render(fmt.Sprintf("%s: %v", msg.verb, msg.err))
		} else {
			m.status = SuccessStyle.Render(msg.verb)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.session.Close()
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "enter":
			cmd := m.dispatch(strings.TrimSpace(m.input.Value()))
			m.input.SetValue("")
			if cmd != nil {
				return m, cmd
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch parses a typed command and returns a command that runs the
// corresponding room action off the update loop.
func (m *Model) dispatch(line string) tea.Cmd {
	parts := strings.Fields(strings.ToLower(line))
	if len(parts) == 0 {
		return nil
	}
	verb := parts[0]

	run := func(fn func() error) tea.Cmd {
		return func() tea.Msg {
			return actionDoneMsg{verb: verb, err: fn()}
		}
	}

	switch verb {
	case "bet", "b":
		if len(parts) != 2 {
			m.status = ErrorStyle.Render("usage: bet <amount>")
			return nil
		}
		amount, err := strconv.Atoi(parts[1])
		if err != nil {
			m.status = ErrorStyle.Render("usage: bet <amount>")
			return nil
		}
		return run(func() error { return m.session.Bet(amount) })
	case "deal", "d":
		return run(m.session.Deal)
	case "hit", "h":
		return run(m.session.Hit)
	case "stand", "s":
		return run(m.session.Stand)
	case "double":
		return run(m.session.Double)
	case "split":
		return run(m.session.Split)
	case "next", "n":
		return run(m.session.NextRound)
	case "quit", "q":
		m.quitting = true
		m.session.Close()
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	default:
		m.status = ErrorStyle.Render(fmt.Sprintf("unknown command %q", verb))
		return nil
	}
}

// View renders the table
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf(" Blackjack · room %s ", m.session.Code())))
	b.WriteString("\n\n")

	t := m.table
	if t == nil {
		b.WriteString(InfoStyle.Render("Waiting for table..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderDealer(t))
		b.WriteString("\n")
		for _, id := range t.TurnOrder() {
			b.WriteString(m.renderPlayer(t, t.Players[id]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.renderPhase(t))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render("Enter to submit · Ctrl+C to quit"))
	return b.String()
}

// renderDealer renders the house hand. The hole card stays hidden until
// play reaches the dealer.
func (m *Model) renderDealer(t *game.Table) string {
	holeHidden := t.Status == game.StatusPlaying &&
		t.Turn != game.TurnDealer && t.Turn != game.TurnFinished

	if len(t.Dealer.Hand) == 0 {
		return fmt.Sprintf("Dealer  %s", InfoStyle.Render("no cards"))
	}
	if holeHidden {
		shown := formatCards(t.Dealer.Hand[:1])
		return fmt.Sprintf("Dealer  %s %s", shown, HiddenCardStyle.Render("[??]"))
	}
	return fmt.Sprintf("Dealer  %s (%d)", formatCards(t.Dealer.Hand), t.Dealer.Score)
}

func (m *Model) renderPlayer(t *game.Table, p *game.Player) string {
	var b strings.Builder

	name := p.Name
	if p.ID == m.session.PlayerID() {
		name += " (you)"
	}
	if p.IsHost {
		name += " " + HostStyle.Render("★")
	}
	if t.Turn == p.ID {
		name = TurnStyle.Render("▶ " + name)
	} else {
		name = "  " + name
	}
	b.WriteString(fmt.Sprintf("%s  $%d", name, p.Balance))
	if p.Bet > 0 && len(p.Hands) == 0 {
		b.WriteString(fmt.Sprintf("  bet $%d", p.Bet))
	}

	active := p.ActiveHand()
	for i, h := range p.Hands {
		marker := "  "
		if t.Turn == p.ID && i == active {
			marker = TurnStyle.Render(" →")
		}
		b.WriteString(fmt.Sprintf("\n   %s %s (%d) $%d %s",
			marker, formatCards(h.Cards), h.Score, h.Bet, handTag(h)))
	}
	return b.String()
}

func (m *Model) renderPhase(t *game.Table) string {
	if t.Error != "" {
		return ErrorStyle.Render("round aborted: " + t.Error)
	}
	switch t.Status {
	case game.StatusBetting:
		return InfoStyle.Render("Place your bets, then the host deals.")
	case game.StatusPlaying:
		if t.Turn == game.TurnDealer {
			return InfoStyle.Render("Dealer is playing...")
		}
		if t.Turn == m.session.PlayerID() {
			return TurnStyle.Render("Your turn.")
		}
		return InfoStyle.Render("Waiting for " + t.Turn + "...")
	case game.StatusFinished:
		return InfoStyle.Render("Round over. Host types 'next' for a new round.")
	default:
		return ""
	}
}

func handTag(h game.Hand) string {
	switch h.Status {
	case game.HandBetting:
		return InfoStyle.Render("no bet")
	case game.HandBlackjack:
		return SuccessStyle.Render("blackjack!")
	case game.HandBusted:
		return ErrorStyle.Render("bust")
	case game.HandStanding:
		if h.Doubled {
			return InfoStyle.Render("doubled, standing")
		}
		return InfoStyle.Render("standing")
	default:
		if h.Doubled {
			return InfoStyle.Render("doubled")
		}
		return ""
	}
}

// formatCards formats cards with suit colors
func formatCards(cards []deck.Card) string {
	formatted := make([]string, len(cards))
	for i, card := range cards {
		if card.IsRed() {
			formatted[i] = RedCardStyle.Render(card.String())
		} else {
			formatted[i] = BlackCardStyle.Render(card.String())
		}
	}
	return "[" + strings.Join(formatted, " ") + "]"
}
