package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bjtj/bjtj/internal/client"
	"github.com/bjtj/bjtj/internal/game"
)

const requestTimeout = 15 * time.Second

// Model is the Bubble Tea model for the blackjack table.
type Model struct {
	client *client.Client
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	input       textinput.Model

	// State
	view     *game.PublicView
	history  []string
	width    int
	height   int
	quitting bool
	lastErr  string

	// Push stream
	stream <-chan *game.PublicView
}

type viewMsg struct {
	view *game.PublicView
	note string
}

type errMsg struct{ err error }

type streamMsg struct{ view *game.PublicView }

type streamClosedMsg struct{}

// NewModel creates the table model around an API client.
func NewModel(c *client.Client, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "deal [bet], hit, stand, double, split, cashout, quit"
	ti.Focus()
	ti.CharLimit = 40
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.Prompt = "> "

	return &Model{
		client:      c,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		input:       ti,
	}
}

// Init signs the player up and opens the push stream.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.signUp(), m.openStream())
}

func (m *Model) signUp() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		view, err := m.client.Autograph(ctx)
		if err != nil {
			return errMsg{err}
		}
		return viewMsg{view: view, note: "Connected"}
	}
}

type streamOpenedMsg struct {
	stream <-chan *game.PublicView
}

func (m *Model) openStream() tea.Cmd {
	logger := m.logger
	c := m.client
	return func() tea.Msg {
		stream, err := c.ViewStream(context.Background())
		if err != nil {
			// The table still works over plain requests
			logger.Debug("View stream unavailable", "error", err)
			return nil
		}
		return streamOpenedMsg{stream: stream}
	}
}

func (m *Model) waitForFrame() tea.Cmd {
	stream := m.stream
	return func() tea.Msg {
		view, ok := <-stream
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg{view: view}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = maxInt(msg.Width-4, 1)
		m.logViewport.Height = maxInt(msg.Height-14, 3)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "enter":
			cmd := m.submit(strings.TrimSpace(m.input.Value()))
			m.input.SetValue("")
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case streamOpenedMsg:
		m.stream = msg.stream
		cmds = append(cmds, m.waitForFrame())

	case viewMsg:
		m.lastErr = ""
		m.apply(msg.view, msg.note)

	case streamMsg:
		m.apply(msg.view, "")
		cmds = append(cmds, m.waitForFrame())

	case streamClosedMsg:
		m.addLog(HelpStyle.Render("view stream closed"))

	case errMsg:
		m.lastErr = msg.err.Error()
		m.addLog(ErrorStyle.Render(msg.err.Error()))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit parses a typed command into an API call.
func (m *Model) submit(input string) tea.Cmd {
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) == 0 {
		return nil
	}

	call := func(name string, fn func(context.Context) (*game.PublicView, error)) tea.Cmd {
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			view, err := fn(ctx)
			if err != nil {
				return errMsg{err}
			}
			return viewMsg{view: view, note: name}
		}
	}

	switch parts[0] {
	case "deal", "d":
		bet := 0
		if len(parts) > 1 {
			parsed, err := strconv.Atoi(parts[1])
			if err != nil {
				return func() tea.Msg { return errMsg{fmt.Errorf("bad bet %q", parts[1])} }
			}
			bet = parsed
		}
		return call("deal", func(ctx context.Context) (*game.PublicView, error) {
			return m.client.Deal(ctx, bet)
		})
	case "hit", "h":
		return call("hit", m.client.Hit)
	case "stand", "s":
		return call("stand", m.client.Stand)
	case "double":
		return call("double", m.client.Double)
	case "split":
		return call("split", m.client.Split)
	case "cashout":
		return call("cashout", m.client.Cashout)
	case "refresh", "r":
		return call("refresh", m.client.Refresh)
	case "quit", "q", "exit":
		m.quitting = true
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	default:
		return func() tea.Msg { return errMsg{fmt.Errorf("unknown command %q", parts[0])} }
	}
}

// apply installs a fresh view and records what changed in the log.
func (m *Model) apply(view *game.PublicView, note string) {
	m.view = view
	line := fmt.Sprintf("%s  chips %d", view.Phase, view.Chips)
	if note != "" {
		line = note + ": " + line
	}
	if view.Message != "" {
		line += "  " + view.Message
	}
	m.addLog(line)
}

func (m *Model) addLog(entry string) {
	m.history = append(m.history, entry)
	m.logViewport.SetContent(strings.Join(m.history, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(" blackjack "))
	b.WriteString("\n\n")
	b.WriteString(m.renderTable())
	b.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(maxInt(m.width-4, 1))
	b.WriteString(logStyle.Render(m.logViewport.View()))
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(ErrorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("deal [bet] • hit • stand • double • split • cashout • Ctrl+C to quit"))
	return b.String()
}

// renderTable renders the dealer and player hands from the current view.
func (m *Model) renderTable() string {
	if m.view == nil {
		return HelpStyle.Render("Waiting for the table...")
	}

	var b strings.Builder
	b.WriteString(PhaseStyle.Render(m.view.Phase))
	b.WriteString("  ")
	b.WriteString(ChipsStyle.Render(fmt.Sprintf("chips: %d", m.view.Chips)))
	b.WriteString("\n")

	switch {
	case m.view.DealerHand != nil:
		b.WriteString(fmt.Sprintf("Dealer: %s (%d)\n",
			formatCards(m.view.DealerHand.Cards), m.view.DealerHand.Total))
	case m.view.DealerUpcard != "":
		b.WriteString(fmt.Sprintf("Dealer: %s [??]\n", formatCard(m.view.DealerUpcard)))
	}

	for i, hand := range m.view.Hands {
		label := "Hand"
		if len(m.view.Hands) > 1 {
			label = fmt.Sprintf("Hand %d", i+1)
		}
		line := fmt.Sprintf("%s: %s (%d) %s", label, formatCards(hand.Cards), hand.Total, hand.Status)
		if hand.Status == "active" {
			line = ActiveHandStyle.Render("▶ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.view.Message != "" {
		b.WriteString(MessageStyle.Render(m.view.Message))
		b.WriteString("\n")
	}
	return b.String()
}

// formatCards formats cards with suit colors.
func formatCards(cards []string) string {
	formatted := make([]string, len(cards))
	for i, card := range cards {
		formatted[i] = formatCard(card)
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

func formatCard(card string) string {
	if strings.ContainsAny(card, "♥♦") {
		return RedCardStyle.Render(card)
	}
	return BlackCardStyle.Render(card)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
