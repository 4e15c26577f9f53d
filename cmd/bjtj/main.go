package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/bjtj/bjtj/internal/client"
	"github.com/bjtj/bjtj/internal/tui"
)

var CLI struct {
	Server    string `short:"s" long:"server" default:"http://localhost:8080" help:"Server URL"`
	ID        string `long:"id" help:"Player id (0x + 40 hex chars); generated if omitted"`
	Autograph string `long:"autograph" help:"Signed autograph (0x + 130 hex chars); generated if omitted"`
	LogFile   string `long:"log-file" help:"Write debug logs to this file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logger := log.New(os.Stderr)
	logger.SetLevel(log.WarnLevel)
	if CLI.LogFile != "" {
		f, err := os.OpenFile(CLI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Printf("Error opening log file: %v\n", err)
			ctx.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logger = log.New(f)
		logger.SetLevel(log.DebugLevel)
	}

	id := CLI.ID
	if id == "" {
		var err error
		id, err = randomHex(20)
		if err != nil {
			fmt.Printf("Error generating player id: %v\n", err)
			ctx.Exit(1)
		}
	}
	autograph := CLI.Autograph
	if autograph == "" {
		var err error
		autograph, err = randomHex(65)
		if err != nil {
			fmt.Printf("Error generating autograph: %v\n", err)
			ctx.Exit(1)
		}
	}

	c := client.NewClient(CLI.Server, id, autograph, logger)
	model := tui.NewModel(c, logger)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		ctx.Exit(1)
	}
}

// randomHex returns a 0x-prefixed hex string of n random bytes. Dev-mode
// identities only; a real wallet signs its own autograph.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf), nil
}
