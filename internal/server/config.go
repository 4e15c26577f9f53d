package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/bjtj/bjtj/internal/game"
)

// Config represents the complete server configuration
type Config struct {
	Server     ServerSettings   `hcl:"server,block"`
	Rules      *RulesConfig     `hcl:"rules,block"`
	Store      StoreConfig      `hcl:"store,block"`
	Auth       AuthConfig       `hcl:"auth,block"`
	Settlement SettlementConfig `hcl:"settlement,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// RulesConfig defines the house rules for the table
type RulesConfig struct {
	Decks            int   `hcl:"decks,optional"`
	StandOnSoft17    *bool `hcl:"stand_on_soft17,optional"`
	SplitBlackjack   *bool `hcl:"split_blackjack,optional"`
	DoubleAfterSplit *bool `hcl:"double_after_split,optional"`
	BlackjackNum     int   `hcl:"blackjack_payout_num,optional"`
	BlackjackDen     int   `hcl:"blackjack_payout_den,optional"`
	MaxHands         int   `hcl:"max_hands,optional"`
	StartingChips    int   `hcl:"starting_chips,optional"`
	DefaultBet       int   `hcl:"default_bet,optional"`
}

// StoreConfig defines where game state is persisted
type StoreConfig struct {
	Dir string `hcl:"dir,optional"`
}

// AuthConfig points at the autograph verification service. An empty URL
// means dev mode: format checks only.
type AuthConfig struct {
	URL    string `hcl:"url,optional"`
	Secret string `hcl:"secret,optional"`
}

// SettlementConfig points at the cash-out gateway. An empty URL means dev
// mode: receipts are echoed without moving funds.
type SettlementConfig struct {
	URL    string `hcl:"url,optional"`
	Secret string `hcl:"secret,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Store: StoreConfig{
			Dir: "bjtj-state",
		},
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Store.Dir == "" {
		config.Store.Dir = "bjtj-state"
	}

	return &config, nil
}

// GameRules merges the rules block over the engine defaults.
func (c *Config) GameRules() game.Rules {
	rules := game.DefaultRules()
	if c.Rules == nil {
		return rules
	}

	if c.Rules.Decks != 0 {
		rules.Decks = c.Rules.Decks
	}
	if c.Rules.StandOnSoft17 != nil {
		rules.StandOnSoft17 = *c.Rules.StandOnSoft17
	}
	if c.Rules.SplitBlackjack != nil {
		rules.SplitBlackjack = *c.Rules.SplitBlackjack
	}
	if c.Rules.DoubleAfterSplit != nil {
		rules.DoubleAfterSplit = *c.Rules.DoubleAfterSplit
	}
	if c.Rules.BlackjackNum != 0 {
		rules.BlackjackNum = c.Rules.BlackjackNum
	}
	if c.Rules.BlackjackDen != 0 {
		rules.BlackjackDen = c.Rules.BlackjackDen
	}
	if c.Rules.MaxHands != 0 {
		rules.MaxHands = c.Rules.MaxHands
	}
	if c.Rules.StartingChips != 0 {
		rules.StartingChips = c.Rules.StartingChips
	}
	if c.Rules.DefaultBet != 0 {
		rules.DefaultBet = c.Rules.DefaultBet
	}
	return rules
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store dir must not be empty")
	}
	if err := c.GameRules().Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	return nil
}

// ListenAddress returns the full address to bind to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
