package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Rooms  []RoomConfig   `hcl:"room,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	RedisURL string `hcl:"redis_url,optional"`
	// StartingBalance is granted to a user on first sight. Standalone
	// runs need funded players; set to 0 when accounts are provisioned
	// externally.
	StartingBalance int `hcl:"starting_balance,optional"`
}

// RoomConfig defines one table. Durations are in seconds; zero values
// take the variant defaults.
type RoomConfig struct {
	ID                 string `hcl:"id,label"`
	Variant            string `hcl:"variant"`
	MinBet             int    `hcl:"min_bet,optional"`
	RakePercent        int    `hcl:"rake_percent,optional"`
	JackpotPercent     int    `hcl:"jackpot_percent,optional"`
	BettingStructure   string `hcl:"betting_structure,optional"`
	MaxRaiseMultiplier int    `hcl:"max_raise_multiplier,optional"`
	TurnTimeoutSecs    int    `hcl:"turn_timeout,optional"`
	ResetDelaySecs     int    `hcl:"reset_delay,optional"`
	MinPlayers         int    `hcl:"min_players,optional"`
	MaxPlayers         int    `hcl:"max_players,optional"`
	BuyIn              int    `hcl:"buy_in,optional"`
}

// DefaultConfig returns the configuration used when no file exists:
// one table of each variant on localhost.
func DefaultConfig() *Config {
	c := &Config{
		Server: ServerSettings{
			Host:     "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Rooms: []RoomConfig{
			{
				ID:      "holdem-1",
				Variant: "holdem",
				MinBet:  50,
			},
			{
				ID:               "stud-1",
				Variant:          "stud",
				MinBet:           1000,
				BettingStructure: "1-2-3-3",
			},
		},
	}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from an HCL file. A missing file
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

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.StartingBalance == 0 {
		c.Server.StartingBalance = 1_000_000
	}

	for i := range c.Rooms {
		room := &c.Rooms[i]
		if room.MinBet == 0 {
			if room.Variant == "stud" {
				room.MinBet = 1000
			} else {
				room.MinBet = 50
			}
		}
		if room.RakePercent == 0 {
			room.RakePercent = 5
		}
		if room.JackpotPercent == 0 {
			room.JackpotPercent = 2
		}
		if room.MinPlayers == 0 {
			room.MinPlayers = 2
		}
		if room.MaxPlayers == 0 {
			room.MaxPlayers = 9
		}
		if room.BuyIn == 0 {
			room.BuyIn = room.MinBet * 100
		}
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room must be configured")
	}

	seen := make(map[string]bool)
	for _, room := range c.Rooms {
		if seen[room.ID] {
			return fmt.Errorf("duplicate room id %q", room.ID)
		}
		seen[room.ID] = true

		if room.Variant != "holdem" && room.Variant != "stud" {
			return fmt.Errorf("room %s: unknown variant %q", room.ID, room.Variant)
		}
		if room.MinBet <= 0 {
			return fmt.Errorf("room %s: min bet must be positive", room.ID)
		}
		if room.RakePercent < 0 || room.RakePercent > 100 {
			return fmt.Errorf("room %s: rake percent out of range", room.ID)
		}
		if room.JackpotPercent < 0 || room.JackpotPercent > 100 {
			return fmt.Errorf("room %s: jackpot percent out of range", room.ID)
		}
		if room.MinPlayers < 2 {
			return fmt.Errorf("room %s: min players must be at least 2", room.ID)
		}
		if room.MaxPlayers < room.MinPlayers || room.MaxPlayers > 10 {
			return fmt.Errorf("room %s: max players must be between min players and 10", room.ID)
		}
		if room.BuyIn <= 0 {
			return fmt.Errorf("room %s: buy-in must be positive", room.ID)
		}
	}
	return nil
}

// ListenAddress returns the host:port the server should bind.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RoomByID returns a room configuration by id.
func (c *Config) RoomByID(id string) *RoomConfig {
	for i := range c.Rooms {
		if c.Rooms[i].ID == id {
			return &c.Rooms[i]
		}
	}
	return nil
}
