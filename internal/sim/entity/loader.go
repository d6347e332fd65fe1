package entity

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"embervale.ai/internal/sim/catalogs"
)

// CharacterConfig is the key-value record characters are constructed from.
type CharacterConfig struct {
	ID             int              `json:"id"`
	Name           string           `json:"name"`
	Role           string           `json:"role"`
	Attributes     Attributes       `json:"attributes"`
	Inventory      []map[string]int `json:"inventory"`
	FrontendConfig map[string]any   `json:"frontend_config"`
	GameplayConfig map[string]any   `json:"gameplay_config"`
	AgentConfig    map[string]any   `json:"ai_agent_config"`
}

func (cfg CharacterConfig) validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("character config: missing name")
	}
	if cfg.Role == "" {
		return fmt.Errorf("character config %q: missing role", cfg.Name)
	}
	return nil
}

// NewCharacter builds a character from a config record. Inventory entries
// referencing an unknown item def are skipped with a warning; this is a
// recoverable load-time condition, not a fatal error.
func NewCharacter(cfg CharacterConfig, cats *catalogs.Catalogs, logger *log.Logger) (*Character, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Character{
		ID:             cfg.ID,
		Name:           cfg.Name,
		Role:           cfg.Role,
		Attributes:     cfg.Attributes,
		FrontendConfig: cfg.FrontendConfig,
		GameplayConfig: cfg.GameplayConfig,
		catalog:        cats,
	}
	for _, entry := range cfg.Inventory {
		for name, qty := range entry {
			def, ok := cats.Items.Lookup(name)
			if !ok {
				if logger != nil {
					logger.Printf("character %s: unknown item %q, skipping", cfg.Name, name)
				}
				continue
			}
			it := NewItem(def)
			if err := it.SetQuantity(qty); err != nil {
				if logger != nil {
					logger.Printf("character %s: invalid quantity %d for %q, skipping", cfg.Name, qty, name)
				}
				continue
			}
			if it.Quantity == 0 {
				continue
			}
			c.Inventory = append(c.Inventory, it)
		}
	}
	return c, nil
}

func NewNPC(cfg CharacterConfig, cats *catalogs.Catalogs, logger *log.Logger) (*NPC, error) {
	c, err := NewCharacter(cfg, cats, logger)
	if err != nil {
		return nil, err
	}
	return &NPC{Character: *c, AgentConfig: cfg.AgentConfig}, nil
}

func NewPlayer(cfg CharacterConfig, cats *catalogs.Catalogs, logger *log.Logger) (*Player, error) {
	c, err := NewCharacter(cfg, cats, logger)
	if err != nil {
		return nil, err
	}
	return &Player{Character: *c}, nil
}

// LoadCharacters discovers NPC_*.json and Player_*.json records in dir,
// including one level of per-character folders. Files with an unknown naming
// pattern are skipped with a warning.
func LoadCharacters(dir string, cats *catalogs.Catalogs, logger *log.Logger) ([]*NPC, []*Player, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("characters dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			preferred := filepath.Join(full, e.Name()+".json")
			if _, err := os.Stat(preferred); err == nil {
				paths = append(paths, preferred)
				continue
			}
			inner, _ := filepath.Glob(filepath.Join(full, "*.json"))
			if len(inner) > 0 {
				paths = append(paths, inner[0])
			} else if logger != nil {
				logger.Printf("no JSON config in character folder %s", e.Name())
			}
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, full)
		}
	}

	var npcs []*NPC
	var players []*Player
	for _, path := range paths {
		base := filepath.Base(path)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		var cfg CharacterConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, nil, fmt.Errorf("character config %s: %w", base, err)
		}
		switch {
		case strings.HasPrefix(base, "NPC_"):
			npc, err := NewNPC(cfg, cats, logger)
			if err != nil {
				return nil, nil, err
			}
			npcs = append(npcs, npc)
		case strings.HasPrefix(base, "Player_"):
			player, err := NewPlayer(cfg, cats, logger)
			if err != nil {
				return nil, nil, err
			}
			players = append(players, player)
		default:
			if logger != nil {
				logger.Printf("skipping config with unknown naming pattern: %s", base)
			}
		}
	}
	if logger != nil {
		logger.Printf("loaded %d NPCs and %d players", len(npcs), len(players))
	}
	return npcs, players, nil
}
