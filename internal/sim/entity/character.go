package entity

import (
	"encoding/json"
	"strings"

	"embervale.ai/internal/sim/catalogs"
)

// Attributes is the fixed character schema plus an open extension map for
// config keys the core does not interpret.
type Attributes struct {
	Level        int
	Health       int
	Relationship float64 // [-1,1], meaningful for NPCs only

	Extra map[string]any
}

var knownAttrKeys = map[string]struct{}{
	"level": {}, "health": {}, "relationship": {},
}

func (a *Attributes) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if v, ok := raw["level"]; ok {
		if err := json.Unmarshal(v, &a.Level); err != nil {
			return err
		}
	}
	if v, ok := raw["health"]; ok {
		if err := json.Unmarshal(v, &a.Health); err != nil {
			return err
		}
	}
	if v, ok := raw["relationship"]; ok {
		if err := json.Unmarshal(v, &a.Relationship); err != nil {
			return err
		}
	}
	for k, v := range raw {
		if _, known := knownAttrKeys[k]; known {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		a.Extra[k] = val
	}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Extra)+3)
	for k, v := range a.Extra {
		m[k] = v
	}
	m["level"] = a.Level
	m["health"] = a.Health
	m["relationship"] = a.Relationship
	return json.Marshal(m)
}

// Character is an identity plus an owned inventory. The inventory is ordered,
// unique by name, and holds no zero-quantity entries.
type Character struct {
	ID         int
	Name       string
	Role       string
	Attributes Attributes
	Inventory  []*Item

	// Presentation metadata passed through untouched for the rendering layer.
	FrontendConfig map[string]any
	GameplayConfig map[string]any

	catalog *catalogs.Catalogs
}

func (c *Character) findIndex(name string) int {
	for i, it := range c.Inventory {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}

// FindItemByName looks up an inventory entry case-insensitively. Returns nil
// when absent.
func (c *Character) FindItemByName(name string) *Item {
	if i := c.findIndex(name); i >= 0 {
		return c.Inventory[i]
	}
	return nil
}

// AddItem adds quantity of the named item. An existing entry is incremented;
// otherwise a fresh instance is resolved from the catalog (cloned from the
// argument when the catalog has no def), so callers never alias inventory
// state across characters.
func (c *Character) AddItem(item *Item, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.findIndex(item.Name); i >= 0 {
		return c.Inventory[i].SetQuantity(c.Inventory[i].Quantity + quantity)
	}
	fresh := c.resolve(item)
	if err := fresh.SetQuantity(quantity); err != nil {
		return err
	}
	c.Inventory = append(c.Inventory, fresh)
	return nil
}

func (c *Character) resolve(item *Item) *Item {
	if c.catalog != nil {
		if def, ok := c.catalog.Items.Lookup(item.Name); ok {
			return NewItem(def)
		}
	}
	return item.Clone()
}

// RemoveItem removes quantity of the named item. It never errors: a missing
// entry, insufficient stock, or a non-positive quantity leaves the inventory
// unchanged and returns false. An entry that reaches zero is deleted.
func (c *Character) RemoveItem(item *Item, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	i := c.findIndex(item.Name)
	if i < 0 {
		return false
	}
	target := c.Inventory[i]
	if target.Quantity < quantity {
		return false
	}
	if target.Quantity == quantity {
		c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
		return true
	}
	_ = target.SetQuantity(target.Quantity - quantity)
	return true
}

// Stats returns the summary view shown to players.
func (c *Character) Stats() map[string]any {
	return map[string]any{
		"name":   c.Name,
		"role":   c.Role,
		"level":  c.Attributes.Level,
		"health": c.Attributes.Health,
	}
}

// InventoryInfo returns the detail view of every entry.
func (c *Character) InventoryInfo() []map[string]any {
	out := make([]map[string]any, 0, len(c.Inventory))
	for _, it := range c.Inventory {
		out = append(out, it.Info())
	}
	return out
}

var defaultSprites = map[string]string{
	"Merchant": "/assets/characters/merchant.png",
	"Warrior":  "/assets/characters/player.png",
	"Player":   "/assets/characters/player.png",
}

// FrontendData merges identity, stats and presentation config for the
// rendering boundary, filling sprite and position defaults.
func (c *Character) FrontendData() map[string]any {
	data := map[string]any{
		"id":    c.ID,
		"name":  c.Name,
		"role":  c.Role,
		"stats": c.Stats(),
	}
	for k, v := range c.FrontendConfig {
		data[k] = v
	}
	if _, ok := data["sprite"]; !ok {
		sprite, ok := defaultSprites[c.Role]
		if !ok {
			sprite = "/assets/characters/npc_2.png"
		}
		data["sprite"] = sprite
	}
	if _, ok := data["position"]; !ok {
		data["position"] = map[string]any{"x": 500, "y": 500}
	}
	return data
}

// APIData returns the full character view for API responses.
func (c *Character) APIData() map[string]any {
	return map[string]any{
		"id":              c.ID,
		"name":            c.Name,
		"role":            c.Role,
		"stats":           c.Stats(),
		"frontend_config": c.FrontendConfig,
		"gameplay_config": c.GameplayConfig,
	}
}

// NPC carries agent configuration the core hands through to the excluded
// conversational layer.
type NPC struct {
	Character
	AgentConfig map[string]any
}

// Stats adds the relationship scalar to the base summary.
func (n *NPC) Stats() map[string]any {
	stats := n.Character.Stats()
	stats["relationship"] = n.Attributes.Relationship
	return stats
}

// FrontendData carries the NPC stats view, relationship included.
func (n *NPC) FrontendData() map[string]any {
	data := n.Character.FrontendData()
	data["stats"] = n.Stats()
	return data
}

// APIData carries the NPC stats view, relationship included.
func (n *NPC) APIData() map[string]any {
	data := n.Character.APIData()
	data["stats"] = n.Stats()
	return data
}

type Player struct {
	Character
}
