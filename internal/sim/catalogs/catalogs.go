package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalogs holds the read-only shared definitions entities are materialized
// from. Inventories own independent copies; the catalog itself is never
// mutated after Load.
type Catalogs struct {
	Items ItemCatalog
}

type ItemCatalog struct {
	Names  []string           // display names, sorted
	Defs   map[string]ItemDef // keyed by lower-cased name
	Digest string
}

// ItemDef is the catalog identity of an item: everything except quantity.
type ItemDef struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	IconPos     []int              `json:"icon_pos"`
	Tradable    bool               `json:"tradable"`
	Price       int                `json:"price"`
	Effect      map[string]float64 `json:"effect"`
}

// CurrencyName is the designated settlement currency. This is a naming
// convention shared with the item defs, not a type distinction.
const CurrencyName = "Gold Coin"

// Load reads every item def under <dir>/items/*.json.
func Load(dir string) (*Catalogs, error) {
	itemsDir := filepath.Join(dir, "items")
	entries, err := os.ReadDir(itemsDir)
	if err != nil {
		return nil, fmt.Errorf("items dir: %w", err)
	}

	var defs []ItemDef
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(itemsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		var def ItemDef
		if err := json.Unmarshal(b, &def); err != nil {
			return nil, fmt.Errorf("item def %s: %w", e.Name(), err)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("item def %s: missing name", e.Name())
		}
		defs = append(defs, def)
	}
	return New(defs)
}

// New builds a catalog from in-memory defs. Names must be unique
// (case-insensitive).
func New(defs []ItemDef) (*Catalogs, error) {
	c := &Catalogs{Items: ItemCatalog{Defs: make(map[string]ItemDef, len(defs))}}
	for _, def := range defs {
		key := strings.ToLower(def.Name)
		if _, dup := c.Items.Defs[key]; dup {
			return nil, fmt.Errorf("duplicate item def: %s", def.Name)
		}
		c.Items.Defs[key] = def
		c.Items.Names = append(c.Items.Names, def.Name)
	}
	sort.Strings(c.Items.Names)
	c.Items.Digest = digestDefs(c.Items)
	return c, nil
}

// Lookup resolves an item def by name, case-insensitive.
func (ic ItemCatalog) Lookup(name string) (ItemDef, bool) {
	def, ok := ic.Defs[strings.ToLower(name)]
	return def, ok
}

func digestDefs(ic ItemCatalog) string {
	ordered := make([]ItemDef, 0, len(ic.Names))
	for _, name := range ic.Names {
		ordered = append(ordered, ic.Defs[strings.ToLower(name)])
	}
	b, _ := json.Marshal(ordered)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
