// Package trade implements the validate-then-commit pipeline that moves
// items and settlement currency between an NPC and a Player inventory.
package trade

import (
	"fmt"
	"log"
	"time"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/catalogs"
	"embervale.ai/internal/sim/entity"
)

// Trade types, always from the player's perspective.
const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// EntityLookup resolves trade participants. The orchestrator implements it;
// tests supply fixtures.
type EntityLookup interface {
	GetNPCByID(id int) *entity.NPC
	GetPlayerByID(id int) *entity.Player
}

// Transaction is a proposed exchange. Created fresh per proposal, discarded
// after processing.
type Transaction struct {
	ID        string
	TradeType string
	Items     []map[string]int
	NPCID     int
	PlayerID  int
	Processed bool
	CreatedAt time.Time
}

func New(npcID, playerID int, tradeType string, items []map[string]int) *Transaction {
	return &Transaction{
		ID:        protocol.NewID(),
		TradeType: tradeType,
		Items:     items,
		NPCID:     npcID,
		PlayerID:  playerID,
		CreatedAt: time.Now().UTC(),
	}
}

// FromProposal builds a transaction from the boundary value.
func FromProposal(p protocol.TradeProposal) *Transaction {
	return New(p.NPCID, p.PlayerID, p.TradeType, p.Items)
}

type transfer struct {
	item     *entity.Item // resolved source entry
	quantity int
	from     *entity.Character
	to       *entity.Character
}

// Plan is the fully resolved outcome of validation: participants, per-item
// transfer directions, and the settlement total.
type Plan struct {
	NPC       *entity.NPC
	Player    *entity.Player
	TotalCost int
	Items     []map[string]int

	transfers    []transfer
	payer, payee *entity.Character
}

// Validate runs phase one. It mutates nothing and stops at the first failure,
// returning a nil plan and a human-readable rejection reason. Re-running it
// on an unchanged world yields the same plan and total cost.
func (t *Transaction) Validate(lookup EntityLookup) (*Plan, string) {
	if t.TradeType != TypeBuy && t.TradeType != TypeSell {
		return nil, fmt.Sprintf("unknown trade type %q", t.TradeType)
	}
	npc := lookup.GetNPCByID(t.NPCID)
	if npc == nil {
		return nil, fmt.Sprintf("NPC with ID %d not found", t.NPCID)
	}
	player := lookup.GetPlayerByID(t.PlayerID)
	if player == nil {
		return nil, fmt.Sprintf("player with ID %d not found", t.PlayerID)
	}

	plan := &Plan{NPC: npc, Player: player}
	for _, pair := range t.Items {
		for name, quantity := range pair {
			if quantity <= 0 {
				return nil, fmt.Sprintf("invalid quantity for %s: %d", name, quantity)
			}
			if t.TradeType == TypeBuy {
				src := npc.FindItemByName(name)
				if src == nil {
					return nil, fmt.Sprintf("the merchant doesn't have %s available", name)
				}
				if src.Quantity < quantity {
					return nil, fmt.Sprintf("the merchant only has %d %s(s), but you want %d", src.Quantity, name, quantity)
				}
				plan.TotalCost += src.Price * quantity
				plan.transfers = append(plan.transfers, transfer{item: src, quantity: quantity, from: &npc.Character, to: &player.Character})
			} else {
				src := player.FindItemByName(name)
				if src == nil {
					return nil, fmt.Sprintf("the player doesn't have %s to sell", name)
				}
				if src.Quantity < quantity {
					return nil, fmt.Sprintf("the player only has %d %s(s), but is trying to sell %d", src.Quantity, name, quantity)
				}
				plan.TotalCost += src.Price * quantity
				plan.transfers = append(plan.transfers, transfer{item: src, quantity: quantity, from: &player.Character, to: &npc.Character})
			}
			plan.Items = append(plan.Items, map[string]int{name: quantity})
		}
	}

	if t.TradeType == TypeBuy {
		plan.payer, plan.payee = &player.Character, &npc.Character
	} else {
		plan.payer, plan.payee = &npc.Character, &player.Character
	}
	funds := 0
	if gold := plan.payer.FindItemByName(catalogs.CurrencyName); gold != nil {
		funds = gold.Quantity
	}
	if funds < plan.TotalCost {
		if t.TradeType == TypeBuy {
			return nil, "the player has insufficient funds to purchase these items"
		}
		return nil, "the merchant has insufficient funds to purchase the player's items"
	}
	return plan, ""
}

// Execute runs phase two as a reservation commit: every planned decrement is
// re-verified against live inventories before anything moves, so a failed
// commit leaves both inventories untouched.
func (t *Transaction) Execute(plan *Plan) bool {
	type need struct {
		owner *entity.Character
		name  string
	}
	required := make(map[need]int)
	for _, tr := range plan.transfers {
		required[need{tr.from, tr.item.Name}] += tr.quantity
	}
	if plan.TotalCost > 0 {
		required[need{plan.payer, catalogs.CurrencyName}] += plan.TotalCost
	}
	for n, qty := range required {
		held := n.owner.FindItemByName(n.name)
		if held == nil || held.Quantity < qty {
			return false
		}
	}

	for _, tr := range plan.transfers {
		if !tr.from.RemoveItem(tr.item, tr.quantity) {
			return false
		}
		if err := tr.to.AddItem(tr.item, tr.quantity); err != nil {
			return false
		}
	}
	if plan.TotalCost > 0 {
		gold := plan.payer.FindItemByName(catalogs.CurrencyName)
		if gold == nil {
			return false
		}
		if !plan.payer.RemoveItem(gold, plan.TotalCost) {
			return false
		}
		if err := plan.payee.AddItem(gold, plan.TotalCost); err != nil {
			return false
		}
	}
	return true
}

// Process validates, then commits. All domain failures are reported through
// the result value; no error escapes a well-formed call.
func (t *Transaction) Process(lookup EntityLookup, logger *log.Logger) protocol.TradeResult {
	plan, reason := t.Validate(lookup)
	if plan == nil {
		if logger != nil {
			logger.Printf("trade rejected: id=%s npc=%d player=%d type=%s reason=%q", t.ID, t.NPCID, t.PlayerID, t.TradeType, reason)
		}
		return protocol.TradeResult{
			Status:       protocol.StatusFailed,
			Items:        []map[string]int{},
			ErrorMessage: reason,
		}
	}
	if !t.Execute(plan) {
		if logger != nil {
			logger.Printf("trade execution failed: id=%s npc=%d player=%d type=%s", t.ID, t.NPCID, t.PlayerID, t.TradeType)
		}
		return protocol.TradeResult{
			Status:       protocol.StatusFailed,
			Items:        []map[string]int{},
			ErrorMessage: "trade execution failed",
		}
	}
	if logger != nil {
		logger.Printf("trade completed: id=%s npc=%d player=%d type=%s total=%d", t.ID, t.NPCID, t.PlayerID, t.TradeType, plan.TotalCost)
	}
	return protocol.TradeResult{
		Status:      protocol.StatusSuccess,
		Items:       plan.Items,
		Transaction: plan.TotalCost,
	}
}
