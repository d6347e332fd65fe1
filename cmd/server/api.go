package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/world"
)

// api is the thin JSON boundary in front of the world. Trade bodies are
// schema-validated before they reach the kernel.
type api struct {
	world       *world.World
	tradeSchema *jsonschema.Schema
	log         *log.Logger
}

func newAPI(w *world.World, schemasDir string, logger *log.Logger) (*api, error) {
	schema, err := jsonschema.Compile(filepath.Join(schemasDir, "trade.schema.json"))
	if err != nil {
		return nil, err
	}
	return &api{world: w, tradeSchema: schema, log: logger}, nil
}

func (a *api) handleState(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"stats":   a.world.Stats(),
		"context": a.world.WorldContext(),
	})
}

func (a *api) handleCharacters(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"characters": a.world.CharactersData(),
	})
}

func (a *api) handleTrade(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(rw, http.StatusMethodNotAllowed, protocol.ErrBadRequest, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "read body")
		return
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid JSON")
		return
	}
	if err := a.tradeSchema.Validate(raw); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrSchema, err.Error())
		return
	}
	var proposal protocol.TradeProposal
	if err := json.Unmarshal(body, &proposal); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid proposal")
		return
	}
	result := a.world.ProcessTrade(proposal)
	writeJSON(rw, http.StatusOK, result)
}

func (a *api) handleHistory(rw http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad limit")
			return
		}
		limit = n
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"events": a.world.Bus().History(eventType, limit),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, message string) {
	writeJSON(rw, status, protocol.ErrorMsg{Type: "ERROR", Code: code, Message: message})
}
