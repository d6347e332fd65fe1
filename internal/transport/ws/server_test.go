package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/events"
)

func dialTestServer(t *testing.T, bus *events.Bus, worldCtx func() map[string]any) (*websocket.Conn, func()) {
	t.Helper()
	s := NewServer(bus, worldCtx, nil)
	srv := httptest.NewServer(s.Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func sendHello(t *testing.T, conn *websocket.Conn, eventTypes ...string) {
	t.Helper()
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ObserverName:    "test-observer",
		Events:          eventTypes,
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

func TestHandshakeDeliversWelcome(t *testing.T) {
	bus := events.NewBus(nil)
	conn, done := dialTestServer(t, bus, func() map[string]any {
		return map[string]any{"time": map[string]any{"hour": 12}}
	})
	defer done()

	sendHello(t, conn)

	var welcome protocol.WelcomeMsg
	readMessage(t, conn, &welcome)
	if welcome.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", welcome.Type)
	}
	if welcome.ObserverID == "" {
		t.Fatalf("missing observer id")
	}
	if welcome.WorldContext == nil {
		t.Fatalf("missing world context")
	}
}

func TestEventsFlowToObserver(t *testing.T) {
	bus := events.NewBus(nil)
	conn, done := dialTestServer(t, bus, nil)
	defer done()

	sendHello(t, conn, protocol.EventTradeCompleted)

	var welcome protocol.WelcomeMsg
	readMessage(t, conn, &welcome)

	bus.Emit(protocol.EventTradeCompleted, protocol.Event{"transaction": 20})
	bus.Emit(protocol.EventTimeChanged, protocol.Event{"new_hour": 13}) // not subscribed

	var ev protocol.EventMsg
	readMessage(t, conn, &ev)
	if ev.Type != protocol.TypeEvent || ev.EventType != protocol.EventTradeCompleted {
		t.Fatalf("wrong event: %+v", ev)
	}
	if ev.Data["transaction"] != float64(20) {
		t.Fatalf("payload lost: %v", ev.Data)
	}
	if ev.EventID == "" || ev.Timestamp == "" {
		t.Fatalf("missing event metadata: %+v", ev)
	}
}

func TestRejectsWrongProtocolVersion(t *testing.T) {
	bus := events.NewBus(nil)
	conn, done := dialTestServer(t, bus, nil)
	defer done()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.9"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close on version mismatch")
	}
}

func TestRejectsNonHelloFirstMessage(t *testing.T) {
	bus := events.NewBus(nil)
	conn, done := dialTestServer(t, bus, nil)
	defer done()

	if err := conn.WriteJSON(map[string]any{"type": "EVENT"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close for non-HELLO first message")
	}
}

func TestSubscriptionsReleasedOnDisconnect(t *testing.T) {
	bus := events.NewBus(nil)
	conn, done := dialTestServer(t, bus, nil)

	sendHello(t, conn, protocol.EventTimeChanged)
	var welcome protocol.WelcomeMsg
	readMessage(t, conn, &welcome)

	done()

	// The reader loop notices the close and cancels its subscriptions.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if bus.ListenerCounts()[protocol.EventTimeChanged].Sync == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscriptions leaked after disconnect")
}
