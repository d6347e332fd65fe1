// Package ws serves the observer feed: any subscriber (logging, analytics,
// dashboards) can connect and receive world events as they are emitted,
// without the core knowing who listens.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"embervale.ai/internal/protocol"
	"embervale.ai/internal/sim/events"
)

type Server struct {
	bus      *events.Bus
	worldCtx func() map[string]any
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(bus *events.Bus, worldCtx func() map[string]any, logger *log.Logger) *Server {
	return &Server{
		bus:      bus,
		worldCtx: worldCtx,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}
		eventTypes := hello.Events
		if len(eventTypes) == 0 {
			eventTypes = protocol.EventTypes()
		}

		out := make(chan []byte, 64)
		done := make(chan struct{})

		// Subscribe before WELCOME so the observer misses nothing emitted
		// after the handshake completes.
		cancels := make([]func(), 0, len(eventTypes))
		for _, et := range eventTypes {
			cancels = append(cancels, s.bus.Subscribe(et, func(ev events.Event) error {
				msg := protocol.EventMsg{
					Type:            protocol.TypeEvent,
					ProtocolVersion: protocol.Version,
					EventID:         ev.ID,
					EventType:       ev.Type,
					Timestamp:       ev.Timestamp.Format(time.RFC3339Nano),
					Data:            ev.Data,
				}
				b, err := json.Marshal(msg)
				if err != nil {
					return err
				}
				select {
				case out <- b:
				default:
					// Drop for slow observers; the feed is best-effort.
				}
				return nil
			}))
		}
		defer func() {
			for _, cancel := range cancels {
				cancel()
			}
		}()

		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			ObserverID:      protocol.NewID(),
		}
		if s.worldCtx != nil {
			welcome.WorldContext = s.worldCtx()
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}
		if s.log != nil {
			s.log.Printf("observer connected: %s (%s), %d event types", welcome.ObserverID, hello.ObserverName, len(eventTypes))
		}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-done:
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: observers send nothing meaningful after HELLO; we
		// read only to detect close.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		close(done)
		if s.log != nil {
			s.log.Printf("observer disconnected: %s", welcome.ObserverID)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return hello, false
	}
	return hello, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
