package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"binroute/internal/model"

	"github.com/gorilla/websocket"
)

// Run events over WebSocket, using the graphql-transport-ws message shapes
// (connection_init, subscribe, next, complete) so existing clients can follow
// a run without a GraphQL server.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// RunEventsWSHandler handles /ws/runs
func (s *Server) RunEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		runID string
		ch    chan model.RunEvent
	}
	subs := map[string]sub{}
	pr := s.getPrincipal(r)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla connections allow one concurrent writer
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}
	next := func(id string, evt model.RunEvent) error {
		payload, _ := json.Marshal(map[string]any{"data": map[string]any{"runEvents": evt}})
		return write(wsMessage{Type: "next", ID: id, Payload: payload})
	}
	fail := func(id, message string) {
		payload, _ := json.Marshal([]map[string]string{{"message": message}})
		_ = write(wsMessage{Type: "error", ID: id, Payload: payload})
	}

	stop := make(chan struct{})
	defer close(stop)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			rid, _ := pl.Variables["runId"].(string)
			if rid == "" {
				fail(msg.ID, "runId required")
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				fail(msg.ID, "subscription id already in use")
				continue
			}
			run, err := s.Store.GetRun(r.Context(), pr.Tenant, rid)
			if err != nil {
				fail(msg.ID, "run not found")
				continue
			}
			ch := s.Broker.Subscribe(rid)
			// the run may have finished before the subscription was in place
			if cur, err := s.Store.GetRun(r.Context(), pr.Tenant, rid); err == nil {
				run = cur
			}
			if evt, done := terminalEvent(run); done {
				s.Broker.Unsubscribe(rid, ch)
				_ = next(msg.ID, evt)
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			subs[msg.ID] = sub{runID: rid, ch: ch}
			go func(id string, c chan model.RunEvent) {
				for evt := range c {
					if err := next(id, evt); err != nil {
						return
					}
					if evt.Terminal() {
						break
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.runID, s0.ch)
				delete(subs, msg.ID)
			}
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.runID, s0.ch)
		delete(subs, id)
	}
}
