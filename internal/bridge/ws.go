// Package bridge exposes the lip-sync host over WebSocket. Clients submit speak
// payloads and receive a stream of weight frames. The bridge never touches the
// engine itself: requests are handed to the frame loop through Requests().
package bridge

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexlipsync/internal/bus"
)

// Message types on the wire.
const (
	TypeSpeak = "speak"
	TypeAck   = "ack"
	TypeError = "error"
	TypeFrame = "frame"
)

// WSMessage is the JSON envelope for every message in both directions.
type WSMessage struct {
	Type    string             `json:"type"`
	Payload string             `json:"payload,omitempty"`
	Error   string             `json:"error,omitempty"`
	Weights map[string]float32 `json:"weights,omitempty"`
}

// SpeakRequest is a payload waiting for the frame loop. The loop must send exactly
// one value on Result.
type SpeakRequest struct {
	Payload string
	Result  chan error
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server accepts WebSocket clients on the handler returned by Handler.
type Server struct {
	upgrader websocket.Upgrader
	requests chan *SpeakRequest
	events   *bus.EventBus
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a bridge. events may be nil.
func NewServer(log zerolog.Logger, events *bus.EventBus) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		requests: make(chan *SpeakRequest, 16),
		events:   events,
		log:      log,
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}
}

// Close stops serving speak requests once the frame loop is gone. Hijacked
// connections outlive http.Server.Shutdown, so handlers wait on this instead.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Requests delivers speak payloads to the frame loop.
func (s *Server) Requests() <-chan *SpeakRequest {
	return s.requests
}

// Handler serves the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.wsHandler)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends a weight frame to every client. Slow clients miss frames.
func (s *Server) Broadcast(weights map[string]float32) {
	data, err := json.Marshal(WSMessage{Type: TypeFrame, Weights: weights})
	if err != nil {
		s.log.Error().Err(err).Msg("Encode frame")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Server) wsHandler(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.publish(bus.EventTypeClientConnected, r.RemoteAddr)

	writerDone := make(chan struct{})
	go s.writeLoop(c, writerDone)

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.send)
		<-writerDone
		conn.Close()
		s.publish(bus.EventTypeClientDisconnected, r.RemoteAddr)
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if msg.Type != TypeSpeak {
			s.reply(c, WSMessage{Type: TypeError, Error: "unsupported message type " + msg.Type})
			continue
		}

		req := &SpeakRequest{Payload: msg.Payload, Result: make(chan error, 1)}
		select {
		case s.requests <- req:
		case <-s.done:
			return
		case <-r.Context().Done():
			return
		}

		select {
		case err := <-req.Result:
			if err != nil {
				s.reply(c, WSMessage{Type: TypeError, Error: err.Error()})
			} else {
				s.reply(c, WSMessage{Type: TypeAck})
			}
		case <-s.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) reply(c *client, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	// Replies must not be dropped, unlike frames.
	c.send <- data
}

func (s *Server) writeLoop(c *client, done chan<- struct{}) {
	defer close(done)
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write error")
			// Keep draining so senders never block on a dead client.
			for range c.send {
			}
			return
		}
	}
}

func (s *Server) publish(t bus.EventType, remote string) {
	if s.events == nil {
		return
	}
	s.events.Publish(bus.Event{Type: t, Data: map[string]any{"remote": remote}})
}
