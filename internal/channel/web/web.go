// Package web implements a websocket chat channel: each connection is one
// conversation, carried over JSON frames.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/channel"
	"github.com/dayuer/chatgate/internal/config"
	"github.com/dayuer/chatgate/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// inboundFrame is one client message.
type inboundFrame struct {
	SessionID string `json:"sessionId"`
	Nickname  string `json:"nickname,omitempty"`
	Content   string `json:"content"`
}

// outboundFrame is one reply pushed to the client.
type outboundFrame struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
}

// wsConn pairs a websocket connection with a write mutex.
// gorilla/websocket does NOT support concurrent writes.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// Channel serves the websocket endpoint and routes replies back to the
// connection that owns each session.
type Channel struct {
	core *channel.ChatChannel
	port int

	mu    sync.RWMutex
	conns map[string]*wsConn // session id -> connection

	server *http.Server
}

// New creates a web channel listening on cfg.Channel.Web.Port.
func New(cfg *config.Config, br *bridge.Bridge, store session.Store) *Channel {
	port := 9899
	if cfg.Channel.Web != nil && cfg.Channel.Web.Port > 0 {
		port = cfg.Channel.Web.Port
	}
	ch := &Channel{
		port:  port,
		conns: make(map[string]*wsConn),
	}
	ch.core = channel.NewChatChannel("web", cfg, br, store, ch)
	return ch
}

func (ch *Channel) Name() string { return "web" }

// Start serves the websocket endpoint until ctx is cancelled.
func (ch *Channel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", ch.handleWS)

	ch.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", ch.port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Web] listening on :%d", ch.port)
		if err := ch.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ch.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Stop shuts down the channel core.
func (ch *Channel) Stop() error {
	ch.core.Stop()
	return nil
}

func (ch *Channel) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Web] upgrade error: %v", err)
		return
	}
	wc := &wsConn{conn: conn}

	var owned []string // sessions bound to this connection
	defer func() {
		ch.mu.Lock()
		for _, id := range owned {
			if ch.conns[id] == wc {
				delete(ch.conns, id)
			}
		}
		ch.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[Web] bad frame: %v", err)
			continue
		}
		if frame.SessionID == "" || frame.Content == "" {
			continue
		}

		ch.mu.Lock()
		if ch.conns[frame.SessionID] != wc {
			ch.conns[frame.SessionID] = wc
			owned = append(owned, frame.SessionID)
		}
		ch.mu.Unlock()

		ch.core.HandleInbound(bridge.ContextKindText, frame.Content, &bridge.ChatMessage{
			FromUserID:       frame.SessionID,
			FromUserNickname: frame.Nickname,
			OtherUserID:      frame.SessionID,
			ActualUserID:     frame.SessionID,
		})
	}
}

// Send pushes the reply to the session's connection.
func (ch *Channel) Send(reply bridge.Reply, c *bridge.Context) error {
	switch reply.Kind {
	case bridge.ReplyKindText, bridge.ReplyKindInfo, bridge.ReplyKindError,
		bridge.ReplyKindImageURL, bridge.ReplyKindVideoURL:
	default:
		return channel.ErrNotSupported
	}

	ch.mu.RLock()
	wc := ch.conns[c.Receiver]
	ch.mu.RUnlock()
	if wc == nil {
		return fmt.Errorf("no live connection for session %s", c.Receiver)
	}

	return wc.writeJSON(outboundFrame{
		SessionID: c.Receiver,
		Kind:      string(reply.Kind),
		Content:   reply.Content,
	})
}
