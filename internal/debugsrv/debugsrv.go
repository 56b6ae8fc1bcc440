// Package debugsrv exposes the loader state over HTTP: /status returns the
// latest snapshot as JSON and /ws streams every change over a websocket.
package debugsrv

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"fortio.org/log"
	"github.com/gorilla/websocket"

	"idol-vr/internal/loader"
)

const writeWait = 2 * time.Second

// ResourceView is the JSON form of one resource record.
type ResourceView struct {
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	Tier    string `json:"tier"`
	Started bool   `json:"started"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`
}

// StatusView is the JSON form of a loader snapshot.
type StatusView struct {
	State     string         `json:"state"`
	Percent   int            `json:"percent"`
	Detail    string         `json:"detail"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	StartTime time.Time      `json:"start_time"`
	Resources []ResourceView `json:"resources"`
}

// View converts a snapshot for the wire.
func View(snap loader.Snapshot) StatusView {
	v := StatusView{
		State:     snap.State.String(),
		Percent:   snap.Percent,
		Detail:    snap.Detail,
		Completed: snap.Status.CompletedCount,
		Total:     snap.Status.TotalResources,
		StartTime: snap.Status.StartTime,
	}
	for _, res := range loader.Resources {
		st := snap.Status.Resources[res]
		v.Resources = append(v.Resources, ResourceView{
			Name:    res.String(),
			Phase:   st.Phase.String(),
			Tier:    st.Tier.String(),
			Started: st.Started(),
			Loaded:  st.Loaded(),
			Error:   st.ErrText(),
		})
	}
	return v
}

// Server publishes snapshots to HTTP clients. Publish may be called from
// the game loop; it never blocks on the network.
type Server struct {
	upgrader websocket.Upgrader
	updates  chan []byte

	lastMu sync.RWMutex
	last   []byte

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	http *http.Server
}

// New creates a server whose broadcaster runs until ctx is done.
func New(ctx context.Context) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		updates: make(chan []byte, 16),
		last:    []byte("{}"),
		clients: make(map[*websocket.Conn]bool),
	}
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go s.broadcastLoop(ctx)
	return s
}

// Publish records snap and queues it for websocket clients.
func (s *Server) Publish(snap loader.Snapshot) {
	data, err := json.Marshal(View(snap))
	if err != nil {
		log.Errf("Error marshaling status: %v", err)
		return
	}
	s.lastMu.Lock()
	s.last = data
	s.lastMu.Unlock()
	select {
	case s.updates <- data:
	default:
		log.LogVf("Debug update queue full, dropping one")
	}
}

// Handler serves /status and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until Shutdown. It returns nil at once if
// Shutdown already ran.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Infof("Starting debug server on http://%s", ln.Addr())
	err = s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMu.Lock()
	for c := range s.clients {
		c.Close()
		delete(s.clients, c)
	}
	s.clientsMu.Unlock()
	return s.http.Shutdown(ctx)
}

func (s *Server) current() []byte {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.current())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, s.current())
	if err == nil {
		s.clients[conn] = true
	}
	s.clientsMu.Unlock()
	if err != nil {
		conn.Close()
		return
	}
	log.LogVf("Debug client connected: %s", r.RemoteAddr)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
		log.LogVf("Debug client disconnected: %s", r.RemoteAddr)
	}()

	// Keep reading so close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.updates:
			s.broadcast(data)
		}
	}
}

func (s *Server) broadcast(data []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warnf("WebSocket write error: %v", err)
			c.Close()
			delete(s.clients, c)
		}
	}
}
