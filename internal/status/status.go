// Package status serves a running job's progress over HTTP: a health check,
// the current snapshot as JSON, and a WebSocket stream of batch records.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/tracker"
)

// Message types sent on the WebSocket stream.
const (
	TypeReady = "status.ready"
	TypeBatch = "batch"
	TypeFinal = "final"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Message is one WebSocket frame.
type Message struct {
	Type         string               `json:"type"`
	RunID        string               `json:"runId"`
	ConnectionID string               `json:"connectionId,omitempty"`
	Batch        *tracker.BatchRecord `json:"batch,omitempty"`
	Final        *tracker.FinalRecord `json:"final,omitempty"`
}

// SnapshotResponse is the body of GET /snapshot.
type SnapshotResponse struct {
	RunID        string              `json:"runId"`
	BatchNumber  int64               `json:"batchNumber"`
	BatchElapsed float64             `json:"batchElapsed"`
	Record       tracker.BatchRecord `json:"record"`
}

// Server publishes progress for one run.
type Server struct {
	runID    string
	snapshot func() tracker.Snapshot
	log      *logger.Logger

	mu     sync.Mutex
	subs   map[chan Message]struct{}
	closed bool
}

// New returns a Server. snapshot must be safe to call from HTTP handlers
// while the job runs; pass a Guarded tracker's Snapshot. l may be nil.
func New(runID string, snapshot func() tracker.Snapshot, l *logger.Logger) *Server {
	return &Server{
		runID:    runID,
		snapshot: snapshot,
		log:      l,
		subs:     make(map[chan Message]struct{}),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/snapshot", s.handleSnapshot)
	router.Get("/ws", s.handleWS)

	return router
}

// Publish sends a batch record to every subscriber. Slow subscribers miss
// records rather than holding up the job.
func (s *Server) Publish(snap tracker.Snapshot) {
	rec := tracker.Structured{}.BatchRecord(snap)
	s.broadcast(Message{Type: TypeBatch, RunID: s.runID, Batch: &rec})
}

// PublishFinal sends the whole-run record to every subscriber.
func (s *Server) PublishFinal(snap tracker.Snapshot) {
	rec := tracker.Structured{}.FinalRecord(snap)
	s.broadcast(Message{Type: TypeFinal, RunID: s.runID, Final: &rec})
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// Subscriber is behind, drop the record
		}
	}
}

// Close ends every WebSocket stream. Later publishes are dropped.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	// Hijacked WebSocket connections are not tracked by Shutdown
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot()
	resp := SnapshotResponse{
		RunID:        s.runID,
		BatchNumber:  snap.BatchNumber,
		BatchElapsed: snap.BatchElapsed,
		Record:       tracker.Structured{}.BatchRecord(snap),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.warn(fmt.Sprintf("snapshot encode failed: %v", err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.warn(fmt.Sprintf("websocket accept failed: %v", err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ch, ok := s.subscribe()
	if !ok {
		return
	}
	defer s.unsubscribe(ch)

	// Clients only listen; CloseRead handles their close frames
	ctx := conn.CloseRead(r.Context())

	ready := Message{Type: TypeReady, RunID: s.runID, ConnectionID: uuid.NewString()}
	if err := write(ctx, conn, ready); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			if err := write(ctx, conn, msg); err != nil {
				s.warn(fmt.Sprintf("websocket write failed: %v", err))
				return
			}
		}
	}
}

func (s *Server) subscribe() (chan Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	ch := make(chan Message, subscriberBuffer)
	s.subs[ch] = struct{}{}
	return ch, true
}

func (s *Server) unsubscribe(ch chan Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

func (s *Server) warn(msg string) {
	if s.log != nil {
		s.log.Warn("STATUS", msg)
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
