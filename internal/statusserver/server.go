// Package statusserver exposes the current flash session's progress over
// HTTP, for external tooling to poll instead of parsing CLI output.
package statusserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Status is the current state of a flash operation, safe for concurrent
// updates from the flashing goroutine and reads from HTTP handlers.
type Status struct {
	mu          sync.RWMutex
	Board       string `json:"board"`
	TotalBytes  int    `json:"total_bytes"`
	DoneBytes   int    `json:"done_bytes"`
	State       string `json:"state"` // "" before any session, then "flashing", "verifying", "done", "error"
	Error       string `json:"error,omitempty"`
}

func (s *Status) Set(board string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Board = board
	s.TotalBytes = total
	s.DoneBytes = 0
	s.State = "flashing"
	s.Error = ""
}

func (s *Status) Advance(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DoneBytes += n
}

func (s *Status) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
}

func (s *Status) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = "error"
	s.Error = err.Error()
}

func (s *Status) snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Board: s.Board, TotalBytes: s.TotalBytes, DoneBytes: s.DoneBytes, State: s.State, Error: s.Error}
}

// Server is the optional local status daemon, following the same
// gin.New()+Recovery()+graceful-shutdown shape as the teacher's API
// server.
type Server struct {
	status *Status
	srv    *http.Server
}

// New builds a Server bound to addr, reporting on status.
func New(addr string, status *Status) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.snapshot())
	})

	return &Server{
		status: status,
		srv:    &http.Server{Addr: addr, Handler: router},
	}
}

// Run starts serving and blocks until ctx is canceled, at which point it
// shuts down gracefully with a 5s deadline.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// Addr returns the address the server was configured with, useful for
// logging the URL a caller should poll.
func (s *Server) Addr() string {
	return fmt.Sprintf("http://%s", s.srv.Addr)
}
