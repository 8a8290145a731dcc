package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sz-labs/randombark/internal/app"
	"github.com/sz-labs/randombark/internal/domain"
	"github.com/sz-labs/randombark/internal/fetchstate"
	"github.com/sz-labs/randombark/internal/logger"
	"github.com/sz-labs/randombark/internal/metrics"
	"github.com/sz-labs/randombark/pkg/dogapi"
)

// Screen is the narrow screen contract the API renders.
type Screen interface {
	State() app.DogState
	BeginFetch() (string, error)
}

// Server exposes the current dog state and a re-fetch action over HTTP.
type Server struct {
	addr      string
	screen    Screen
	log       logger.Logger
	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, screen Screen, log logger.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	return &Server{
		addr:   addr,
		screen: screen,
		log:    logger.Ensure(log),
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), recordRequests())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/state", s.handleState)
	r.POST("/api/fetch", s.handleFetch)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

// Start listens on addr and serves in the background.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.ErrorObj("api server stopped", "error", err)
		}
	}()
	s.log.InfoObj("api server listening", "api_addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, which differs from the configured one for ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, renderState(s.screen.State()))
}

func (s *Server) handleFetch(c *gin.Context) {
	attempt, err := s.screen.BeginFetch()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	// The attempt may already have resolved; the reply describes its start.
	c.JSON(http.StatusAccepted, renderState(fetchstate.LoadingFor[domain.DogPayload](attempt)))
}

// stateResponse is the JSON shape of a DogState.
type stateResponse struct {
	Status    string `json:"status"`
	AttemptID string `json:"attempt_id,omitempty"`
	At        string `json:"at,omitempty"`
	Breed     string `json:"breed,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func renderState(st app.DogState) stateResponse {
	resp := stateResponse{
		Status:    st.Status().String(),
		AttemptID: st.Attempt(),
	}
	if !st.At().IsZero() {
		resp.At = st.At().UTC().Format(time.RFC3339Nano)
	}
	if dog, ok := st.Value(); ok {
		resp.Breed = dog.Breed
		resp.ImageURL = dog.ImageURL
	}
	if err := st.Err(); err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = dogapi.Kind(err)
	}
	return resp
}

// recordRequests counts requests by route template.
func recordRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
