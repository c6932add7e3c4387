// Package server exposes polishing, knowledge-base management and question
// answering over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/valpere/dzerkalo/internal/answerer"
	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/ingest"
	"github.com/valpere/dzerkalo/internal/report"
)

const shutdownTimeout = 10 * time.Second

// Polisher is the orchestrator as the server sees it.
type Polisher interface {
	report.Polisher
	Providers() []string
}

// Asker answers questions from the knowledge base.
type Asker interface {
	Ask(ctx context.Context, question string) (*answerer.Answer, error)
}

type Config struct {
	// Mode is gin's mode: debug, release or test.
	Mode        string
	MaxUpload   int64
	KBDir       string
	PolishedDir string
}

func DefaultConfig() Config {
	return Config{
		Mode:        gin.ReleaseMode,
		MaxUpload:   16 << 20,
		KBDir:       "knowledge_bases",
		PolishedDir: "polished",
	}
}

// Dependencies holds the services behind the handlers. Answerer may be nil,
// in which case /ask reports 503.
type Dependencies struct {
	Polisher Polisher
	Index    *index.Index
	Parser   ingest.Parser
	Answerer Asker
}

type Server struct {
	config Config
	deps   Dependencies
	router *gin.Engine
	log    logrus.FieldLogger
}

type Option func(*Server)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func New(config Config, deps Dependencies, opts ...Option) (*Server, error) {
	if deps.Polisher == nil || deps.Index == nil {
		return nil, errors.New("server needs a polisher and an index")
	}

	def := DefaultConfig()
	if config.Mode == "" {
		config.Mode = def.Mode
	}
	if config.MaxUpload <= 0 {
		config.MaxUpload = def.MaxUpload
	}
	if config.KBDir == "" {
		config.KBDir = def.KBDir
	}
	if config.PolishedDir == "" {
		config.PolishedDir = def.PolishedDir
	}
	switch config.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(config.Mode)
	default:
		return nil, fmt.Errorf("unknown server mode %q", config.Mode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: gin.New(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.MaxMultipartMemory = config.MaxUpload
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.log))
	s.setupRoutes()

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
