// Package server exposes the chat stream, feedback and operational endpoints
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/orchestrator"
	submitfeedback "shopping-assistant/internal/workers/communication/submit-feedback"
)

const (
	HeaderTurnID    = "X-Turn-ID"
	HeaderRequestID = "X-Request-ID"
)

// TurnHandler runs one chat turn onto a stream writer.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turnID string, req *models.ChatRequest, w *orchestrator.StreamWriter) error
}

type FeedbackService interface {
	Execute(ctx context.Context, input *submitfeedback.Input) (*submitfeedback.Output, error)
}

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Config struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	ReadyTimeout   time.Duration
	MetricsEnabled bool
}

func DefaultConfig() *Config {
	return &Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
		ReadyTimeout:   2 * time.Second,
		MetricsEnabled: true,
	}
}

type Dependencies struct {
	Turns    TurnHandler
	Feedback FeedbackService
	Checks   []ReadinessCheck
	Logger   logger.Logger
}

type Server struct {
	config   *Config
	turns    TurnHandler
	feedback FeedbackService
	checks   []ReadinessCheck
	errors   *apperrors.ErrorHandler
	logger   logger.Logger

	chatSchema     *validation.Schema
	feedbackSchema *validation.Schema
}

func New(deps Dependencies, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	log := deps.Logger.With(map[string]interface{}{"component": "http"})
	return &Server{
		config:         config,
		turns:          deps.Turns,
		feedback:       deps.Feedback,
		checks:         deps.Checks,
		errors:         apperrors.NewErrorHandler(log),
		logger:         log,
		chatSchema:     validation.MustCompile(validation.ChatRequestSchema),
		feedbackSchema: validation.MustCompile(validation.FeedbackRequestSchema),
	}
}

// Handler serves every route, wrapped in CORS, request id and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /chat", s.handleChat)
	if s.feedback != nil {
		mux.HandleFunc("POST /api/submit-feedback", s.handleFeedback)
	}
	s.registerOps(mux)

	return s.recoverer(s.requestID(s.cors(mux)))
}

// OpsHandler serves only health, readiness and metrics, for a separate port.
func (s *Server) OpsHandler() http.Handler {
	mux := http.NewServeMux()
	s.registerOps(mux)
	return mux
}

func (s *Server) registerOps(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
}
