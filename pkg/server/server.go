// Package server exposes the answer pipeline over HTTP: an HTML question
// form and a JSON API.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/perbu/tactiekbot/pkg/qa"
)

// FailureMessage is shown to users when a question could not be answered.
const FailureMessage = "Sorry, er is een fout opgetreden bij het verwerken van je vraag. Probeer het later opnieuw."

// MaxK bounds the number of passages a JSON API caller may request.
const MaxK = 20

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Answerer answers questions; *qa.Pipeline implements it.
type Answerer interface {
	Answer(ctx context.Context, question string, k int) (qa.Answer, error)
	AnswerDefault(ctx context.Context, question string) (qa.Answer, error)
}

// Server holds no per-request state; every request gets its own page value.
type Server struct {
	answerer Answerer
	apiKey   string
	logger   *zap.Logger
}

type Option func(*Server)

// WithAPIKey protects the JSON API with a shared key. An empty key leaves
// it open.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(answerer Answerer, opts ...Option) *Server {
	s := &Server{answerer: answerer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the service wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.formHandler)
	mux.HandleFunc("POST /{$}", s.submitHandler)
	mux.HandleFunc("POST /api/ask", s.apiKeyMiddleware(s.askHandler))
	mux.HandleFunc("GET /health", s.healthHandler)
	return s.logRequests(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
