package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"npcchat/internal/config"
	"npcchat/internal/dispatch"
	"npcchat/internal/logger"
	"npcchat/internal/metrics"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 45 * time.Second
	idleTimeout         = 120 * time.Second
)

// Submitter is the slice of the dispatcher the server needs: hand in a
// prompt, get back an awaitable reply.
type Submitter interface {
	Submit(prompt string) *dispatch.Future
}

type Server struct {
	cfg        config.Config
	dispatcher Submitter
	app        *echo.Echo
	address    string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, dispatcher Submitter) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Infof("request method=%s uri=%s status=%d latency_ms=%d err=%v",
				v.Method, v.URI, v.Status, v.Latency.Milliseconds(), v.Error)
			return nil
		},
	}))

	srv := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		app:        e,
		address:    fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	logger.Infof("starting server on %s", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Infof("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/chat", s.handleChat)
	s.app.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatReply struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "prompt must not be empty",
		}
	}

	// The exchange itself is not tied to the caller's connection: a
	// disconnect stops the wait here while the worker still completes
	// and fulfils the slot.
	reply, err := s.dispatcher.Submit(req.Prompt).Await(c.Request().Context())
	if err != nil {
		return requestError{
			Status:  http.StatusRequestTimeout,
			Message: "client cancelled while awaiting reply",
		}
	}

	return c.JSON(http.StatusOK, chatReply{Reply: reply})
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
}

func errorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, errorBody{Error: reqErr.Message})
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = c.JSON(echoErr.Code, errorBody{Error: fmt.Sprintf("%v", echoErr.Message)})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
}
