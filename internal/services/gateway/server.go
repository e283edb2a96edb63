// Package gateway exposes bot commands over HTTP so a chat platform adapter can relay messages.
package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/reposcope/internal/bot"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	defaultRequestTimeout   = 5 * time.Minute
	maxRequestBodyBytes     = 64 * 1024
	headerContentType       = "Content-Type"
	headerAuthorization     = "Authorization"
	bearerPrefix            = "Bearer "
	mimeTypeJSON            = "application/json"
	healthPath              = "/healthz"
	commandsPath            = "/commands"
	commandPath             = "/commands/{name}"
	messagesPath            = "/messages"
	commandNameParameter    = "name"
	errorFieldName          = "error"
	errorCommandNotFound    = "command not found"
	errorUnauthorized       = "unauthorized"
	errorEmptyMessage       = "message content is required"
)

// Dispatcher answers commands and raw chat messages.
type Dispatcher interface {
	Commands() []bot.CommandInfo
	HasCommand(name string) bool
	Dispatch(ctx context.Context, command bot.Command) bot.Reply
	HandleMessage(ctx context.Context, content string, author string) (bot.Reply, bool)
}

// CommandRequest is the body of POST /commands/{name}.
type CommandRequest struct {
	Argument string `json:"argument"`
	Author   string `json:"author"`
}

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// Config defines runtime options for the gateway.
type Config struct {
	Address         string
	Token           string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Server routes HTTP requests to a Dispatcher.
type Server struct {
	config     Config
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewServer creates a Server with defaults applied.
func NewServer(config Config, dispatcher Dispatcher, logger *zap.Logger) Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.RequestTimeout <= 0 {
		normalized.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Server{config: normalized, dispatcher: dispatcher, logger: logger}
}

// Handler returns the routed HTTP handler.
func (server Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(server.logRequests)
	router.Get(healthPath, server.handleHealth)
	router.Group(func(protected chi.Router) {
		protected.Use(server.requireToken)
		protected.Use(middleware.Timeout(server.config.RequestTimeout))
		protected.Get(commandsPath, server.handleCommands)
		protected.Post(commandPath, server.handleCommand)
		protected.Post(messagesPath, server.handleMessage)
	})
	return router
}

// Run starts the gateway and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve gateway: %w", serveErr)
		}
		return nil
	})

	server.logger.Info("gateway listening", zap.String("address", actualAddress))
	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown gateway: %w", shutdownErr)
		}
		return nil
	})

	return group.Wait()
}

func (server Server) handleHealth(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
}

func (server Server) handleCommands(writer http.ResponseWriter, _ *http.Request) {
	payload := struct {
		Commands []bot.CommandInfo `json:"commands"`
	}{Commands: server.dispatcher.Commands()}
	server.writeJSON(writer, http.StatusOK, payload)
}

func (server Server) handleCommand(writer http.ResponseWriter, request *http.Request) {
	commandName := chi.URLParam(request, commandNameParameter)
	if !server.dispatcher.HasCommand(commandName) {
		server.writeJSON(writer, http.StatusNotFound, map[string]string{errorFieldName: errorCommandNotFound})
		return
	}
	var commandRequest CommandRequest
	if decodeErr := decodeBody(request, &commandRequest); decodeErr != nil {
		server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: decodeErr.Error()})
		return
	}
	reply := server.dispatcher.Dispatch(request.Context(), bot.Command{
		Name:     commandName,
		Argument: commandRequest.Argument,
		Author:   commandRequest.Author,
	})
	server.writeJSON(writer, http.StatusOK, reply)
}

func (server Server) handleMessage(writer http.ResponseWriter, request *http.Request) {
	var messageRequest MessageRequest
	if decodeErr := decodeBody(request, &messageRequest); decodeErr != nil {
		server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: decodeErr.Error()})
		return
	}
	if strings.TrimSpace(messageRequest.Content) == "" {
		server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: errorEmptyMessage})
		return
	}
	reply, handled := server.dispatcher.HandleMessage(request.Context(), messageRequest.Content, messageRequest.Author)
	if !handled {
		writer.WriteHeader(http.StatusNoContent)
		return
	}
	server.writeJSON(writer, http.StatusOK, reply)
}

func (server Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if server.config.Token != "" {
			supplied := strings.TrimPrefix(request.Header.Get(headerAuthorization), bearerPrefix)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(server.config.Token)) != 1 {
				server.writeJSON(writer, http.StatusUnauthorized, map[string]string{errorFieldName: errorUnauthorized})
				return
			}
		}
		next.ServeHTTP(writer, request)
	})
}

func (server Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
		next.ServeHTTP(wrapped, request)
		server.logger.Debug("gateway request",
			zap.String("method", request.Method),
			zap.String("path", request.URL.Path),
			zap.Int("status", wrapped.Status()),
			zap.String("request_id", middleware.GetReqID(request.Context())),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}

func decodeBody(request *http.Request, target interface{}) error {
	body, readErr := io.ReadAll(io.LimitReader(request.Body, maxRequestBodyBytes))
	if readErr != nil {
		return fmt.Errorf("read request body: %w", readErr)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if decodeErr := json.Unmarshal(body, target); decodeErr != nil {
		return fmt.Errorf("decode request body: %w", decodeErr)
	}
	return nil
}

func (server Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := map[string]string{errorFieldName: fmt.Sprintf("encode response: %v", encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}
