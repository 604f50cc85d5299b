// Package httpapi implements the control surface as an HTTP API for headless hosts.
package httpapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/control"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/pubsub"
	"github.com/mgoltzsche/wakelauncher/internal/tlsutils"
	"github.com/mgoltzsche/wakelauncher/pkg/config"
)

const shutdownTimeout = 2 * time.Second

type Options struct {
	Listen  string
	TLS     config.TLS
	MDNS    config.MDNS
	Version string
}

// Server serves the control API until Quit is called.
type Server struct {
	actions  control.Actions
	events   pubsub.Subscriber[event.Event]
	listener net.Listener
	tls      bool
	mdns     config.MDNS
	version  string
	logger   *zap.Logger
	quit     chan struct{}
	quitOnce sync.Once
}

var _ control.Surface = &Server{}

// New binds the listen address so that address and TLS problems surface before the daemon runs.
func New(opts Options, actions control.Actions, events pubsub.Subscriber[event.Event], logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", opts.Listen, err)
	}

	if opts.TLS.Enabled {
		if opts.TLS.Cert == "" && opts.TLS.Key == "" {
			logger.Info("generating self-signed TLS certificate")
		}

		host, _, _ := net.SplitHostPort(opts.Listen)

		tlsConfig, err := tlsutils.ServerConfig(opts.TLS.Cert, opts.TLS.Key, host, opts.MDNS.Name)
		if err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("configure tls: %w", err)
		}

		listener = tls.NewListener(listener, tlsConfig)
	}

	return &Server{
		actions:  actions,
		events:   events,
		listener: listener,
		tls:      opts.TLS.Enabled,
		mdns:     opts.MDNS,
		version:  opts.Version,
		logger:   logger,
		quit:     make(chan struct{}),
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// URL returns the base URL of the API.
func (s *Server) URL() string {
	scheme := "http"
	if s.tls {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, s.listener.Addr())
}

func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mux := http.NewServeMux()
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	AddRoutes(mux, s.actions, s.events, s.logger)

	if s.mdns.Enabled {
		shutdown, err := advertise(s.mdns, s.listener.Addr(), s.tls, s.version, s.logger)
		if err != nil {
			s.logger.Warn("failed to advertise control api via mdns", zap.Error(err))
		} else {
			defer shutdown()
		}
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(s.listener)
	}()

	s.logger.Info("control api ready", zap.String("url", s.URL()))

	select {
	case <-ctx.Done():
	case <-s.quit:
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve control api: %w", err)
	}

	// Ends websocket streams, which the http server does not track.
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shut down control api: %w", err)
	}

	s.logger.Debug("control api stopped")

	return nil
}

func (s *Server) SetListening(enabled bool) {
	s.logger.Debug("listening state changed", zap.Bool("listening", enabled))
}

func (s *Server) Quit() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})
}

// AddRoutes registers the control API handlers.
func AddRoutes(mux *http.ServeMux, actions control.Actions, events pubsub.Subscriber[event.Event], logger *zap.Logger) {
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, actions.Status(), logger)
	})

	mux.HandleFunc("POST /listening", func(w http.ResponseWriter, req *http.Request) {
		enabledStr := req.URL.Query().Get("enabled")
		if enabledStr == "" {
			actions.ToggleListening()
		} else {
			enabled, err := strconv.ParseBool(enabledStr)
			if err != nil {
				err = fmt.Errorf("invalid enabled query parameter value provided: %w", err)
				logger.Warn("rejecting request", zap.Error(err))
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			actions.SetListening(enabled)
		}

		writeJSON(w, http.StatusOK, actions.Status(), logger)
	})

	mux.HandleFunc("POST /trigger", func(w http.ResponseWriter, req *http.Request) {
		actions.Trigger()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /exit", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		actions.Exit()
	})

	mux.HandleFunc("POST /restart", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		actions.Restart()
	})

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			logger.Warn("failed to accept websocket connection", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		logger.Debug("event stream client connected", zap.String("remote", req.RemoteAddr))

		// Client messages are not expected. CloseRead cancels the context when the client disconnects.
		ctx := conn.CloseRead(req.Context())

		err = streamEvents(ctx, events, &eventWriter{Websocket: conn, Timeout: 5 * time.Second})
		if err != nil && ctx.Err() == nil {
			logger.Warn("failed to stream events", zap.Error(err))
			return
		}

		conn.Close(websocket.StatusNormalClosure, "")
		logger.Debug("event stream client disconnected", zap.String("remote", req.RemoteAddr))
	})
}

func streamEvents(ctx context.Context, events pubsub.Subscriber[event.Event], w *eventWriter) error {
	s := events.Subscribe(ctx)
	defer s.Stop()

	ch := s.ResultChan()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return nil
			}

			err := w.Write(ctx, evt)
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}
