// Package wsserver exposes the executor over a persistent WebSocket: one
// HTTP upgrade handshake per client, authenticated by a shared-secret
// Authorization header, followed by a stream of JSON request/response
// frames handled with bounded concurrency.
//
// Grounded on the original Rust implementation's ws.rs (same handshake
// auth rules, same write-half-mutex-plus-concurrent-reads shape, same
// Ping/Close echo behavior) and on the teacher's infrastructure/httputil
// and infrastructure/logging packages for connection-scoped logging.
package wsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/oblivisheee/ckeylock/internal/apperror"
	"github.com/oblivisheee/ckeylock/internal/executor"
	"github.com/oblivisheee/ckeylock/internal/hexutil"
	"github.com/oblivisheee/ckeylock/internal/httputil"
	"github.com/oblivisheee/ckeylock/internal/log"
	"github.com/oblivisheee/ckeylock/internal/metrics"
	"github.com/oblivisheee/ckeylock/internal/wire"
)

// keyLogLimit bounds how many bytes of a request key are rendered in log
// lines, since keys are arbitrary (and potentially large) byte strings.
const keyLogLimit = 16

// Server upgrades HTTP connections to WebSocket and dispatches every frame
// received on them to an Executor.
type Server struct {
	executor    *executor.Executor
	password    *string
	workerLimit int
	logger      *log.Logger
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader
}

// New builds a Server. password, when non-nil and non-empty, is the shared
// secret clients must present in the Authorization header. workerLimit
// caps how many frames a single connection dispatches concurrently; 0
// means unbounded, matching the original's Option<usize> concurrent_limit.
func New(exec *executor.Executor, password *string, workerLimit int, logger *log.Logger, m *metrics.Metrics) *Server {
	return &Server{
		executor:    exec,
		password:    password,
		workerLimit: workerLimit,
		logger:      logger,
		metrics:     m,
		upgrader:    websocket.Upgrader{},
	}
}

// ListenAndServe binds addr and serves WebSocket connections until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// ServeHTTP enforces the Authorization handshake rule and, once past it,
// upgrades the connection and runs the frame-dispatch loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logEntry := s.connLogger(r)

	if !s.authorize(r) {
		if s.metrics != nil {
			s.metrics.AuthFailure()
		}
		logWarn(logEntry, apperror.Unauthorized(), "rejected handshake")
		w.Header().Set("WWW-Authenticate", "Basic")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logWarn(logEntry, err, "websocket handshake failed")
		return
	}
	defer conn.Close()

	logInfo(logEntry, "websocket connection established")
	if s.metrics != nil {
		s.metrics.ConnectionOpened()
		defer s.metrics.ConnectionClosed()
	}

	s.serveConn(r.Context(), conn, logEntry)
}

// authorize implements the handshake rule from spec.md §4.5: no password
// configured means no check; a configured password requires an exact
// Authorization header match.
func (s *Server) authorize(r *http.Request) bool {
	if s.password == nil || *s.password == "" {
		return true
	}
	return r.Header.Get("Authorization") == *s.password
}

func (s *Server) connLogger(r *http.Request) *logrus.Entry {
	if s.logger == nil {
		return nil
	}
	return s.logger.WithConn(httputil.ClientIP(r))
}

func logWarn(e *logrus.Entry, err error, msg string) {
	if e == nil {
		return
	}
	e.WithError(err).Warn(msg)
}

func logError(e *logrus.Entry, err error, msg string) {
	if e == nil {
		return
	}
	e.WithError(err).Error(msg)
}

func logInfo(e *logrus.Entry, msg string) {
	if e == nil {
		return
	}
	e.Info(msg)
}

// serveConn reads frames off conn until it closes, dispatching each Text
// frame to a worker bounded by s.workerLimit (0 = unbounded). A mutex
// guards the write half, since multiple workers may reply concurrently.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, logEntry *logrus.Entry) {
	var writeMu sync.Mutex
	var sem chan struct{}
	if s.workerLimit > 0 {
		sem = make(chan struct{}, s.workerLimit)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logWarn(logEntry, err, "websocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if sem != nil {
			sem <- struct{}{}
		}
		wg.Add(1)
		go func(payload []byte) {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			s.handleFrame(ctx, conn, &writeMu, payload, logEntry)
		}(data)
	}
}

func (s *Server) handleFrame(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, payload []byte, logEntry *logrus.Entry) {
	var wrapper wire.RequestWrapper
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		decodeErr := apperror.ProtocolDecode(err)
		logWarn(logEntry, decodeErr, "failed to parse request")
		writeText(conn, writeMu, []byte(decodeErr.Error()), logEntry)
		return
	}

	start := time.Now()
	resp, err := s.executor.Execute(ctx, wrapper)
	if s.metrics != nil {
		s.metrics.RecordRequest(string(wrapper.Req.Kind), err, time.Since(start))
	}

	if err != nil {
		if logEntry != nil {
			logEntry.WithField("key", hexutil.Short(wrapper.Req.Key, keyLogLimit)).WithError(err).Warn("request execution failed")
		}
		encoded, marshalErr := json.Marshal(wire.ErrorResponse{Message: err.Error(), ReqID: wrapper.ID})
		if marshalErr != nil {
			logError(logEntry, marshalErr, "failed to encode error response")
			return
		}
		writeText(conn, writeMu, encoded, logEntry)
		return
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		logError(logEntry, err, "failed to encode response")
		return
	}
	writeText(conn, writeMu, encoded, logEntry)
}

func writeText(conn *websocket.Conn, writeMu *sync.Mutex, payload []byte, logEntry *logrus.Entry) {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logWarn(logEntry, err, "failed to write response")
	}
}
