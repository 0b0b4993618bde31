package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/kutluhann/decentralized-file-sharing-system/chunker"
	"github.com/kutluhann/decentralized-file-sharing-system/dht"
	"github.com/kutluhann/decentralized-file-sharing-system/filesystem"
	"github.com/kutluhann/decentralized-file-sharing-system/id_tools"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

const (
	RequestIDHeader = "X-Request-ID"
	FileHashHeader  = "X-File-Hash"

	defaultMaxBodyBytes = 1 << 30
	shutdownTimeout     = 5 * time.Second
)

// ServerConfig bounds what peers and clients can make the node do.
type ServerConfig struct {
	RPCRate      float64 // peer RPCs per second, <= 0 means unlimited
	RPCBurst     int
	MaxConns     int // concurrent connections, <= 0 means unlimited
	MaxBodyBytes int64
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type RoutingTableResponse struct {
	Self    dht.PeerRecord   `json:"self"`
	Buckets []dht.BucketInfo `json:"buckets"`
}

// HTTPServer exposes a node to its peers (/rpc/*, msgpack) and to users
// (everything else, JSON).
type HTTPServer struct {
	Node *dht.Node

	config  ServerConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewHTTPServer(node *dht.Node, config ServerConfig, logger zerolog.Logger) *HTTPServer {
	limit := rate.Inf
	if config.RPCRate > 0 {
		limit = rate.Limit(config.RPCRate)
	}
	if config.RPCBurst <= 0 {
		config.RPCBurst = max(1, int(config.RPCRate))
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &HTTPServer{
		Node:    node,
		config:  config,
		limiter: rate.NewLimiter(limit, config.RPCBurst),
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	rpc := http.NewServeMux()
	rpc.HandleFunc("/rpc/add_node", s.handleAddNode)
	rpc.HandleFunc("/rpc/fingerprint", s.handleFingerprint)
	rpc.HandleFunc("/rpc/namespace", s.handleNamespace)
	rpc.HandleFunc("/rpc/merge_namespace", s.handleMergeNamespace)
	rpc.HandleFunc("/rpc/chunk", s.handleChunk)
	mux.Handle("/rpc/", s.rateLimited(rpc))

	mux.HandleFunc("/files", s.handleFiles)
	mux.HandleFunc("/file", s.handleFile)
	mux.HandleFunc("/routing-table", s.handleRoutingTable)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)

	return s.withRequestID(mux)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.config.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConns)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Int("max_conns", s.config.MaxConns).Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// withRequestID tags every request with an id, reusing the caller's when
// present, and logs it.
func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *HTTPServer) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, filesystem.ErrNotFound), errors.Is(err, storage.ErrChunkNotFound):
		return http.StatusNotFound
	case errors.Is(err, filesystem.ErrNotAFile),
		errors.Is(err, filesystem.ErrNotADirectory),
		errors.Is(err, filesystem.ErrInvalidPath),
		errors.Is(err, id_tools.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, chunker.ErrMissingChunk), errors.Is(err, storage.ErrHashMismatch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, errors.New("only "+method+" allowed"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
