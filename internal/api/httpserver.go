package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type HTTPServer struct {
	srv  *http.Server
	addr string
	done chan struct{}
}

// StartHTTP serves h on addr until ctx is done, then shuts down gracefully.
func StartHTTP(ctx context.Context, log *zap.Logger, addr string, h http.Handler) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s := &HTTPServer{srv: srv, addr: ln.Addr().String(), done: make(chan struct{})}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}()

	return s, nil
}

// Addr is the bound address, with the real port when addr asked for ":0".
func (s *HTTPServer) Addr() string { return s.addr }

// Wait blocks until shutdown has finished and in-flight requests have returned.
func (s *HTTPServer) Wait() { <-s.done }
