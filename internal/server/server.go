package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Server represents an HTTP server
type Server struct {
	srv      *http.Server
	tlsCert  string
	tlsKey   string
	listener net.Listener
	errCh    chan error
}

// New creates a new server instance. TLS is used when both files are given.
func New(handler http.Handler, addr, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		errCh:   make(chan error, 1),
	}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned directly; later failures arrive on Errors.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		go func() {
			if err := s.srv.ServeTLS(listener, s.tlsCert, s.tlsKey); err != nil && err != http.ErrServerClosed {
				s.errCh <- err
			}
		}()
		return nil
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
	}()
	return nil
}

// Errors delivers a serve failure that happened after Start returned
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Addr returns the bound address once started, the configured one before
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
