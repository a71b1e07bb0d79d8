package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// HTTPPath is where the streamable HTTP transport is mounted.
const HTTPPath = "/mcp"

// ServeStdio serves MCP over in/out until ctx ends or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("MCP server listening on stdio")
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HTTPServer serves the streamable HTTP transport in stateless mode.
type HTTPServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewHTTPServer creates an HTTP server for s on host:port.
func (s *Server) NewHTTPServer(host string, port int) *HTTPServer {
	mux := http.NewServeMux()
	mux.Handle(HTTPPath, server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true)))
	return &HTTPServer{
		srv: &http.Server{
			Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: s.logger,
	}
}

// Addr is the configured listen address.
func (h *HTTPServer) Addr() string {
	return h.srv.Addr
}

// Serve accepts connections on l until Shutdown.
func (h *HTTPServer) Serve(l net.Listener) error {
	h.logger.Info("MCP server listening on HTTP",
		zap.String("addr", l.Addr().String()), zap.String("path", HTTPPath))
	if err := h.srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Listen binds the configured address.
func (h *HTTPServer) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", h.srv.Addr, err)
	}
	return l, nil
}

// Shutdown stops accepting connections and waits for in-flight calls.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
