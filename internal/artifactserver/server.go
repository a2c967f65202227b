// Package artifactserver serves a rendered report on a loopback port so the
// headless browser can load it like any other page.
package artifactserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Server serves report files from a private temp directory.
type Server struct {
	listener net.Listener
	server   *http.Server
	dir      string
}

// Start writes content as filename into a temp dir and serves it.
func Start(content []byte, filename string) (*Server, error) {
	return StartFiles(map[string][]byte{filename: content})
}

// StartFiles serves several files, keyed by their relative path.
func StartFiles(files map[string][]byte) (*Server, error) {
	dir, err := os.MkdirTemp("", "deepmsi-report-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	for name, content := range files {
		path := filepath.Join(dir, filepath.Clean("/"+name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to create dir for %s: %w", name, err)
		}
		if err := os.WriteFile(path, content, 0o600); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to find port: %w", err)
	}

	srv := &Server{
		listener: listener,
		dir:      dir,
		server: &http.Server{
			Handler:           noStore(http.FileServer(http.Dir(dir))),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go srv.server.Serve(listener)

	return srv, nil
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// URL returns the address of a served file.
func (s *Server) URL(filename string) string {
	return fmt.Sprintf("http://%s/%s", s.listener.Addr().String(), filename)
}

// Stop shuts the server down and removes its files.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
	os.RemoveAll(s.dir)
}
