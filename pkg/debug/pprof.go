package debug

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"
)

// PprofServer serves the Go runtime profiles of this process, so a long
// conversion or replay can itself be profiled.
type PprofServer struct {
	server *http.Server
	addr   net.Addr
	log    *logrus.Logger
}

// StartPprofServer starts a pprof HTTP server at addr, ":6060" when
// empty.
func StartPprofServer(addr string, logger *logrus.Logger) (*PprofServer, error) {
	if addr == "" {
		addr = ":6060"
	}
	if logger == nil {
		logger = logrus.New()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("pprof server failed: %w", err)
	}
	s := &PprofServer{
		server: &http.Server{
			Handler:           http.DefaultServeMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr: ln.Addr(),
		log:  logger,
	}

	go func() {
		s.log.WithField("addr", s.addr.String()).Info("pprof server starting")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("pprof server stopped")
		}
	}()
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *PprofServer) Addr() string {
	return s.addr.String()
}

// Stop shuts the server down, waiting up to five seconds.
func (s *PprofServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}
