package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/svc"
)

const shutdownTimeout = 10 * time.Second

// Service runs the HTTP server until its context is cancelled.
type Service struct {
	Ctx    context.Context    // Service Context
	cancel context.CancelFunc // Service Context CancelFunc
	state  int                // internal service state
	done   chan error         // Shutdown Error Channel
	Server *http.Server
	addr   net.Addr
}

var _ svc.Service = (*Service)(nil)

func NewService(parentCtx context.Context, addr string, router http.Handler) *Service {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &Service{
		Ctx:    svcCtx,
		cancel: svcCancel,
		state:  svc.StateREADY,
		done:   make(chan error, 1),
		Server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return svcCtx },
		},
	}
}

func (s *Service) Name() string {
	return "WebService"
}

// Start binds the listener so address errors surface immediately, then serves in the background.
func (s *Service) Start() error {
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. not ready")
	}
	ln, err := net.Listen("tcp", s.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen(%q) failed: %w", s.Server.Addr, err)
	}
	s.addr = ln.Addr()
	s.state = svc.StateRUNNING
	log := logging.Component("web")
	go func() {
		<-s.Ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()
	go func() {
		log.Info("listening", "addr", s.addr.String())
		err := s.Server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	return nil
}

// Addr is the bound address once started.
func (s *Service) Addr() net.Addr {
	return s.addr
}

func (s *Service) Stop() {
	s.cancel()
	s.state = svc.StateSTOPPED
	logging.Component("web").Info("service stopped")
}

func (s *Service) Done() <-chan error {
	return s.done
}
