// Package uds serves line-based admin commands over a unix domain socket.
package uds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/svc"
)

type Service struct {
	Ctx        context.Context    // Service Context
	cancel     context.CancelFunc // Service Context CancelFunc
	state      int                // internal service state
	done       chan error         // Shutdown Error Channel
	SocketPath string
	CmdMap     map[string]CmdHnd
	listener   net.Listener
}

var _ svc.Service = (*Service)(nil)

func (s *Service) Name() string {
	return "UDSService"
}

func NewService(parentCtx context.Context, sockPath string, cmdMap map[string]CmdHnd) *Service {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &Service{
		Ctx:        svcCtx,
		cancel:     svcCancel,
		state:      svc.StateREADY,
		done:       make(chan error, 1),
		SocketPath: sockPath,
		CmdMap:     cmdMap,
	}
}

// Start the unix socket service in the background.
// Bootstrapping errors are returned immediately.
// Runtime errors are pushed into Done().
func (s *Service) Start() error {
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. not ready")
	}
	// clean up old socket if any
	_ = os.Remove(s.SocketPath)
	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("listen(%q) failed: %w", s.SocketPath, err)
	}
	s.listener = listener
	// tighten permissions immediately after binding
	if err = os.Chmod(s.SocketPath, 0600); err != nil {
		_ = s.listener.Close()
		_ = os.Remove(s.SocketPath)
		return fmt.Errorf("chmod(%q) failed: %w", s.SocketPath, err)
	}
	s.state = svc.StateRUNNING
	go s.run()
	return nil
}

func (s *Service) Stop() {
	s.cancel()
	s.state = svc.StateSTOPPED
	logging.Component("uds").Info("service stopped")
}

func (s *Service) Done() <-chan error {
	return s.done
}

func (s *Service) run() {
	log := logging.Component("uds")
	go func() {
		<-s.Ctx.Done()
		if err := s.listener.Close(); err != nil {
			log.Error("cannot close listener", "err", err)
		}
		// remove first instead of checking to avoid TOCTOU
		if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
			log.Error("cannot remove socket file", "err", err)
		}
	}()

	log.Info("listening", "path", s.SocketPath)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.done <- nil // also a clean shutdown
				return
			}
			// transient errors keep the loop alive
			log.Error("accept failed", "err", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Service) handleConn(c net.Conn) {
	log := logging.Component("uds")
	stop := context.AfterFunc(s.Ctx, func() { _ = c.Close() })
	defer stop()
	defer func() {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error("closing connection", "err", err)
		}
	}()

	reader := bufio.NewReader(io.LimitReader(c, 1<<20)) // 1 MB max per session
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error("read error", "err", err)
			}
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch cmdStr := args[0]; cmdStr {
		case "quit":
			return
		case "help":
			s.writeHelp(c)
		default:
			cmdHnd, ok := s.CmdMap[cmdStr]
			if !ok {
				_, _ = fmt.Fprintf(c, "unknown command: %s\n", cmdStr)
				continue // give another chance
			}
			log.Info("command requested", "cmd", strings.TrimSpace(line))
			if err := cmdHnd.Fn(s.Ctx, args[1:], c); err != nil {
				log.Error("command failed", "cmd", cmdStr, "err", err)
				_, _ = fmt.Fprintf(c, "error: %v\n", err)
				if cmdHnd.Usage != "" {
					_, _ = fmt.Fprintf(c, "usage: %s\n", cmdHnd.Usage)
				}
			}
			return
		}
	}
}

func (s *Service) writeHelp(w io.Writer) {
	keys := make([]string, 0, len(s.CmdMap))
	for k := range s.CmdMap {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	_, _ = fmt.Fprintln(w)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%-36s %s\n", k, s.CmdMap[k].Desc)
	}
	_, _ = fmt.Fprintln(w)
}
