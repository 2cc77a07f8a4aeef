package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/invoice"
	"github.com/zeptools/invoicer/uds"
)

// AdminCommands are the commands of the admin socket.
func (s *Server) AdminCommands() map[string]uds.CmdHnd {
	return map[string]uds.CmdHnd{
		"sessions": {
			Desc:  "list open invoice sessions",
			Usage: "sessions",
			Fn:    s.cmdSessions,
		},
		"reset": {
			Desc:  "reset a session to the default invoice",
			Usage: "reset <session-id>",
			Fn:    s.cmdReset,
		},
		"export": {
			Desc:  "export a session invoice as PDF into a directory",
			Usage: "export <session-id> <dir>",
			Fn:    s.cmdExport,
		},
		"sweep": {
			Desc:  "drop expired staged artifacts",
			Usage: "sweep",
			Fn:    s.cmdSweep,
		},
	}
}

func (s *Server) cmdSessions(_ context.Context, _ []string, w io.Writer) error {
	if s.Sessions.Len() == 0 {
		_, err := fmt.Fprintln(w, "no open sessions")
		return err
	}
	ids := s.Sessions.IDs()
	if _, err := fmt.Fprintf(w, "%d open sessions\n", len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		sess, ok := s.Sessions.Lookup(id)
		if !ok {
			continue
		}
		inv := sess.Snapshot()
		busy := ""
		if s.Exporter(id).Busy() {
			busy = " (exporting)"
		}
		if _, err := fmt.Fprintf(w, "%-36s %-12s %4d items %14s%s\n",
			id, inv.InvoiceNumber, len(inv.Items), invoice.FormatAmount(inv.Total, inv.Currency), busy); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) cmdReset(ctx context.Context, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("session id required")
	}
	sess, ok := s.Sessions.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no open session %q", args[0])
	}
	if err := sess.Reset(ctx); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "session %s reset\n", args[0])
	return err
}

func (s *Server) cmdExport(ctx context.Context, args []string, w io.Writer) error {
	if len(args) != 2 {
		return errors.New("session id and directory required")
	}
	if _, ok := s.Sessions.Lookup(args[0]); !ok {
		return fmt.Errorf("no open session %q", args[0])
	}
	sink := &delivery.FileSink{Dir: args[1]}
	if err := s.ExportTo(ctx, args[0], sink); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "written %s\n", sink.Path)
	return err
}

// Sweeper is a transient store that can drop its expired entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

func (s *Server) cmdSweep(_ context.Context, _ []string, w io.Writer) error {
	n := s.SweepTransients(s.now())
	_, err := fmt.Fprintf(w, "%d expired artifacts removed\n", n)
	return err
}

// SweepTransients sweeps every in-process transient store. KV-backed stores expire on their own.
func (s *Server) SweepTransients(now time.Time) int {
	n := 0
	stores := []delivery.TransientStore{s.Transients}
	if s.Downloads != s.Transients {
		stores = append(stores, s.Downloads)
	}
	for _, ts := range stores {
		if sw, ok := ts.(Sweeper); ok {
			n += sw.Sweep(now)
		}
	}
	return n
}
