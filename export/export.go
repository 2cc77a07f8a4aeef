// Package export runs the capture, assemble and deliver pipeline for one session.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/delivery"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/metrics"
)

// ErrBusy is returned when an export is already in flight. Calls are not queued.
var ErrBusy = errors.New("export already in progress")

type Stage string

const (
	StageIdle       Stage = "idle"
	StageCapturing  Stage = "capturing"
	StageAssembling Stage = "assembling"
	StageDelivering Stage = "delivering"
)

const (
	triggerCapture  = "capture"
	triggerAssemble = "assemble"
	triggerDeliver  = "deliver"
	triggerFinish   = "finish"
	triggerFail     = "fail"
)

// Error carries the stage a failed export stopped in.
// The cause (capture.CaptureError, pdfs.AssemblyError, ...) stays reachable through errors.As.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export failed while %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Assembler interface {
	Assemble(ctx context.Context, png []byte) ([]byte, error)
}

type Exporter struct {
	Rasterizer capture.Rasterizer
	Assembler  Assembler
	Deliverer  *delivery.Deliverer
	Options    capture.Options
	Metrics    *metrics.Exports

	busy        atomic.Bool
	machineOnce sync.Once
	machine     *stateless.StateMachine
}

func New(r capture.Rasterizer, a Assembler, d *delivery.Deliverer, opts capture.Options, m *metrics.Exports) *Exporter {
	return &Exporter{Rasterizer: r, Assembler: a, Deliverer: d, Options: opts, Metrics: m}
}

func (e *Exporter) sm() *stateless.StateMachine {
	e.machineOnce.Do(func() { e.machine = newMachine() })
	return e.machine
}

func newMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StageIdle)
	sm.Configure(StageIdle).
		Permit(triggerCapture, StageCapturing)
	sm.Configure(StageCapturing).
		Permit(triggerAssemble, StageAssembling).
		Permit(triggerFail, StageIdle)
	sm.Configure(StageAssembling).
		Permit(triggerDeliver, StageDelivering).
		Permit(triggerFail, StageIdle)
	sm.Configure(StageDelivering).
		Permit(triggerFinish, StageIdle).
		Permit(triggerFail, StageIdle)
	return sm
}

// Busy reports whether an export is in flight.
func (e *Exporter) Busy() bool {
	return e.busy.Load()
}

func (e *Exporter) Stage() Stage {
	return e.sm().MustState().(Stage)
}

// Export captures the surface, assembles the PDF and delivers it to sink as fileName.
// It never touches invoice state. The busy flag is cleared on every exit path.
func (e *Exporter) Export(ctx context.Context, surface capture.Surface, fileName string, sink delivery.Sink) (err error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.Metrics.Done(metrics.ResultBusy)
		return ErrBusy
	}
	log := logging.Component("export")
	started := time.Now()
	completed := false
	defer func() {
		if e.Stage() != StageIdle {
			_ = e.sm().Fire(triggerFail)
		}
		e.busy.Store(false)
		switch {
		case err != nil:
			e.Metrics.Done(metrics.ResultError)
			log.Error("export failed", "file", fileName, "err", err)
		case !completed:
			e.Metrics.Done(metrics.ResultError)
			log.Error("export aborted", "file", fileName)
		default:
			e.Metrics.Done(metrics.ResultSuccess)
			log.Info("export delivered", "file", fileName, "took", time.Since(started))
		}
	}()

	var png, doc []byte
	err = e.stage(triggerCapture, func() (err error) {
		png, err = e.Rasterizer.Capture(ctx, surface, e.Options)
		return err
	})
	if err != nil {
		return err
	}
	err = e.stage(triggerAssemble, func() (err error) {
		doc, err = e.Assembler.Assemble(ctx, png)
		return err
	})
	if err != nil {
		return err
	}
	err = e.stage(triggerDeliver, func() error {
		return e.Deliverer.Deliver(ctx, fileName, doc, sink)
	})
	if err != nil {
		return err
	}
	if err = e.sm().Fire(triggerFinish); err != nil {
		return err
	}
	completed = true
	return nil
}

// stage enters the state for trigger, runs fn and times it
func (e *Exporter) stage(trigger string, fn func() error) error {
	if err := e.sm().Fire(trigger); err != nil {
		return err
	}
	st := e.Stage()
	t0 := time.Now()
	err := fn()
	e.Metrics.ObserveStage(string(st), time.Since(t0).Seconds())
	if err != nil {
		return &Error{Stage: st, Err: err}
	}
	return nil
}
