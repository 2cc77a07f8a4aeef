// Package svc defines the lifecycle contract of long-running parts managed by conf.Core.
package svc

type Service interface {
	Start() error // bootstrapping error only
	Stop()
	// Done - shutdown error channel
	// consumed by conf.Core only; implementations never close it
	Done() <-chan error
	Name() string
}

// internal service states
const (
	StateREADY = iota + 1
	StateRUNNING
	StateSTOPPED
)
