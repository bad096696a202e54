// Package daemon handles process signals for long-running hostsync commands.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownHandler turns SIGINT and SIGTERM into context cancellation and
// SIGHUP into resync requests.
type ShutdownHandler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
	resync  chan struct{}
	done    chan struct{}
}

// NewShutdownHandler creates a handler whose context derives from parent.
func NewShutdownHandler(parent context.Context) *ShutdownHandler {
	ctx, cancel := context.WithCancel(parent)
	return &ShutdownHandler{
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		resync:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start begins listening for signals.
func (h *ShutdownHandler) Start() {
	signal.Notify(h.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	go func() {
		defer close(h.done)
		for {
			select {
			case sig := <-h.sigChan:
				if sig == syscall.SIGHUP {
					h.RequestResync()
					continue
				}
				h.cancel()
				return
			case <-h.ctx.Done():
				return
			}
		}
	}()
}

// Stop stops listening and cancels the context.
func (h *ShutdownHandler) Stop() {
	signal.Stop(h.sigChan)
	h.cancel()
	<-h.done
}

// Context returns a context that is canceled on shutdown.
func (h *ShutdownHandler) Context() context.Context {
	return h.ctx
}

// Done is closed once shutdown starts.
func (h *ShutdownHandler) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Resync receives once per SIGHUP. Requests arriving while one is pending
// are coalesced.
func (h *ShutdownHandler) Resync() <-chan struct{} {
	return h.resync
}

// RequestResync queues a resync as if SIGHUP had arrived.
func (h *ShutdownHandler) RequestResync() {
	select {
	case h.resync <- struct{}{}:
	default:
	}
}
