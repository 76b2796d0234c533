package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
)

// bridges SIGINT/SIGTERM into the shutdown signal
type SignalListener struct {
	shutdown  *ShutdownSignal
	signals   chan os.Signal
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSignalListener(shutdown *ShutdownSignal) *SignalListener {
	return &SignalListener{
		shutdown: shutdown,
		signals:  make(chan os.Signal, 1),
		stop:     make(chan struct{}),
	}
}

// Start subscribes to the termination signals. Only the first call has effect.
func (l *SignalListener) Start() {
	l.startOnce.Do(func() {
		// ctrl-c or sigterm which is what docker and kubernetes send
		signal.Notify(l.signals, syscall.SIGINT, syscall.SIGTERM)
	})
}

// Run blocks until the first notification or until Stop is called. It only
// returns an error type to fit the task group.
func (l *SignalListener) Run() error {
	select {
	case sig := <-l.signals:
		log.Info().Str("signal", sig.String()).Msg("Received termination signal")
		l.shutdown.Trigger()
	case <-l.stop:
		log.Debug().Msg("Signal listener stopped")
	}
	return nil
}

// Stop revokes the subscription and releases a waiting Run.
func (l *SignalListener) Stop() {
	l.stopOnce.Do(func() {
		signal.Stop(l.signals)
		close(l.stop)
	})
}
