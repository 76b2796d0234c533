package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ControllerDeps are the collaborators the controller wires together.
// Readiness and Shutdown are created by NewController when left nil.
type ControllerDeps struct {
	NewQueueClient QueueClientFactory
	Handler        MessageHandler
	Dedup          DeduplicationStore // nil = no duplicate skipping
	Registry       *prometheus.Registry
	Readiness      *ReadinessState
	Shutdown       *ShutdownSignal
}

// Controller owns startup ordering and the graceful shutdown sequence.
type Controller struct {
	config    *Config
	deps      ControllerDeps
	readiness *ReadinessState
	shutdown  *ShutdownSignal
	listener  *SignalListener
	metrics   *Metrics
	probe     *ProbeServer
	state     atomic.Int32
}

func NewController(cfg *Config, deps ControllerDeps) *Controller {
	if deps.NewQueueClient == nil {
		deps.NewQueueClient = NewSQSClient
	}
	if deps.Handler == nil {
		deps.Handler = LogHandler(cfg.Logging.Quiet)
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Readiness == nil {
		deps.Readiness = NewReadinessState()
	}
	if deps.Shutdown == nil {
		deps.Shutdown = NewShutdownSignal()
	}

	c := &Controller{
		config:    cfg,
		deps:      deps,
		readiness: deps.Readiness,
		shutdown:  deps.Shutdown,
		listener:  NewSignalListener(deps.Shutdown),
		metrics:   NewMetrics(deps.Registry),
	}

	c.readiness.OnChange(func(ready bool) {
		if ready {
			c.metrics.Ready.Set(1)
		} else {
			c.metrics.Ready.Set(0)
		}
	})

	c.probe = NewProbeServer(cfg.Health, c.readiness, deps.Registry)
	c.setState(StateStarting)
	return c
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// ProbeAddr is the address the probe server is bound to, if any.
func (c *Controller) ProbeAddr() string {
	return c.probe.Addr()
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	log.Debug().Str("state", s.String()).Msg("Controller state changed")
}

// Run starts the worker and blocks until a graceful shutdown completed. It
// only returns an error for startup failures.
func (c *Controller) Run(ctx context.Context) error {
	client, err := c.deps.NewQueueClient(ctx, c.config)
	if err != nil {
		c.setState(StateStopped)
		return fmt.Errorf("failed to initialize SQS client: %w", err)
	}

	queue := NewQueueService(client, c.config.SQS, c.metrics)

	backoff, err := NewBackoff(c.config.Backoff)
	if err != nil {
		c.setState(StateStopped)
		return err
	}

	handler := c.deps.Handler
	if c.deps.Dedup != nil {
		handler = NewDeduplicatingHandler(handler, c.deps.Dedup)
	}

	var tasks TaskGroup

	c.listener.Start()
	tasks.Go("signal-listener", c.listener.Run)

	probeUp := false
	if err := c.probe.Listen(); err != nil {
		log.Error().Err(err).Msg("Health server error, continuing without probes")
	} else {
		probeUp = true
		tasks.Go("probe-server", c.probe.Serve)
	}

	// auxiliary tasks are cancelled while draining; the loop itself is not
	auxCtx, cancelAux := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelAux()

	if c.config.SQS.StatsInterval > 0 {
		tasks.Go("queue-stats", func() error {
			return queue.MonitorQueueStats(auxCtx, c.config.SQS.StatsInterval)
		})
	}

	if c.deps.Dedup != nil && c.config.Dedup.CleanupInterval > 0 {
		tasks.Go("dedup-cleanup", func() error {
			return cleanupDeduplicationStore(auxCtx, c.deps.Dedup, c.config.Dedup.CleanupInterval, c.config.Dedup.Retention)
		})
	}

	c.readiness.SetReady(true)
	c.setState(StateRunning)
	log.Info().Str("queue_url", c.config.SQS.QueueURL).Msg("Application is ready")

	loop := NewProcessingLoop(queue, handler, c.shutdown, backoff, c.metrics, c.config.Logging.Quiet)
	loop.Run(context.WithoutCancel(ctx))

	c.drain(probeUp, cancelAux)

	if err := tasks.Wait(); err != nil {
		log.Warn().Err(err).Msg("Background task ended with an error")
	}

	c.setState(StateStopped)
	log.Info().Msg("Shutdown complete")
	return nil
}

func (c *Controller) drain(probeUp bool, cancelAux context.CancelFunc) {
	c.setState(StateDraining)
	log.Info().Msg("Shutting down gracefully...")

	// fail readiness first so no new work gets routed here
	c.readiness.SetReady(false)

	c.listener.Stop()
	cancelAux()

	if probeUp {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Health.ShutdownTimeout)
		defer cancel()

		if err := c.probe.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down health server")
		}
	}
}
