package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TaskGroup runs the controller's background tasks and joins them on
// shutdown. A failing or panicking task is logged and reported by Wait; it
// does not stop the other tasks.
type TaskGroup struct {
	g errgroup.Group
}

func (tg *TaskGroup) Go(name string, fn func() error) {
	tg.g.Go(func() (err error) {
		tl := log.With().Str("task", name).Logger()

		// recovery to prevent a task from crashing the process
		defer func() {
			if r := recover(); r != nil {
				tl.Error().Interface("panic", r).Msg("Task recovered from panic")
				err = fmt.Errorf("task %s panicked: %v", name, r)
			}
		}()

		tl.Debug().Msg("Task started")
		if err = fn(); err != nil {
			tl.Error().Err(err).Msg("Task failed")
			return fmt.Errorf("task %s: %w", name, err)
		}
		tl.Debug().Msg("Task stopped")
		return nil
	})
}

// Wait blocks until every task has returned and reports the first failure.
func (tg *TaskGroup) Wait() error {
	return tg.g.Wait()
}
