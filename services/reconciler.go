package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/repositories"
)

// Reconciler periodically recomputes every task and project rollup so that
// drift introduced outside this service heals without a user request.
type Reconciler struct {
	tasks    *TaskService
	store    repositories.Store
	schedule string

	mu   sync.Mutex
	cron *cron.Cron
}

func NewReconciler(store repositories.Store, tasks *TaskService, schedule string) *Reconciler {
	return &Reconciler{tasks: tasks, store: store, schedule: schedule}
}

// Start registers the sweep on the cron schedule. The sweep stops with ctx.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := cron.PrintfLogger(logging.Logger)
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.Sweep(ctx); err != nil {
			logging.Logger.Errorf("Event ID: RECONCILE_FAILED, Description: Rollup sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	logging.Logger.Infof("Event ID: RECONCILER_STARTED, Description: Rollup sweep scheduled at %q", r.schedule)
	return nil
}

func (r *Reconciler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
		logging.Logger.Warn("Event ID: RECONCILER_STOP_TIMEOUT, Description: Timed out waiting for running sweep")
	}
	logging.Logger.Info("Event ID: RECONCILER_STOPPED, Description: Rollup sweep stopped")
}

// Sweep recomputes the rollups of every project, one transaction per
// project, and returns how many projects were processed.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	projects, err := r.store.ListProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}

	done := 0
	for _, project := range projects {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		projectID := project.ID
		err := r.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
			tasks, err := tx.ListTasksByProject(ctx, projectID)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				if err := r.tasks.recomputeTaskRollup(ctx, tx, t.ID); err != nil {
					return fmt.Errorf("task %s: %w", t.ID, err)
				}
			}
			return r.tasks.recomputeProjectRollup(ctx, tx, projectID)
		})
		if err != nil {
			logging.Logger.Errorf("Event ID: RECONCILE_PROJECT_FAILED, Description: Rollup sweep failed for project %s: %v", projectID, err)
			continue
		}
		done++
	}

	logging.Logger.Infof("Event ID: RECONCILE_DONE, Description: Recomputed rollups for %d of %d projects", done, len(projects))
	return done, nil
}
