package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/queue"
	"github.com/storypilot/scheduler/internal/repository"
)

// DispatcherJob is the cron-driven heart of the pipeline. Each tick it
// claims due posts within the rate budget, orders them, and hands them to
// the worker pool. The queue is rebuilt from the store every tick; nothing
// carries over.
type DispatcherJob struct {
	pr  repository.ScheduledPostRepository
	qm  *queue.Manager
	enq queue.Enqueuer
	now func() time.Time
}

func NewDispatcherJob(pr repository.ScheduledPostRepository, qm *queue.Manager, enq queue.Enqueuer) *DispatcherJob {
	return &DispatcherJob{
		pr:  pr,
		qm:  qm,
		enq: enq,
		now: time.Now,
	}
}

// Run is the cron entrypoint. Nothing escapes it; a broken tick waits for
// the next interval.
func (d *DispatcherJob) Run() {
	d.RunTick(context.Background())
}

func (d *DispatcherJob) RunTick(ctx context.Context) {
	budget := d.qm.Budget()
	if budget == 0 {
		return
	}

	posts, err := d.pr.ClaimDue(ctx, d.now(), budget)
	if err != nil {
		// Store trouble ends the whole tick; unclaimed posts are still
		// scheduled and the next tick retries them.
		slog.Info(fmt.Sprintf("dispatcher tick aborted, claim failed: %v", err))
		return
	}
	if len(posts) == 0 {
		return
	}

	d.qm.Commit(len(posts))

	for _, post := range d.qm.Order(posts) {
		if err := d.enq.EnqueuePost(queue.PublishStoryPayload{PostID: post.ID}); err != nil {
			slog.Info(fmt.Sprintf("error enqueueing post %d: %v", post.ID, err))
			// Hand the post back to a later tick; no attempt was recorded
			// yet so the claim is safe to undo.
			if rerr := d.pr.Reschedule(ctx, post.ID, post.ScheduledFor, models.PostStatusScheduled); rerr != nil {
				slog.Info(fmt.Sprintf("error releasing claim on post %d: %v", post.ID, rerr))
			}
			continue
		}
	}
}
