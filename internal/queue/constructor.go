package queue

import (
	"github.com/storypilot/scheduler/internal/publish"
	"github.com/storypilot/scheduler/internal/repository"
	"github.com/storypilot/scheduler/internal/service"
)

// Worker runs the publish pipeline for one queued post: claim the
// publishing slot, resolve credentials, attempt with retries, record the
// terminal state and one log entry per attempt.
type Worker struct {
	pr      repository.ScheduledPostRepository
	pl      repository.PublishLogRepository
	ac      service.AccountService
	pub     publish.Publisher
	retrier *publish.Retrier
}

func NewWorker(
	pr repository.ScheduledPostRepository,
	pl repository.PublishLogRepository,
	ac service.AccountService,
	pub publish.Publisher,
	retrier *publish.Retrier) *Worker {
	return &Worker{
		pr:      pr,
		pl:      pl,
		ac:      ac,
		pub:     pub,
		retrier: retrier,
	}
}

const TaskTypePublishStory = "publish:story"

type PublishStoryPayload struct {
	PostID int64 `json:"post_id"`
}
