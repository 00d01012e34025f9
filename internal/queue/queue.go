package queue

import (
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Enqueuer hands a claimed post to the worker pool. The dispatcher depends
// on this interface so tests can run the pipeline synchronously.
type Enqueuer interface {
	EnqueuePost(payload PublishStoryPayload) error
}

type ClientEnqueuer struct {
	client *asynq.Client
}

func NewClientEnqueuer(client *asynq.Client) *ClientEnqueuer {
	return &ClientEnqueuer{client: client}
}

// EnqueuePost submits a publish task for immediate processing. Asynq's own
// retry is disabled; the retry handler inside the worker owns all retries.
func (e *ClientEnqueuer) EnqueuePost(payload PublishStoryPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishStory, taskPayload, asynq.MaxRetry(0))

	_, err = e.client.Enqueue(task)
	if err != nil {
		return err
	}

	log.Printf("Publish task enqueued: %+v", payload)
	return nil
}
