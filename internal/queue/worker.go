package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/publish"
	"github.com/storypilot/scheduler/internal/repository"
)

func (w *Worker) HandlePublishStoryTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishStoryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return w.PublishPost(ctx, payload.PostID)
}

// PublishPost drives one queued post to a terminal status. It returns a
// non-nil error only for infrastructure faults; publish failures land in the
// post's status and last_error, never as a task error.
func (w *Worker) PublishPost(ctx context.Context, postID int64) error {
	post, err := w.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info(fmt.Sprintf("post %d vanished before publishing", postID))
		return nil
	}

	// A cancel issued while the task sat in the queue wins.
	if post.Status != models.PostStatusQueued {
		slog.Info(fmt.Sprintf("skipping post %d, status is %s", postID, post.Status))
		return nil
	}

	if err := w.pr.UpdateStatus(ctx, postID, models.PostStatusQueued, models.PostStatusPublishing); err != nil {
		var se *repository.StateError
		if errors.As(err, &se) {
			// Lost the claim race; whoever won owns the post now.
			return nil
		}
		return err
	}

	creds, err := w.ac.Credentials(ctx, post.AccountID)
	if err != nil {
		w.logAttempt(ctx, post, 1, nil, err)
		w.finish(ctx, post, 1, nil, err)
		return nil
	}

	var result *publish.Result
	attempts, err := w.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		res, aerr := w.pub.Publish(ctx, post, creds)
		if aerr == nil {
			result = res
		}
		w.logAttempt(ctx, post, attempt, res, aerr)
		return aerr
	})

	w.finish(ctx, post, attempts, result, err)
	return nil
}

func (w *Worker) logAttempt(ctx context.Context, post *models.ScheduledPost, attempt int, res *publish.Result, attemptErr error) {
	entry := models.PublishLog{
		PostID:    post.ID,
		UserID:    post.UserID,
		AccountID: post.AccountID,
		Attempt:   attempt,
		Outcome:   publish.Outcome(attemptErr),
	}

	if attemptErr != nil {
		entry.ErrorMessage = attemptErr.Error()
		var pe *publish.ProviderError
		if errors.As(attemptErr, &pe) {
			entry.ProviderResponse = pe.Response
		}
	} else if res != nil {
		entry.ExternalPostID = res.ExternalPostID
		entry.ProviderResponse = res.RawResponse
	}

	if _, err := w.pl.Create(ctx, &entry); err != nil {
		slog.Info(fmt.Sprintf("error saving publish log for post %d: %v", post.ID, err))
	}
}

func (w *Worker) finish(ctx context.Context, post *models.ScheduledPost, attempts int, res *publish.Result, publishErr error) {
	if publishErr == nil {
		if err := w.pr.MarkPublished(ctx, post.ID, res.ExternalPostID, attempts); err != nil {
			slog.Info(fmt.Sprintf("error marking post %d published: %v", post.ID, err))
		}
		return
	}

	if err := w.pr.MarkFailed(ctx, post.ID, publishErr.Error(), attempts); err != nil {
		slog.Info(fmt.Sprintf("error marking post %d failed: %v", post.ID, err))
	}

	var ae *publish.AuthError
	if errors.As(publishErr, &ae) {
		if err := w.ac.Freeze(ctx, post.AccountID); err != nil {
			slog.Info(fmt.Sprintf("error freezing account %d: %v", post.AccountID, err))
		}
	}
}
