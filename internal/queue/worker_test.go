package queue

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/publish"
	"github.com/storypilot/scheduler/internal/repository"
)

// mockPostRepo implements repository.ScheduledPostRepository for testing.
type mockPostRepo struct {
	posts map[int64]*models.ScheduledPost

	getErr    error
	updateErr error
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[int64]*models.ScheduledPost)}
}

func (m *mockPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	return 0, nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.posts[id], nil
}

func (m *mockPostRepo) ListByUser(ctx context.Context, userID int64, status string) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (m *mockPostRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (m *mockPostRepo) ListSeries(ctx context.Context, lookbackDays int) ([]*models.SeriesSummary, error) {
	return nil, nil
}

func (m *mockPostRepo) GetSeriesLatest(ctx context.Context, seriesID string) (*models.ScheduledPost, error) {
	return nil, nil
}

func (m *mockPostRepo) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.posts[id]
	if !ok || p.Status != from {
		return &repository.StateError{PostID: id, From: from, To: to}
	}
	p.Status = to
	return nil
}

func (m *mockPostRepo) MarkPublished(ctx context.Context, id int64, externalPostID string, attempts int) error {
	p := m.posts[id]
	p.Status = models.PostStatusPublished
	p.ExternalPostID = externalPostID
	p.AttemptCount = attempts
	return nil
}

func (m *mockPostRepo) MarkFailed(ctx context.Context, id int64, lastError string, attempts int) error {
	p := m.posts[id]
	p.Status = models.PostStatusFailed
	p.LastError = lastError
	p.AttemptCount = attempts
	return nil
}

func (m *mockPostRepo) Reschedule(ctx context.Context, id int64, scheduledFor time.Time, status string) error {
	return nil
}

func (m *mockPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return false, nil
}

func (m *mockPostRepo) Stats(ctx context.Context, userID int64) (int, int, int, error) {
	return 0, 0, 0, nil
}

func (m *mockPostRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

// mockLogRepo implements repository.PublishLogRepository for testing.
type mockLogRepo struct {
	entries []*models.PublishLog
}

func (m *mockLogRepo) Create(ctx context.Context, entry *models.PublishLog) (int64, error) {
	m.entries = append(m.entries, entry)
	return int64(len(m.entries)), nil
}

func (m *mockLogRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error) {
	return m.entries, nil
}

// mockAccountService implements service.AccountService for testing.
type mockAccountService struct {
	creds    publish.Credentials
	credsErr error
	frozen   []int64
}

func (m *mockAccountService) AuthURL(state string) string {
	return ""
}

func (m *mockAccountService) HandleCallback(ctx context.Context, code string, userID int64) error {
	return nil
}

func (m *mockAccountService) Credentials(ctx context.Context, accountID int64) (publish.Credentials, error) {
	if m.credsErr != nil {
		return publish.Credentials{}, m.credsErr
	}
	return m.creds, nil
}

func (m *mockAccountService) Freeze(ctx context.Context, accountID int64) error {
	m.frozen = append(m.frozen, accountID)
	return nil
}

func (m *mockAccountService) RefreshAccount(ctx context.Context, acc *models.SnapAccount) error {
	return nil
}

func (m *mockAccountService) List(ctx context.Context, userID int64) ([]*models.SnapAccount, error) {
	return nil, nil
}

func (m *mockAccountService) Remove(ctx context.Context, userID, accountID int64) error {
	return nil
}

// mockPublisher fails the first failures attempts, then succeeds.
type mockPublisher struct {
	failures int
	err      error
	calls    int
	result   *publish.Result
}

func (m *mockPublisher) Publish(ctx context.Context, post *models.ScheduledPost, creds publish.Credentials) (*publish.Result, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &publish.Result{ExternalPostID: "story-1"}, nil
}

func queuedPost(id int64) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:        id,
		UserID:    1,
		AccountID: 2,
		Status:    models.PostStatusQueued,
	}
}

func newTestWorker(pr *mockPostRepo, pl *mockLogRepo, ac *mockAccountService, pub publish.Publisher) *Worker {
	retrier := publish.NewRetrier(5, time.Second, time.Minute)
	retrier.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return NewWorker(pr, pl, ac, pub, retrier)
}

func TestPublishPost_Success(t *testing.T) {
	pr := newMockPostRepo()
	pr.posts[1] = queuedPost(1)
	pl := &mockLogRepo{}
	ac := &mockAccountService{creds: publish.Credentials{ProfileID: "p", AccessToken: "t"}}
	pub := &mockPublisher{}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := pr.posts[1]
	if p.Status != models.PostStatusPublished {
		t.Errorf("expected status published, got %q", p.Status)
	}
	if p.ExternalPostID != "story-1" {
		t.Errorf("expected external id recorded, got %q", p.ExternalPostID)
	}
	if p.AttemptCount != 1 {
		t.Errorf("expected 1 attempt, got %d", p.AttemptCount)
	}
	if len(pl.entries) != 1 || pl.entries[0].Outcome != models.OutcomeSuccess {
		t.Errorf("expected one success log entry, got %+v", pl.entries)
	}
}

func TestPublishPost_TransientFailuresThenSuccess(t *testing.T) {
	pr := newMockPostRepo()
	pr.posts[1] = queuedPost(1)
	pl := &mockLogRepo{}
	ac := &mockAccountService{creds: publish.Credentials{ProfileID: "p", AccessToken: "t"}}
	pub := &mockPublisher{
		failures: 2,
		err:      &publish.ProviderError{Stage: publish.StageUpload, StatusCode: 503},
	}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := pr.posts[1]
	if p.Status != models.PostStatusPublished {
		t.Errorf("expected status published, got %q", p.Status)
	}
	if p.AttemptCount != 3 {
		t.Errorf("expected 3 attempts, got %d", p.AttemptCount)
	}
	if len(pl.entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(pl.entries))
	}
	for i, e := range pl.entries[:2] {
		if e.Outcome != models.OutcomeTransientError {
			t.Errorf("entry %d: expected transient_error, got %q", i, e.Outcome)
		}
		if e.Attempt != i+1 {
			t.Errorf("entry %d: expected attempt %d, got %d", i, i+1, e.Attempt)
		}
	}
	if pl.entries[2].Outcome != models.OutcomeSuccess {
		t.Errorf("expected final entry success, got %q", pl.entries[2].Outcome)
	}
}

func TestPublishPost_PermanentFailure(t *testing.T) {
	pr := newMockPostRepo()
	pr.posts[1] = queuedPost(1)
	pl := &mockLogRepo{}
	ac := &mockAccountService{creds: publish.Credentials{ProfileID: "p", AccessToken: "t"}}
	pub := &mockPublisher{
		failures: 10,
		err:      &publish.ValidationError{Reason: "unsupported media type"},
	}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("expected publish failures to stay out of the task error, got %v", err)
	}

	p := pr.posts[1]
	if p.Status != models.PostStatusFailed {
		t.Errorf("expected status failed, got %q", p.Status)
	}
	if p.AttemptCount != 1 {
		t.Errorf("expected 1 attempt for a validation failure, got %d", p.AttemptCount)
	}
	if p.LastError == "" {
		t.Error("expected last_error recorded")
	}
	if len(ac.frozen) != 0 {
		t.Errorf("expected no account freeze, got %v", ac.frozen)
	}
}

func TestPublishPost_RetriesExhausted(t *testing.T) {
	pr := newMockPostRepo()
	pr.posts[1] = queuedPost(1)
	pl := &mockLogRepo{}
	ac := &mockAccountService{creds: publish.Credentials{ProfileID: "p", AccessToken: "t"}}
	pub := &mockPublisher{
		failures: 10,
		err:      &publish.ProviderError{Stage: publish.StageAttach, StatusCode: 500},
	}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := pr.posts[1]
	if p.Status != models.PostStatusFailed {
		t.Errorf("expected status failed, got %q", p.Status)
	}
	if p.AttemptCount != 5 {
		t.Errorf("expected 5 attempts, got %d", p.AttemptCount)
	}
	if len(pl.entries) != 5 {
		t.Errorf("expected 5 log entries, got %d", len(pl.entries))
	}
}

func TestPublishPost_AuthFailureFreezesAccount(t *testing.T) {
	pr := newMockPostRepo()
	pr.posts[1] = queuedPost(1)
	pl := &mockLogRepo{}
	ac := &mockAccountService{creds: publish.Credentials{ProfileID: "p", AccessToken: "t"}}
	pub := &mockPublisher{
		failures: 10,
		err:      &publish.AuthError{Reason: "token revoked"},
	}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pr.posts[1].Status != models.PostStatusFailed {
		t.Errorf("expected status failed, got %q", pr.posts[1].Status)
	}
	if len(ac.frozen) != 1 || ac.frozen[0] != 2 {
		t.Errorf("expected account 2 frozen, got %v", ac.frozen)
	}
}

func TestPublishPost_CredentialFailure(t *testing.T) {
	pr := newMockPostRepo()
	pr.posts[1] = queuedPost(1)
	pl := &mockLogRepo{}
	ac := &mockAccountService{credsErr: &publish.AuthError{Reason: "account frozen"}}
	pub := &mockPublisher{}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pr.posts[1].Status != models.PostStatusFailed {
		t.Errorf("expected status failed, got %q", pr.posts[1].Status)
	}
	if pub.calls != 0 {
		t.Errorf("expected no publish attempt, got %d", pub.calls)
	}
	if len(pl.entries) != 1 || pl.entries[0].Outcome != models.OutcomePermanentError {
		t.Errorf("expected one permanent_error log entry, got %+v", pl.entries)
	}
}

func TestPublishPost_CancelledPostSkipped(t *testing.T) {
	pr := newMockPostRepo()
	post := queuedPost(1)
	post.Status = models.PostStatusCancelled
	pr.posts[1] = post
	pl := &mockLogRepo{}
	ac := &mockAccountService{}
	pub := &mockPublisher{}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pr.posts[1].Status != models.PostStatusCancelled {
		t.Errorf("expected cancel to win, got %q", pr.posts[1].Status)
	}
	if pub.calls != 0 {
		t.Errorf("expected no publish attempt, got %d", pub.calls)
	}
}

func TestPublishPost_VanishedPost(t *testing.T) {
	pr := newMockPostRepo()
	pl := &mockLogRepo{}
	ac := &mockAccountService{}
	pub := &mockPublisher{}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.calls != 0 {
		t.Errorf("expected no publish attempt, got %d", pub.calls)
	}
}

func TestPublishPost_StoreFailureIsTaskError(t *testing.T) {
	pr := newMockPostRepo()
	pr.getErr = errors.New("connection refused")
	pl := &mockLogRepo{}
	ac := &mockAccountService{}
	pub := &mockPublisher{}

	w := newTestWorker(pr, pl, ac, pub)

	if err := w.PublishPost(context.Background(), 1); err == nil {
		t.Error("expected infrastructure fault to surface as a task error")
	}
}
