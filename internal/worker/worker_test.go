package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/mailer"
	"github.com/learnhub/backend/pkg/queue"
)

type memLogs struct {
	mu   sync.Mutex
	logs []models.EmailLog
}

func (m *memLogs) Create(_ context.Context, el *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *el)
	return nil
}

func (m *memLogs) all() []models.EmailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EmailLog(nil), m.logs...)
}

type failingSender struct{ err error }

func (f failingSender) Send(context.Context, mailer.Message) error { return f.err }

// chanQueue serves jobs from a channel and records retries.
type chanQueue struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	select {
	case j := <-q.jobs:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (q *chanQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func (q *chanQueue) retries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.retried)
}

func emailJob(t *testing.T, emailType, to string) *queue.Job {
	t.Helper()
	regID := uuid.New()
	job, err := queue.NewJob(queue.JobTypeEmail, queue.EmailPayload{
		EmailType:      emailType,
		RegistrationID: &regID,
		RecipientEmail: to,
		RecipientName:  "Asha",
		Data:           map[string]string{"demo_class_title": "Intro to Go"},
	})
	require.NoError(t, err)
	return job
}

func newProcessor(t *testing.T, sender mailer.Sender, logs *memLogs, q JobSource) *EmailProcessor {
	t.Helper()
	tmpls, err := mailer.LoadTemplates()
	require.NoError(t, err)
	p := NewEmailProcessor(tmpls, sender, logs, q, nil)
	p.backoff = time.Millisecond
	return p
}

func TestProcess_SendsAndLogs(t *testing.T) {
	req := require.New(t)
	console := mailer.NewConsole(nil)
	logs := &memLogs{}
	p := newProcessor(t, console, logs, nil)

	err := p.Process(context.Background(), emailJob(t, models.EmailTypeRegistrationApproved, "asha@learnhub.test"))

	req.NoError(err)
	sent := console.Sent()
	req.Len(sent, 1)
	req.Contains(sent[0].Subject, "Intro to Go")
	got := logs.all()
	req.Len(got, 1)
	req.Equal(models.EmailLogStatusSent, got[0].Status)
	req.NotNil(got[0].SentAt)
}

func TestProcess_SendFailureIsLoggedAndRetryable(t *testing.T) {
	req := require.New(t)
	logs := &memLogs{}
	p := newProcessor(t, failingSender{err: errors.New("sendgrid status 503")}, logs, nil)

	err := p.Process(context.Background(), emailJob(t, models.EmailTypeRegistrationRejected, "asha@learnhub.test"))

	req.Error(err)
	req.False(errors.Is(err, ErrPermanent))
	got := logs.all()
	req.Len(got, 1)
	req.Equal(models.EmailLogStatusFailed, got[0].Status)
	req.Contains(got[0].ErrorMessage, "503")
}

func TestProcess_PermanentFailures(t *testing.T) {
	p := newProcessor(t, mailer.NewConsole(nil), &memLogs{}, nil)

	unknownType := emailJob(t, "newsletter", "asha@learnhub.test")
	wrongKind := &queue.Job{ID: "x", Type: queue.JobType("recording_upload")}
	noRecipient := emailJob(t, models.EmailTypeRegistrationApproved, "")

	for _, job := range []*queue.Job{unknownType, wrongKind, noRecipient} {
		require.ErrorIs(t, p.Process(context.Background(), job), ErrPermanent)
	}
}

func TestRun_RetriesTransientFailuresOnly(t *testing.T) {
	req := require.New(t)
	q := &chanQueue{jobs: make(chan *queue.Job, 2)}
	p := newProcessor(t, failingSender{err: errors.New("timeout")}, &memLogs{}, q)
	q.jobs <- emailJob(t, models.EmailTypePaymentUpdated, "asha@learnhub.test")
	q.jobs <- emailJob(t, "newsletter", "asha@learnhub.test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	req.Eventually(func() bool { return len(q.jobs) == 0 && q.retries() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	req.Equal(1, q.retries())
}
