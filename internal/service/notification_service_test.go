package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/jobs"
	"github.com/noah-isme/academy-api/pkg/mailer"
)

type recordingMailer struct {
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingQueue struct {
	jobs []jobs.Job
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func TestNotificationSendOTPInline(t *testing.T) {
	m := &recordingMailer{}
	metrics := NewMetricsService()
	svc := NewNotificationService(m, NotificationConfig{AppBaseURL: "https://academy.test"}, zap.NewNop(), metrics)

	user := &models.User{ID: "u1", FirstName: "Ana", Email: strPtr("ana@example.com")}
	require.NoError(t, svc.SendOTP(context.Background(), user, "482913", 10*time.Minute))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "ana@example.com", m.sent[0].To)
	assert.Contains(t, m.sent[0].TextBody, "482913")
	assert.Contains(t, m.sent[0].TextBody, "10 minutes")
	assert.Contains(t, m.sent[0].HTMLBody, "<strong>482913</strong>")
}

func TestNotificationResetGoesThroughQueue(t *testing.T) {
	m := &recordingMailer{}
	q := &recordingQueue{}
	svc := NewNotificationService(m, NotificationConfig{AppBaseURL: "https://academy.test"}, zap.NewNop(), nil)
	svc.UseQueue(q)

	user := &models.User{ID: "u1", FirstName: "Ana", Email: strPtr("ana@example.com")}
	require.NoError(t, svc.SendPasswordReset(context.Background(), user, "abc123", time.Hour))

	assert.Empty(t, m.sent)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, JobTypeResetMail, q.jobs[0].Type)

	require.NoError(t, svc.HandleJob(context.Background(), q.jobs[0]))
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].TextBody, "https://academy.test/reset-password?token=abc123")
	assert.Contains(t, m.sent[0].TextBody, "1 hour")
}

func TestNotificationRequiresRecipient(t *testing.T) {
	svc := NewNotificationService(&recordingMailer{}, NotificationConfig{}, nil, nil)
	err := svc.SendOTP(context.Background(), &models.User{ID: "u1"}, "123456", time.Minute)
	assert.Error(t, err)
}

func TestNotificationHandleJobPropagatesMailerError(t *testing.T) {
	svc := NewNotificationService(&recordingMailer{err: errors.New("ses down")}, NotificationConfig{}, nil, nil)
	err := svc.HandleJob(context.Background(), jobs.Job{ID: "j1", Type: JobTypeOTPMail, Payload: mailer.Message{To: "a@example.com"}})
	assert.EqualError(t, err, "ses down")

	assert.NoError(t, svc.HandleJob(context.Background(), jobs.Job{ID: "j2", Payload: "junk"}))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "10 minutes", humanDuration(10*time.Minute))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "2 hours", humanDuration(2*time.Hour))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}
