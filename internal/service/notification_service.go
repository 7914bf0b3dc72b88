package service

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/jobs"
	"github.com/noah-isme/academy-api/pkg/mailer"
)

// Job types handled by the mail queue.
const (
	JobTypeOTPMail   = "mail.otp"
	JobTypeResetMail = "mail.password_reset"
)

type mailEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type mailRecorder interface {
	RecordMailJob(outcome string)
}

// NotificationConfig controls rendered links and branding.
type NotificationConfig struct {
	AppBaseURL  string
	ProductName string
}

// NotificationService renders auth messages and hands them to the mail queue.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   mailEnqueuer
	config  NotificationConfig
	logger  *zap.Logger
	metrics mailRecorder
}

// NewNotificationService constructs a NotificationService. Without a queue
// messages are sent inline.
func NewNotificationService(m mailer.Mailer, cfg NotificationConfig, logger *zap.Logger, metrics mailRecorder) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Academy"
	}
	return &NotificationService{mailer: m, config: cfg, logger: logger, metrics: metrics}
}

// UseQueue routes messages through q.
func (s *NotificationService) UseQueue(q mailEnqueuer) {
	s.queue = q
}

// SendOTP delivers a one-time login code.
func (s *NotificationService) SendOTP(ctx context.Context, user *models.User, code string, ttl time.Duration) error {
	name := displayName(user)
	subject := fmt.Sprintf("Your %s login code", s.config.ProductName)
	text := fmt.Sprintf("Hi %s,\n\nYour one-time login code is %s.\nIt expires in %s and can be used once.\n\nIf you did not request this code, you can ignore this email.\n", name, code, humanDuration(ttl))
	htmlBody := fmt.Sprintf(`<p>Hi %s,</p><p>Your one-time login code is <strong>%s</strong>.</p><p>It expires in %s and can be used once.</p><p>If you did not request this code, you can ignore this email.</p>`,
		html.EscapeString(name), code, humanDuration(ttl))

	return s.dispatch(ctx, JobTypeOTPMail, mailer.Message{To: user.EmailAddress(), Subject: subject, TextBody: text, HTMLBody: htmlBody})
}

// SendPasswordReset delivers a reset link carrying rawToken.
func (s *NotificationService) SendPasswordReset(ctx context.Context, user *models.User, rawToken string, ttl time.Duration) error {
	name := displayName(user)
	link := fmt.Sprintf("%s/reset-password?token=%s", s.config.AppBaseURL, url.QueryEscape(rawToken))
	subject := fmt.Sprintf("Reset your %s password", s.config.ProductName)
	text := fmt.Sprintf("Hi %s,\n\nWe received a request to reset your password.\nOpen the link below to choose a new one:\n%s\n\nThis link expires in %s.\n\nIf you did not request a reset, you can ignore this email.\n", name, link, humanDuration(ttl))
	htmlBody := fmt.Sprintf(`<p>Hi %s,</p><p>We received a request to reset your password.</p><p><a href="%s">Reset password</a></p><p>This link expires in %s.</p><p>If you did not request a reset, you can ignore this email.</p>`,
		html.EscapeString(name), html.EscapeString(link), humanDuration(ttl))

	return s.dispatch(ctx, JobTypeResetMail, mailer.Message{To: user.EmailAddress(), Subject: subject, TextBody: text, HTMLBody: htmlBody})
}

// HandleJob is the mail queue handler.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		s.logger.Error("unexpected mail job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	return s.deliver(ctx, msg)
}

func (s *NotificationService) dispatch(ctx context.Context, jobType string, msg mailer.Message) error {
	if msg.To == "" {
		return fmt.Errorf("%s: recipient has no email address", jobType)
	}
	if s.queue == nil {
		return s.deliver(ctx, msg)
	}
	return s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: msg})
}

func (s *NotificationService) deliver(ctx context.Context, msg mailer.Message) error {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.recordMail(OutcomeFailure)
		return err
	}
	s.recordMail(OutcomeSuccess)
	return nil
}

func (s *NotificationService) recordMail(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordMailJob(outcome)
	}
}

func displayName(user *models.User) string {
	if name := user.FullName(); name != "" {
		return name
	}
	return "there"
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
