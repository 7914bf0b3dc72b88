package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/pkg/config"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailerBuildsSimpleMessage(t *testing.T) {
	client := &fakeSES{}
	m := NewSESMailer(client, "noreply@academy.test", "Academy", zap.NewNop())

	err := m.Send(context.Background(), Message{To: "parent@example.com", Subject: "Your code", TextBody: "123456"})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "Academy <noreply@academy.test>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"parent@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Your code", aws.ToString(client.input.Content.Simple.Subject.Data))
	assert.Equal(t, "123456", aws.ToString(client.input.Content.Simple.Body.Text.Data))
	assert.Nil(t, client.input.Content.Simple.Body.Html)
}

func TestSESMailerWrapsErrors(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	m := NewSESMailer(client, "noreply@academy.test", "", nil)

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "s", TextBody: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.err)
}

func TestNewFallsBackToLogMailer(t *testing.T) {
	m, err := New(context.Background(), config.MailConfig{}, nil)
	require.NoError(t, err)
	_, ok := m.(*LogMailer)
	assert.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), Message{To: "a@example.com"}))
}
