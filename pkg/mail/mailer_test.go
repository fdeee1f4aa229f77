package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerValidatesEnabledConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.Error(t, err)

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587})
	require.NoError(t, err)
	require.NotNil(t, mailer)
}

func TestDisabledMailerReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestUniqueAddresses(t *testing.T) {
	got := uniqueAddresses([]string{" a@example.com ", "b@example.com", "a@example.com", "", "  "})
	require.Equal(t, []string{"a@example.com", "b@example.com"}, got)
}

func TestFormatMessageHeaders(t *testing.T) {
	msg := formatMessage("from@example.com", []string{"to@example.com"}, "Subject\r\nInjection", "body text")

	require.True(t, strings.HasPrefix(msg, "From: from@example.com\r\n"))
	require.Contains(t, msg, "Subject: Subject  Injection\r\n")
	require.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	require.True(t, strings.HasSuffix(msg, "\r\nbody text"))
	require.NotContains(t, msg, "Injection\r\n\r\n")
}
