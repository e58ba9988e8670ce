package whatsapp

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/whatsapp-automation/broadcaster/internal/antiban"
	"github.com/whatsapp-automation/broadcaster/internal/delivery"
)

// Conn is the part of a linked-device connection the sender uses.
type Conn interface {
	LoggedIn() bool
	Registered(ctx context.Context, phone string) (bool, error)
	Typing(ctx context.Context) error
	Send(ctx context.Context, phone, text string) error
}

var _ Conn = (*Client)(nil)

// Sender delivers over a Conn with the same pacing and session recovery
// rules as the browser driver.
type Sender struct {
	conn  Conn
	pacer *antiban.Pacer

	MaxSessionRetries int
	Hooks             delivery.Hooks
}

var _ delivery.Sender = (*Sender)(nil)

// NewSender wires a sender to a connection and a pacer.
func NewSender(conn Conn, pacer *antiban.Pacer) *Sender {
	return &Sender{
		conn:              conn,
		pacer:             pacer,
		MaxSessionRetries: delivery.DefaultMaxSessionRetries,
	}
}

// AttemptSend sends message to phone, waiting out a dropped connection at
// most MaxSessionRetries times.
func (s *Sender) AttemptSend(ctx context.Context, phone, message string) (delivery.Outcome, error) {
	for retry := 0; ; retry++ {
		outcome, err := s.attempt(ctx, phone, message)
		if err != nil || outcome != delivery.SessionLost {
			return outcome, err
		}

		if retry >= s.MaxSessionRetries {
			logrus.Errorf("[WhatsApp] Session lost %d times while sending to %s, skipping", retry+1, phone)
			return delivery.SkippedUnknownFailure, nil
		}
		if err := s.awaitReconnect(ctx, phone); err != nil {
			return delivery.SkippedUnknownFailure, err
		}
	}
}

func (s *Sender) attempt(ctx context.Context, phone, message string) (delivery.Outcome, error) {
	policy := s.pacer.Policy

	if err := s.pacer.Wait(ctx, policy.PreSend); err != nil {
		return delivery.SkippedUnknownFailure, err
	}
	if !s.conn.LoggedIn() {
		return delivery.SessionLost, nil
	}

	ok, err := s.conn.Registered(ctx, phone)
	if err != nil {
		return s.failed(ctx, phone, "lookup", err)
	}
	if !ok {
		logrus.Warnf("[WhatsApp] Invalid number detected for %s", phone)
		return delivery.InvalidNumber, nil
	}

	if err := s.conn.Typing(ctx); err != nil {
		logrus.Debugf("[WhatsApp] Failed to send presence: %v", err)
	}
	if err := s.pacer.Wait(ctx, policy.PreSubmit); err != nil {
		return delivery.SkippedUnknownFailure, err
	}

	if err := s.conn.Send(ctx, phone, message); err != nil {
		if !s.conn.LoggedIn() && ctx.Err() == nil {
			return delivery.SessionLost, nil
		}
		return s.failed(ctx, phone, "send", err)
	}
	logrus.Infof("[WhatsApp] Message sent to %s", phone)

	if err := s.pacer.Wait(ctx, policy.PostSubmit); err != nil {
		return delivery.Sent, err
	}
	return delivery.Sent, nil
}

func (s *Sender) failed(ctx context.Context, phone, step string, err error) (delivery.Outcome, error) {
	if ctx.Err() != nil {
		return delivery.SkippedUnknownFailure, ctx.Err()
	}
	logrus.Errorf("[WhatsApp] Failed to send message to %s (%s): %v", phone, step, err)
	return delivery.SkippedUnknownFailure, nil
}
