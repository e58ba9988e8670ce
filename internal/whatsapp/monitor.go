package whatsapp

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// awaitReconnect polls the connection until auto-reconnect brings the
// session back. Only ctx ends the wait.
func (s *Sender) awaitReconnect(ctx context.Context, phone string) error {
	logrus.Warnf("[Monitor] Connection lost while sending to %s, waiting for reconnect...", phone)
	if s.Hooks.SessionLost != nil {
		s.Hooks.SessionLost(ctx, phone)
	}

	start := time.Now()
	for !s.conn.LoggedIn() {
		if err := s.pacer.Sleep(ctx, s.pacer.Policy.PollInterval); err != nil {
			return err
		}
	}

	waited := time.Since(start)
	logrus.Infof("[Monitor] Reconnected after %v, resuming", waited.Round(time.Second))
	if s.Hooks.SessionRestored != nil {
		s.Hooks.SessionRestored(ctx, phone, waited)
	}
	return nil
}
