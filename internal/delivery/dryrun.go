package delivery

import (
	"context"

	"github.com/sirupsen/logrus"
)

// DryRun reports every contact as sent without touching a transport.
type DryRun struct{}

func (DryRun) AttemptSend(ctx context.Context, phone, message string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return SkippedUnknownFailure, err
	}
	logrus.Infof("[DryRun] Would send to %s:\n%s", phone, message)
	return Sent, nil
}
