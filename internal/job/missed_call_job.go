package job

import (
	"context"

	"go.uber.org/zap"
)

// InvitationExpirer is the slice of the call service the sweep needs.
type InvitationExpirer interface {
	ExpireStaleInvitations(ctx context.Context) (int, error)
}

// MissedCallJob is the backstop behind the per-invitation timers: a
// process restart drops the in-memory timers, so a periodic sweep moves
// any stale INITIATED calls to MISSED. The sweep reuses the same
// compare-and-swap transition as the timers, so running both never
// double-resolves a call.
type MissedCallJob struct {
	calls  InvitationExpirer
	logger *zap.Logger
}

// NewMissedCallJob creates a new MissedCallJob instance
func NewMissedCallJob(calls InvitationExpirer, logger *zap.Logger) *MissedCallJob {
	return &MissedCallJob{
		calls:  calls,
		logger: logger,
	}
}

// Run executes one sweep over stale invitations
func (j *MissedCallJob) Run() {
	ctx := context.Background()

	expired, err := j.calls.ExpireStaleInvitations(ctx)
	if err != nil {
		j.logger.Error("Missed-call sweep failed", zap.Error(err))
		return
	}

	if expired > 0 {
		j.logger.Info("Missed-call sweep completed", zap.Int("expired", expired))
	}
}
