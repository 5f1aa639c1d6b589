package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeExpirer struct {
	calls   int
	expired int
	err     error
}

func (f *fakeExpirer) ExpireStaleInvitations(ctx context.Context) (int, error) {
	f.calls++
	return f.expired, f.err
}

func TestMissedCallJob_Run(t *testing.T) {
	expirer := &fakeExpirer{expired: 2}
	job := NewMissedCallJob(expirer, zap.NewNop())

	job.Run()

	assert.Equal(t, 1, expirer.calls)
}

func TestMissedCallJob_Run_SweepErrorIsSwallowed(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("database down")}
	job := NewMissedCallJob(expirer, zap.NewNop())

	// Cron jobs must not panic on a failed sweep
	job.Run()

	assert.Equal(t, 1, expirer.calls)
}
