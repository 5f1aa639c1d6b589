package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"call-service/internal/client"
	"call-service/internal/middleware"
	"call-service/internal/repository"
)

// Paid plan tiers grant unlimited calling. Matched as case-insensitive
// substrings of the plan name.
var paidTiers = []string{"monthly", "quarterly", "yearly"}

// UserDirectory is the slice of the user collaborator the evaluator
// needs: role and display info by user id.
type UserDirectory interface {
	GetUserInfo(ctx context.Context, userID, token string) (*client.UserInfo, error)
}

// EligibilityResult carries the decision plus enough detail for logs.
type EligibilityResult struct {
	Eligible bool
	Reason   string
}

// EligibilityService decides whether a user may place or receive a call.
// It is stateless and read-through: every evaluation re-queries the
// collaborators so answers never go stale. Safe for concurrent use.
//
// Check order (first match decides):
//  1. staff role -> eligible
//  2. no active subscription -> not eligible
//  3. paid tier -> eligible
//  4. free/trial tier: today's completed-call seconds < budget
//
// Collaborator failures fail closed: a failed role lookup just skips the
// bypass, a failed subscription or usage query denies.
type EligibilityService struct {
	subscriptions repository.SubscriptionRepository
	calls         repository.CallRepository
	users         UserDirectory
	budgetSeconds int
	logger        *zap.Logger
}

func NewEligibilityService(
	subscriptions repository.SubscriptionRepository,
	calls repository.CallRepository,
	users UserDirectory,
	budgetSeconds int,
	logger *zap.Logger,
) *EligibilityService {
	return &EligibilityService{
		subscriptions: subscriptions,
		calls:         calls,
		users:         users,
		budgetSeconds: budgetSeconds,
		logger:        logger,
	}
}

// IsEligible is the boolean shortcut over Evaluate.
func (s *EligibilityService) IsEligible(ctx context.Context, userID uuid.UUID) bool {
	return s.Evaluate(ctx, userID).Eligible
}

func (s *EligibilityService) Evaluate(ctx context.Context, userID uuid.UUID) EligibilityResult {
	result := s.evaluate(ctx, userID)
	middleware.RecordEligibilityCheck(result.Eligible)

	s.logger.Debug("Eligibility evaluated",
		zap.String("userId", userID.String()),
		zap.Bool("eligible", result.Eligible),
		zap.String("reason", result.Reason))
	return result
}

func (s *EligibilityService) evaluate(ctx context.Context, userID uuid.UUID) EligibilityResult {
	// 1. Staff bypass
	info, err := s.users.GetUserInfo(ctx, userID.String(), "")
	if err != nil {
		s.logger.Warn("User lookup failed during eligibility check, skipping role bypass",
			zap.String("userId", userID.String()), zap.Error(err))
	} else if info.IsStaff() {
		return EligibilityResult{Eligible: true, Reason: "staff role " + info.Role}
	}

	// 2. Active subscription required
	now := time.Now().UTC()
	sub, err := s.subscriptions.LatestActive(ctx, userID, now)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Subscription lookup failed, denying eligibility",
				zap.String("userId", userID.String()), zap.Error(err))
			return EligibilityResult{Eligible: false, Reason: "subscription lookup failed"}
		}
		return EligibilityResult{Eligible: false, Reason: "no active subscription"}
	}

	// 3. Paid tiers are unlimited
	plan := strings.ToLower(sub.PlanName)
	for _, tier := range paidTiers {
		if strings.Contains(plan, tier) {
			return EligibilityResult{Eligible: true, Reason: "paid plan " + sub.PlanName}
		}
	}

	// 4. Free/trial tier: compare today's usage against the budget
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	used, err := s.calls.CompletedSecondsSince(ctx, userID, startOfDay)
	if err != nil {
		s.logger.Warn("Usage aggregation failed, denying eligibility",
			zap.String("userId", userID.String()), zap.Error(err))
		return EligibilityResult{Eligible: false, Reason: "usage lookup failed"}
	}

	if used < int64(s.budgetSeconds) {
		return EligibilityResult{Eligible: true, Reason: "within trial budget"}
	}
	return EligibilityResult{Eligible: false, Reason: "trial budget exhausted"}
}
