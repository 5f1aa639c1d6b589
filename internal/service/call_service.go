package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"call-service/internal/client"
	"call-service/internal/config"
	"call-service/internal/middleware"
	"call-service/internal/model"
	"call-service/internal/repository"
	"call-service/internal/ws"
)

// Candidate is one user a caller may be matched with.
type Candidate struct {
	UserID    string `json:"userId"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// CallService drives the invitation state machine:
//
//	INITIATED -> ACCEPTED -> COMPLETED
//	INITIATED -> REJECTED
//	INITIATED -> MISSED   (invitation timeout)
//	INITIATED -> COMPLETED (caller hangs up before an answer)
//
// Transitions race against each other (two responders, responder vs
// timer), so every state change goes through a compare-and-swap in the
// repository; the first writer wins and later writers observe the
// already-transitioned record.
type CallService struct {
	calls        repository.CallRepository
	availability repository.AvailabilityRepository
	users        client.UserClient
	media        client.MediaClient
	eligibility  *EligibilityService
	gateway      Gateway
	cfg          config.CallConfig
	logger       *zap.Logger

	// Per-call invitation expiry timers, cancelled on respond/end.
	timersMu sync.Mutex
	timers   map[uuid.UUID]*time.Timer
}

func NewCallService(
	calls repository.CallRepository,
	availability repository.AvailabilityRepository,
	users client.UserClient,
	media client.MediaClient,
	eligibility *EligibilityService,
	gateway Gateway,
	cfg config.CallConfig,
	logger *zap.Logger,
) *CallService {
	return &CallService{
		calls:        calls,
		availability: availability,
		users:        users,
		media:        media,
		eligibility:  eligibility,
		gateway:      gateway,
		cfg:          cfg,
		logger:       logger,
		timers:       make(map[uuid.UUID]*time.Timer),
	}
}

// SetAvailability flips the caller's "open to calls" flag. The flag
// doubles as a heartbeat: candidates whose flag is older than the
// availability window are excluded from matching.
func (s *CallService) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) error {
	return s.availability.Upsert(ctx, userID, available)
}

// Candidates lists users the caller could be matched with right now:
// flagged available within the window, online, not the caller, not
// staff, and call-eligible.
func (s *CallService) Candidates(ctx context.Context, callerID uuid.UUID, token string) ([]Candidate, error) {
	rows, err := s.availability.FindAvailableSince(ctx, time.Now().UTC().Add(-s.cfg.AvailabilityWindow))
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		info, ok := s.qualify(ctx, callerID, row.UserID, token)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			UserID:    row.UserID.String(),
			FullName:  info.FullName,
			AvatarURL: info.AvatarURL,
		})
	}
	return candidates, nil
}

// qualify applies the per-candidate matching filters and returns the
// candidate's display info when they pass.
func (s *CallService) qualify(ctx context.Context, callerID, candidateID uuid.UUID, token string) (*client.UserInfo, bool) {
	if candidateID == callerID {
		return nil, false
	}
	if !s.gateway.IsOnline(candidateID) {
		return nil, false
	}

	info, err := s.users.GetUserInfo(ctx, candidateID.String(), token)
	if err != nil {
		s.logger.Warn("Candidate lookup failed, skipping",
			zap.String("userId", candidateID.String()), zap.Error(err))
		return nil, false
	}
	if info.IsStaff() {
		return nil, false
	}
	if !s.eligibility.IsEligible(ctx, candidateID) {
		return nil, false
	}
	return info, true
}

// Initiate creates a direct call to a known callee and pushes the
// invitation to their live connections.
func (s *CallService) Initiate(ctx context.Context, callerID, calleeID uuid.UUID, topicID *uuid.UUID, token string) (*model.Call, *client.UserInfo, error) {
	if callerID == calleeID {
		return nil, nil, ErrSelfCall
	}

	calleeInfo, err := s.users.GetUserInfo(ctx, calleeID.String(), token)
	if err != nil {
		return nil, nil, ErrUserNotFound
	}

	call, err := s.createAndInvite(ctx, callerID, calleeID, topicID, token, "direct")
	if err != nil {
		return nil, nil, err
	}
	return call, calleeInfo, nil
}

// InitiateRandom matches the caller with a random qualifying candidate.
// The pool is shuffled and candidates are evaluated one by one until
// the first passes, so a single slow or ineligible user never blocks
// matching.
func (s *CallService) InitiateRandom(ctx context.Context, callerID uuid.UUID, topicID *uuid.UUID, token string) (*model.Call, *client.UserInfo, error) {
	rows, err := s.availability.FindAvailableSince(ctx, time.Now().UTC().Add(-s.cfg.AvailabilityWindow))
	if err != nil {
		return nil, nil, err
	}

	rand.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})

	for _, row := range rows {
		info, ok := s.qualify(ctx, callerID, row.UserID, token)
		if !ok {
			continue
		}

		call, err := s.createAndInvite(ctx, callerID, row.UserID, topicID, token, "random")
		if err != nil {
			return nil, nil, err
		}
		return call, info, nil
	}
	return nil, nil, ErrNoCandidate
}

func (s *CallService) createAndInvite(ctx context.Context, callerID, calleeID uuid.UUID, topicID *uuid.UUID, token, kind string) (*model.Call, error) {
	call := &model.Call{
		CallerID: callerID,
		CalleeID: calleeID,
		TopicID:  topicID,
		Status:   model.CallInitiated,
	}
	if err := s.calls.Create(ctx, call); err != nil {
		return nil, err
	}

	payload := ws.CallInvitationPayload{
		CallID:           call.CallID.String(),
		CallerID:         callerID.String(),
		ExpiresInSeconds: int(s.cfg.InviteTimeout.Seconds()),
	}
	if topicID != nil {
		payload.TopicID = topicID.String()
	}
	if callerInfo, err := s.users.GetUserInfo(ctx, callerID.String(), token); err == nil {
		payload.CallerName = callerInfo.FullName
		payload.CallerAvatar = callerInfo.AvatarURL
	} else {
		s.logger.Warn("Caller lookup failed, sending invitation without display info",
			zap.String("callerId", callerID.String()), zap.Error(err))
	}

	reached := s.gateway.SendToUser(calleeID, ws.NewEvent(ws.EventCallInvitation, payload))
	s.scheduleExpiry(call.CallID)
	middleware.RecordCallInitiated(kind)

	s.logger.Info("Call initiated",
		zap.String("callId", call.CallID.String()),
		zap.String("callerId", callerID.String()),
		zap.String("calleeId", calleeID.String()),
		zap.String("kind", kind),
		zap.Bool("calleeReached", reached))
	return call, nil
}

// Respond handles the callee's accept/reject. Only the stored callee
// may respond; anyone else gets ErrCallNotFound. A second respond on an
// already-transitioned call is a no-op that returns the current record.
func (s *CallService) Respond(ctx context.Context, responderID, callID uuid.UUID, accept bool) (*model.Call, error) {
	call, err := s.getForParticipant(ctx, callID, responderID)
	if err != nil {
		return nil, err
	}
	if call.CalleeID != responderID {
		return nil, ErrCallNotFound
	}

	if accept {
		now := time.Now().UTC()
		won, err := s.calls.TransitionFromInitiated(ctx, callID, model.CallAccepted, &now)
		if err != nil {
			return nil, err
		}
		if !won {
			return s.calls.GetByID(ctx, callID)
		}

		s.cancelExpiry(callID)
		middleware.RecordCallAccepted()

		if err := s.media.CreateRoom(ctx, callID.String()); err != nil {
			// The parties can still renegotiate; token issuance will retry
			// room creation provider-side on join.
			s.logger.Warn("Failed to create media room",
				zap.String("callId", callID.String()), zap.Error(err))
		}

		s.gateway.SendToUser(call.CallerID, ws.NewEvent(ws.EventCallAccepted, ws.CallStatusPayload{
			CallID: callID.String(),
		}))
	} else {
		won, err := s.calls.TransitionFromInitiated(ctx, callID, model.CallRejected, nil)
		if err != nil {
			return nil, err
		}
		if !won {
			return s.calls.GetByID(ctx, callID)
		}

		s.cancelExpiry(callID)
		middleware.RecordCallResolved(string(model.CallRejected), false)

		s.gateway.SendToUser(call.CallerID, ws.NewEvent(ws.EventCallRejected, ws.CallStatusPayload{
			CallID: callID.String(),
		}))
	}

	s.logger.Info("Call responded",
		zap.String("callId", callID.String()),
		zap.String("responderId", responderID.String()),
		zap.Bool("accepted", accept))
	return s.calls.GetByID(ctx, callID)
}

// End finishes a call from either participant. The repository derives
// duration from the stored acceptance time while completing, so an
// accept racing the hangup still yields the elapsed seconds; zero when
// the call never connected.
func (s *CallService) End(ctx context.Context, requesterID, callID uuid.UUID, reason string) (*model.Call, error) {
	call, err := s.getForParticipant(ctx, callID, requesterID)
	if err != nil {
		return nil, err
	}

	won, err := s.calls.Complete(ctx, callID, time.Now().UTC(), reason)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrCallNotActive
	}

	s.cancelExpiry(callID)

	final, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	middleware.RecordCallResolved(string(model.CallCompleted), final.StartedAt != nil)

	s.gateway.SendToUser(call.OtherParty(requesterID), ws.NewEvent(ws.EventCallEnded, ws.CallStatusPayload{
		CallID: callID.String(),
		Reason: reason,
	}))
	s.media.DeleteRoom(ctx, callID.String())

	s.logger.Info("Call ended",
		zap.String("callId", callID.String()),
		zap.String("requesterId", requesterID.String()),
		zap.Int("durationSeconds", final.DurationSeconds),
		zap.String("reason", reason))
	return final, nil
}

// Rate stores a 1..5 rating from a participant. Does not touch the
// state machine.
func (s *CallService) Rate(ctx context.Context, raterID, callID uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	if _, err := s.getForParticipant(ctx, callID, raterID); err != nil {
		return err
	}
	return s.calls.SetRating(ctx, callID, rating, raterID)
}

// History returns the user's calls, newest first.
func (s *CallService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Call, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.calls.History(ctx, userID, limit, offset)
}

// MediaToken issues a short-lived credential for the call's media room.
// Only participants of an ACCEPTED call may join.
func (s *CallService) MediaToken(ctx context.Context, userID, callID uuid.UUID, token string) (string, string, error) {
	call, err := s.getForParticipant(ctx, callID, userID)
	if err != nil {
		return "", "", err
	}
	if call.Status != model.CallAccepted {
		return "", "", ErrCallNotActive
	}

	displayName := ""
	if info, err := s.users.GetUserInfo(ctx, userID.String(), token); err == nil {
		displayName = info.FullName
	}

	joinToken, err := s.media.JoinToken(callID.String(), userID.String(), displayName)
	if err != nil {
		return "", "", err
	}
	return joinToken, s.media.WSUrl(), nil
}

// ExpireStaleInvitations is the sweep backstop behind the per-call
// timers: it catches invitations whose timer was lost to a restart.
// Returns how many calls were expired.
func (s *CallService) ExpireStaleInvitations(ctx context.Context) (int, error) {
	stale, err := s.calls.FindStaleInitiated(ctx, time.Now().UTC().Add(-s.cfg.InviteTimeout))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, call := range stale {
		if s.expire(ctx, call.CallID) {
			expired++
		}
	}
	return expired, nil
}

// StopTimers cancels all pending invitation timers. The sweep picks the
// calls up after restart.
func (s *CallService) StopTimers() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for callID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, callID)
	}
}

func (s *CallService) scheduleExpiry(callID uuid.UUID) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	s.timers[callID] = time.AfterFunc(s.cfg.InviteTimeout, func() {
		s.onExpiryTimer(callID)
	})
}

func (s *CallService) cancelExpiry(callID uuid.UUID) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[callID]; ok {
		timer.Stop()
		delete(s.timers, callID)
	}
}

func (s *CallService) onExpiryTimer(callID uuid.UUID) {
	s.timersMu.Lock()
	delete(s.timers, callID)
	s.timersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.expire(ctx, callID)
}

// expire moves an unanswered invitation to MISSED and tells the caller.
// Loses the CAS silently when the callee answered in the meantime.
func (s *CallService) expire(ctx context.Context, callID uuid.UUID) bool {
	won, err := s.calls.TransitionFromInitiated(ctx, callID, model.CallMissed, nil)
	if err != nil {
		s.logger.Error("Failed to expire invitation",
			zap.String("callId", callID.String()), zap.Error(err))
		return false
	}
	if !won {
		return false
	}

	middleware.RecordCallResolved(string(model.CallMissed), false)

	call, err := s.calls.GetByID(ctx, callID)
	if err == nil {
		s.gateway.SendToUser(call.CallerID, ws.NewEvent(ws.EventCallMissed, ws.CallStatusPayload{
			CallID: callID.String(),
			Reason: "no response",
		}))
	}

	s.logger.Info("Invitation expired", zap.String("callId", callID.String()))
	return true
}

// getForParticipant loads a call and verifies membership. Non-existent
// and not-a-participant collapse to the same error so callers cannot
// probe for call ids.
func (s *CallService) getForParticipant(ctx context.Context, callID, userID uuid.UUID) (*model.Call, error) {
	call, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	if !call.IsParticipant(userID) {
		return nil, ErrCallNotFound
	}
	return call, nil
}
