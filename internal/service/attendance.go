// Package service implements the session lifecycle and attendance state
// machine, and the statistics derived from attendance records.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/auth"
	"github.com/iliyamo/firestation-attendance/internal/metrics"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/queue"
	"github.com/iliyamo/firestation-attendance/internal/repository"
)

// DefaultAutoEndAfter is how long a non-Einsatz session stays open before
// the sweep closes it.
const DefaultAutoEndAfter = 3 * time.Hour

// TokenValidator resolves a kiosk QR token to a session id.
type TokenValidator interface {
	Validate(token string) (sessionID uint64, ok bool)
}

// EventPublisher receives committed transitions.  Publishing is best
// effort; a failure is logged and never undoes the transition.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, ev queue.SessionEvent) error
}

// Policy holds the tunable rules of the state machine.
type Policy struct {
	AutoEndAfter      time.Duration
	MinRankEndEinsatz int
	// KioskAllowEinsatz lets unauthenticated callers open Einsatz sessions.
	KioskAllowEinsatz bool
}

// DefaultPolicy returns the station's standard rules.
func DefaultPolicy() Policy {
	return Policy{
		AutoEndAfter:      DefaultAutoEndAfter,
		MinRankEndEinsatz: model.MinRankEndEinsatz,
		KioskAllowEinsatz: true,
	}
}

// AttendanceService runs every session and attendance transition inside a
// single store transaction.
type AttendanceService struct {
	store  Store
	tokens TokenValidator
	events EventPublisher
	logger *zap.Logger
	policy Policy
	now    func() time.Time
}

// Option customises an AttendanceService.
type Option func(*AttendanceService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *AttendanceService) { s.now = now }
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(s *AttendanceService) { s.policy = p }
}

// WithEvents publishes committed transitions to p.
func WithEvents(p EventPublisher) Option {
	return func(s *AttendanceService) { s.events = p }
}

// NewAttendanceService wires the state machine.
func NewAttendanceService(store Store, tokens TokenValidator, logger *zap.Logger, opts ...Option) *AttendanceService {
	s := &AttendanceService{
		store:  store,
		tokens: tokens,
		logger: logger,
		policy: DefaultPolicy(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.AutoEndAfter <= 0 {
		s.policy.AutoEndAfter = DefaultAutoEndAfter
	}
	if s.policy.MinRankEndEinsatz <= 0 {
		s.policy.MinRankEndEinsatz = model.MinRankEndEinsatz
	}
	return s
}

// CheckInResult is returned by CheckIn.
type CheckInResult struct {
	Attendance model.Attendance
	Personnel  model.Personnel
	RankName   string
}

// CheckOutResult is returned by CheckOut.
type CheckOutResult struct {
	Attendance model.Attendance
	Personnel  model.Personnel
}

// CloseResult describes a closed session.
type CloseResult struct {
	SessionID  uint64
	EventType  string
	EndedAt    time.Time
	CheckedOut int64
}

// CreateSession opens a session of eventType.  With a nil actor the call
// comes from the kiosk and created_by stays empty; otherwise the actor needs
// sessions:create.
func (s *AttendanceService) CreateSession(ctx context.Context, eventType string, actor *auth.Identity) (model.Session, error) {
	if !model.ValidEventType(eventType) {
		return model.Session{}, ErrInvalidEventType
	}
	var createdBy *uint64
	if actor != nil {
		if err := auth.RequirePermission(*actor, "sessions:create"); err != nil {
			return model.Session{}, ErrForbidden
		}
		id := actor.UserID
		createdBy = &id
	} else if eventType == model.EventEinsatz && !s.policy.KioskAllowEinsatz {
		return model.Session{}, ErrForbidden
	}

	sess := model.Session{
		EventType: eventType,
		StartedAt: s.now(),
		IsActive:  true,
		CreatedBy: createdBy,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertSession(ctx, &sess)
	})
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}

	metrics.SessionOpened(eventType)
	s.logger.Info("session opened",
		zap.Uint64("session_id", sess.ID),
		zap.String("event_type", eventType),
		zap.Bool("kiosk", actor == nil),
	)
	s.publish(ctx, queue.SessionEvent{
		Type:      queue.EventSessionOpened,
		SessionID: sess.ID,
		EventType: eventType,
		At:        sess.StartedAt,
	})
	return sess, nil
}

// CheckIn records that the active member with roll number roll arrived at
// an open session.
func (s *AttendanceService) CheckIn(ctx context.Context, sessionID uint64, roll string) (CheckInResult, error) {
	var res CheckInResult
	var sess model.Session
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		sess, err = lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !sess.Open() {
			return ErrSessionNotActive
		}
		p, err := findPersonnel(ctx, tx, roll, true)
		if err != nil {
			return err
		}
		if _, err := tx.GetOpenAttendanceForUpdate(ctx, sessionID, p.ID); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		a := model.Attendance{
			SessionID:   sessionID,
			PersonnelID: p.ID,
			CheckedInAt: s.now(),
		}
		if err := tx.InsertAttendance(ctx, &a); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyCheckedIn
			}
			return err
		}
		res = CheckInResult{Attendance: a, Personnel: p, RankName: model.RankName(p.Dienstgrad)}
		return nil
	})
	if err != nil {
		return CheckInResult{}, s.wrap("check in", err)
	}

	metrics.CheckedIn()
	s.logger.Info("checked in",
		zap.Uint64("session_id", sessionID),
		zap.Uint64("personnel_id", res.Personnel.ID),
	)
	s.publish(ctx, queue.SessionEvent{
		Type:              queue.EventCheckedIn,
		SessionID:         sessionID,
		EventType:         sess.EventType,
		PersonnelID:       res.Personnel.ID,
		Stammrollennummer: res.Personnel.Stammrollennummer,
		Name:              res.Personnel.FullName(),
		At:                res.Attendance.CheckedInAt,
	})
	return res, nil
}

// CheckOut closes the member's open attendance in a session.  Inactive
// members can still check out.
func (s *AttendanceService) CheckOut(ctx context.Context, sessionID uint64, roll string) (CheckOutResult, error) {
	var res CheckOutResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		p, err := findPersonnel(ctx, tx, roll, false)
		if err != nil {
			return err
		}
		a, err := tx.GetOpenAttendanceForUpdate(ctx, sessionID, p.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNoActiveCheckIn
			}
			return err
		}
		now := s.now()
		if err := tx.SetCheckedOut(ctx, a.ID, now); err != nil {
			return err
		}
		a.CheckedOutAt = &now
		res = CheckOutResult{Attendance: a, Personnel: p}
		return nil
	})
	if err != nil {
		return CheckOutResult{}, s.wrap("check out", err)
	}

	metrics.CheckedOut()
	s.logger.Info("checked out",
		zap.Uint64("session_id", sessionID),
		zap.Uint64("personnel_id", res.Personnel.ID),
	)
	s.publish(ctx, queue.SessionEvent{
		Type:              queue.EventCheckedOut,
		SessionID:         sessionID,
		PersonnelID:       res.Personnel.ID,
		Stammrollennummer: res.Personnel.Stammrollennummer,
		Name:              res.Personnel.FullName(),
		At:                *res.Attendance.CheckedOutAt,
	})
	return res, nil
}

// EndSession is the staff close path; actor needs sessions:end.
func (s *AttendanceService) EndSession(ctx context.Context, sessionID uint64, actor *auth.Identity) (CloseResult, error) {
	if actor == nil || auth.RequirePermission(*actor, "sessions:end") != nil {
		return CloseResult{}, ErrForbidden
	}
	var res CloseResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		sess, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		res, err = s.closeLocked(ctx, tx, sess, s.now())
		return err
	})
	if err != nil {
		return CloseResult{}, s.wrap("end session", err)
	}
	s.closed(ctx, res, queue.CloseManual)
	return res, nil
}

// EndSessionWithRank is the kiosk close path.  An Einsatz may only be ended
// by an active member of rank level MinRankEndEinsatz or higher; any other
// session type closes without a rank check.
func (s *AttendanceService) EndSessionWithRank(ctx context.Context, sessionID uint64, roll string) (CloseResult, error) {
	var res CloseResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		sess, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !sess.Open() {
			return ErrSessionAlreadyEnded
		}
		if sess.EventType == model.EventEinsatz {
			p, err := findPersonnel(ctx, tx, roll, true)
			if err != nil {
				return err
			}
			if _, level := model.RankInfo(p.Dienstgrad); level < s.policy.MinRankEndEinsatz {
				return ErrInsufficientRank
			}
		}
		res, err = s.closeLocked(ctx, tx, sess, s.now())
		return err
	})
	if err != nil {
		return CloseResult{}, s.wrap("end session with rank", err)
	}
	s.closed(ctx, res, queue.CloseRank)
	return res, nil
}

// AutoEndSweep closes every open session other than Einsatz that started
// at least AutoEndAfter before now, checking out everyone still present at
// now.  Each session closes in its own transaction; a failure is logged and
// the sweep moves on.  It returns the ids closed by this run.
func (s *AttendanceService) AutoEndSweep(ctx context.Context, now time.Time) ([]uint64, error) {
	cutoff := now.Add(-s.policy.AutoEndAfter)
	ids, err := s.store.AutoEndCandidates(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list auto-end candidates: %w", err)
	}

	closed := make([]uint64, 0, len(ids))
	for _, id := range ids {
		var res CloseResult
		err := s.store.WithTx(ctx, func(tx Tx) error {
			sess, err := lockSession(ctx, tx, id)
			if err != nil {
				return err
			}
			if sess.EventType == model.EventEinsatz || sess.StartedAt.After(cutoff) {
				return errNotEligible
			}
			res, err = s.closeLocked(ctx, tx, sess, now)
			return err
		})
		switch {
		case err == nil:
			closed = append(closed, id)
			s.closed(ctx, res, queue.CloseAuto)
		case errors.Is(err, errNotEligible), errors.Is(err, ErrSessionAlreadyEnded), errors.Is(err, ErrSessionNotFound):
			// closed or removed since the candidate query
		default:
			metrics.SweepFailure()
			s.logger.Error("auto-end failed", zap.Uint64("session_id", id), zap.Error(err))
		}
	}
	return closed, nil
}

var errNotEligible = errors.New("session not eligible for auto-end")

// ValidateQrCheckin returns the session id a kiosk token points at, provided
// the session still exists and is open.  Every rejection is ErrInvalidToken.
func (s *AttendanceService) ValidateQrCheckin(ctx context.Context, token string) (uint64, error) {
	id, ok := s.tokens.Validate(token)
	if !ok {
		metrics.QRValidation(false)
		return 0, ErrInvalidToken
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.QRValidation(false)
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("validate qr token: %w", err)
	}
	if !sess.Open() {
		metrics.QRValidation(false)
		return 0, ErrInvalidToken
	}
	metrics.QRValidation(true)
	return id, nil
}

// closeLocked is the single close primitive.  sess must have been loaded
// with GetSessionForUpdate in tx.
func (s *AttendanceService) closeLocked(ctx context.Context, tx Tx, sess model.Session, now time.Time) (CloseResult, error) {
	if !sess.Open() {
		return CloseResult{}, ErrSessionAlreadyEnded
	}
	if err := tx.CloseSession(ctx, sess.ID, now); err != nil {
		return CloseResult{}, err
	}
	n, err := tx.CheckOutOpenAttendances(ctx, sess.ID, now)
	if err != nil {
		return CloseResult{}, err
	}
	return CloseResult{SessionID: sess.ID, EventType: sess.EventType, EndedAt: now, CheckedOut: n}, nil
}

func (s *AttendanceService) closed(ctx context.Context, res CloseResult, reason string) {
	metrics.SessionClosed(reason, res.CheckedOut)
	s.logger.Info("session closed",
		zap.Uint64("session_id", res.SessionID),
		zap.String("event_type", res.EventType),
		zap.String("reason", reason),
		zap.Int64("checked_out", res.CheckedOut),
	)
	s.publish(ctx, queue.SessionEvent{
		Type:       queue.EventSessionClosed,
		SessionID:  res.SessionID,
		EventType:  res.EventType,
		Reason:     reason,
		CheckedOut: res.CheckedOut,
		At:         res.EndedAt,
	})
}

func (s *AttendanceService) publish(ctx context.Context, ev queue.SessionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSessionEvent(ctx, ev); err != nil {
		s.logger.Warn("publish session event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// wrap passes domain errors through and annotates storage errors.
func (s *AttendanceService) wrap(op string, err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func lockSession(ctx context.Context, tx Tx, id uint64) (model.Session, error) {
	sess, err := tx.GetSessionForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Session{}, ErrSessionNotFound
	}
	return sess, err
}

func findPersonnel(ctx context.Context, tx Tx, roll string, activeOnly bool) (model.Personnel, error) {
	p, err := tx.GetPersonnelByRoll(ctx, roll, activeOnly)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Personnel{}, ErrPersonnelNotFound
	}
	return p, err
}
