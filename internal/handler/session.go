package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/auth"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/service"
	"github.com/iliyamo/firestation-attendance/internal/utils"
)

// AttendanceOps is the state machine the session and attendance handlers
// drive; *service.AttendanceService implements it.
type AttendanceOps interface {
	CreateSession(ctx context.Context, eventType string, actor *auth.Identity) (model.Session, error)
	CheckIn(ctx context.Context, sessionID uint64, roll string) (service.CheckInResult, error)
	CheckOut(ctx context.Context, sessionID uint64, roll string) (service.CheckOutResult, error)
	EndSession(ctx context.Context, sessionID uint64, actor *auth.Identity) (service.CloseResult, error)
	EndSessionWithRank(ctx context.Context, sessionID uint64, roll string) (service.CloseResult, error)
	ValidateQrCheckin(ctx context.Context, token string) (uint64, error)
}

// SessionQueries are the read-only session lookups; *repository.SessionRepo
// implements it.
type SessionQueries interface {
	GetByID(ctx context.Context, id uint64) (model.Session, error)
	List(ctx context.Context, activeOnly bool, skip, limit int) ([]model.SessionSummary, int, error)
	ListActive(ctx context.Context) ([]model.Session, error)
}

// AttendeeQueries lists who attended a session; *repository.AttendanceRepo
// implements it.
type AttendeeQueries interface {
	ListBySession(ctx context.Context, sessionID uint64, activeOnly bool) ([]model.Attendee, error)
}

// SessionHandler serves /api/sessions.
type SessionHandler struct {
	Ops       AttendanceOps
	Sessions  SessionQueries
	Attendees AttendeeQueries
	Tokens    *utils.QRTokens
	KioskURL  string
	QRTTL     time.Duration
	Logger    *zap.Logger
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
	requestTimeout   = 5 * time.Second
)

type createSessionReq struct {
	EventType string `json:"event_type" validate:"required"`
}

type endWithRankReq struct {
	Stammrollennummer string `json:"stammrollennummer" validate:"required"`
}

type closeResp struct {
	Message    string    `json:"message"`
	SessionID  uint64    `json:"session_id"`
	EventType  string    `json:"event_type"`
	EndedAt    time.Time `json:"ended_at"`
	CheckedOut int64     `json:"checked_out"`
}

func newCloseResp(r service.CloseResult) closeResp {
	return closeResp{
		Message:    "session ended",
		SessionID:  r.SessionID,
		EventType:  r.EventType,
		EndedAt:    r.EndedAt,
		CheckedOut: r.CheckedOut,
	}
}

// Create opens a session.  Staff callers are recorded as creator; kiosk
// calls arrive without identity.
func (h *SessionHandler) Create(c echo.Context) error {
	var req createSessionReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Ops.CreateSession(ctx, req.EventType, middleware.IdentityFrom(c))
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// End closes a session on behalf of an authenticated staff member.
func (h *SessionHandler) End(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Ops.EndSession(ctx, id, middleware.IdentityFrom(c))
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, newCloseResp(res))
}

// EndWithRank is the kiosk close: the roll number entered must belong to a
// member senior enough to end an Einsatz.
func (h *SessionHandler) EndWithRank(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req endWithRankReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Ops.EndSessionWithRank(ctx, id, req.Stammrollennummer)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, newCloseResp(res))
}

// List returns sessions newest first.  Query: active_only, skip, limit.
func (h *SessionHandler) List(c echo.Context) error {
	activeOnly := queryBool(c, "active_only", false)
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", defaultListLimit)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, total, err := h.Sessions.List(ctx, activeOnly, skip, limit)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": total,
		"skip":  skip,
		"limit": limit,
	})
}

type sessionDetail struct {
	model.Session
	Attendances []model.Attendee `json:"attendances"`
}

// Get returns one session with every attendance recorded for it.
func (h *SessionHandler) Get(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrSessionNotFound))
	}
	atts, err := h.Attendees.ListBySession(ctx, id, false)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, sessionDetail{Session: s, Attendances: atts})
}

type activeSession struct {
	model.Session
	Attendees []model.Attendee `json:"attendees"`
}

// ActiveCurrent lists open sessions with the people currently checked in.
// The kiosk polls it to decide what to show.
func (h *SessionHandler) ActiveCurrent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sessions, err := h.Sessions.ListActive(ctx)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	out := make([]activeSession, 0, len(sessions))
	for _, s := range sessions {
		atts, err := h.Attendees.ListBySession(ctx, s.ID, true)
		if err != nil {
			return writeServiceError(c, h.Logger, err)
		}
		out = append(out, activeSession{Session: s, Attendees: atts})
	}
	return c.JSON(http.StatusOK, out)
}

// QR issues a check-in token for an open session and the kiosk URL to
// encode in the QR code.
func (h *SessionHandler) QR(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Logger, notFound(err, service.ErrSessionNotFound))
	}
	if !s.Open() {
		return writeServiceError(c, h.Logger, service.ErrSessionNotActive)
	}
	token, exp, err := h.Tokens.Issue(s.ID, h.QRTTL)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id": s.ID,
		"token":      token,
		"url":        utils.CheckinURL(h.KioskURL, token),
		"expires_at": exp,
	})
}

// notFound swaps repository.ErrNotFound for the domain error domainErr.
func notFound(err, domainErr error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domainErr
	}
	return err
}

// constraint swaps the repository's unique-key and foreign-key sentinels for
// the given domain errors.
func constraint(err, duplicate, reference error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return duplicate
	case errors.Is(err, repository.ErrReference):
		return reference
	}
	return err
}
