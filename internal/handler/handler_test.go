package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/auth"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/service"
	"github.com/iliyamo/firestation-attendance/internal/utils"
)

const testSecret = "handler-test-secret"

var t0 = time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// call sends one JSON request and decodes the JSON response into a map.
func call(t *testing.T, e *echo.Echo, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, 3, "wf", role, nil, 5)
	require.NoError(t, err)
	return tok.Token
}

// fakeOps records the last call and returns canned results.
type fakeOps struct {
	err      error
	actor    *auth.Identity
	roll     string
	session  uint64
	checkIn  service.CheckInResult
	checkOut service.CheckOutResult
	closed   service.CloseResult
	tokenID  uint64
}

func (f *fakeOps) CreateSession(_ context.Context, eventType string, actor *auth.Identity) (model.Session, error) {
	f.actor = actor
	if f.err != nil {
		return model.Session{}, f.err
	}
	return model.Session{ID: 11, EventType: eventType, StartedAt: t0, IsActive: true}, nil
}

func (f *fakeOps) CheckIn(_ context.Context, sessionID uint64, roll string) (service.CheckInResult, error) {
	f.session, f.roll = sessionID, roll
	return f.checkIn, f.err
}

func (f *fakeOps) CheckOut(_ context.Context, sessionID uint64, roll string) (service.CheckOutResult, error) {
	f.session, f.roll = sessionID, roll
	return f.checkOut, f.err
}

func (f *fakeOps) EndSession(_ context.Context, sessionID uint64, actor *auth.Identity) (service.CloseResult, error) {
	f.session, f.actor = sessionID, actor
	return f.closed, f.err
}

func (f *fakeOps) EndSessionWithRank(_ context.Context, sessionID uint64, roll string) (service.CloseResult, error) {
	f.session, f.roll = sessionID, roll
	return f.closed, f.err
}

func (f *fakeOps) ValidateQrCheckin(_ context.Context, _ string) (uint64, error) {
	return f.tokenID, f.err
}

type fakeSessions struct {
	byID      map[uint64]model.Session
	skip      int
	limit     int
	listError error
}

func (f *fakeSessions) GetByID(_ context.Context, id uint64) (model.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) List(_ context.Context, _ bool, skip, limit int) ([]model.SessionSummary, int, error) {
	f.skip, f.limit = skip, limit
	if f.listError != nil {
		return nil, 0, f.listError
	}
	var out []model.SessionSummary
	for _, s := range f.byID {
		out = append(out, model.SessionSummary{Session: s})
	}
	return out, len(out), nil
}

func (f *fakeSessions) ListActive(_ context.Context) ([]model.Session, error) {
	var out []model.Session
	for _, s := range f.byID {
		if s.Open() {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeAttendees struct {
	bySession map[uint64][]model.Attendee
}

func (f *fakeAttendees) ListBySession(_ context.Context, sessionID uint64, activeOnly bool) ([]model.Attendee, error) {
	var out []model.Attendee
	for _, a := range f.bySession[sessionID] {
		if activeOnly && a.CheckedOutAt != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func attendanceServer(ops *fakeOps) *echo.Echo {
	e := newEcho()
	h := &AttendanceHandler{
		Ops: ops,
		Attendees: &fakeAttendees{bySession: map[uint64][]model.Attendee{
			5: {{AttendanceID: 1, PersonnelID: 2, Vorname: "Ada", CheckedInAt: t0}},
		}},
		Logger: zap.NewNop(),
	}
	e.POST("/api/attendance/checkin", h.CheckIn)
	e.POST("/api/attendance/checkout", h.CheckOut)
	e.GET("/api/attendance/session/:id/active", h.Active)
	e.POST("/api/attendance/validate-token", h.ValidateToken)
	return e
}

func TestCheckInHandler(t *testing.T) {
	ops := &fakeOps{checkIn: service.CheckInResult{
		Attendance: model.Attendance{ID: 42, SessionID: 5, PersonnelID: 2, CheckedInAt: t0},
		Personnel:  model.Personnel{ID: 2, Vorname: "Ada", Nachname: "Lang", Dienstgrad: "UBM"},
		RankName:   "Unterbrandmeister",
	}}
	e := attendanceServer(ops)

	code, body := call(t, e, http.MethodPost, "/api/attendance/checkin", `{"session_id":5,"stammrollennummer":"1001"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 42, body["attendance_id"])
	assert.Equal(t, "checked in", body["message"])
	personnel := body["personnel"].(map[string]any)
	assert.Equal(t, "Unterbrandmeister", personnel["dienstgrad"])
	assert.Equal(t, uint64(5), ops.session)
	assert.Equal(t, "1001", ops.roll)
}

func TestCheckInHandler_InvalidBody(t *testing.T) {
	e := attendanceServer(&fakeOps{})

	code, body := call(t, e, http.MethodPost, "/api/attendance/checkin", `{"stammrollennummer":"1001"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "session_id")

	code, _ = call(t, e, http.MethodPost, "/api/attendance/checkin", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{service.ErrPersonnelNotFound, http.StatusNotFound, "personnel_not_found"},
		{service.ErrSessionNotActive, http.StatusBadRequest, "session_not_active"},
		{service.ErrAlreadyCheckedIn, http.StatusBadRequest, "already_checked_in"},
		{service.ErrNoActiveCheckIn, http.StatusBadRequest, "no_active_checkin"},
		{service.ErrInvalidEventType, http.StatusBadRequest, "invalid_event_type"},
		{service.ErrInsufficientRank, http.StatusForbidden, "insufficient_rank"},
		{service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{service.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
		{errors.New("connection refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		e := attendanceServer(&fakeOps{err: tc.err})
		code, body := call(t, e, http.MethodPost, "/api/attendance/checkout", `{"session_id":5,"stammrollennummer":"1001"}`, "")
		assert.Equal(t, tc.status, code, tc.code)
		assert.Equal(t, tc.code, body["code"])
	}

	e := attendanceServer(&fakeOps{err: errors.New("dial tcp 10.0.0.1:3306: refused")})
	_, body := call(t, e, http.MethodPost, "/api/attendance/checkin", `{"session_id":5,"stammrollennummer":"1001"}`, "")
	assert.Equal(t, "internal error", body["error"], "storage details stay out of the response")
}

func TestActiveAttendeesHandler(t *testing.T) {
	e := attendanceServer(&fakeOps{})

	req := httptest.NewRequest(http.MethodGet, "/api/attendance/session/5/active", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var atts []model.Attendee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &atts))
	require.Len(t, atts, 1)
	assert.Equal(t, "Ada", atts[0].Vorname)

	code, _ := call(t, e, http.MethodGet, "/api/attendance/session/abc/active", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValidateTokenHandler(t *testing.T) {
	e := attendanceServer(&fakeOps{tokenID: 5})
	code, body := call(t, e, http.MethodPost, "/api/attendance/validate-token", `{"token":"abc"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["valid"])
	assert.EqualValues(t, 5, body["session_id"])

	e = attendanceServer(&fakeOps{err: service.ErrInvalidToken})
	code, body = call(t, e, http.MethodPost, "/api/attendance/validate-token", `{"token":"abc"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid or expired QR code", body["error"])
}

func sessionServer(ops *fakeOps, sessions *fakeSessions) (*echo.Echo, *utils.QRTokens) {
	e := newEcho()
	qr := utils.NewQRTokens(testSecret, func() time.Time { return t0 })
	h := &SessionHandler{
		Ops:      ops,
		Sessions: sessions,
		Attendees: &fakeAttendees{bySession: map[uint64][]model.Attendee{
			1: {
				{AttendanceID: 1, PersonnelID: 2, CheckedInAt: t0},
				{AttendanceID: 2, PersonnelID: 3, CheckedInAt: t0, CheckedOutAt: &t0},
			},
		}},
		Tokens:   qr,
		KioskURL: "https://kiosk.example",
		QRTTL:    time.Hour,
		Logger:   zap.NewNop(),
	}
	e.POST("/api/sessions", h.Create, middleware.OptionalAuth(testSecret))
	e.GET("/api/sessions", h.List)
	e.GET("/api/sessions/active/current", h.ActiveCurrent)
	e.GET("/api/sessions/:id", h.Get)
	e.GET("/api/sessions/:id/qr", h.QR)
	e.POST("/api/sessions/:id/end", h.End, middleware.JWTAuth(testSecret))
	e.POST("/api/sessions/:id/end-with-rank", h.EndWithRank)
	return e, qr
}

func TestCreateSessionHandler(t *testing.T) {
	ops := &fakeOps{}
	e, _ := sessionServer(ops, &fakeSessions{})

	code, body := call(t, e, http.MethodPost, "/api/sessions", `{"event_type":"Einsatz"}`, "")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Einsatz", body["event_type"])
	assert.Nil(t, ops.actor, "kiosk request carries no identity")

	code, _ = call(t, e, http.MethodPost, "/api/sessions", `{"event_type":"Einsatz"}`, bearer(t, auth.RoleWehrfuehrer))
	require.Equal(t, http.StatusCreated, code)
	require.NotNil(t, ops.actor)
	assert.Equal(t, auth.RoleWehrfuehrer, ops.actor.Role)

	code, _ = call(t, e, http.MethodPost, "/api/sessions", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEndSessionHandlers(t *testing.T) {
	ops := &fakeOps{closed: service.CloseResult{SessionID: 1, EventType: model.EventEinsatz, EndedAt: t0, CheckedOut: 3}}
	e, _ := sessionServer(ops, &fakeSessions{})

	code, body := call(t, e, http.MethodPost, "/api/sessions/1/end", "", bearer(t, auth.RoleGruppenfuehrer))
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["checked_out"])
	require.NotNil(t, ops.actor)
	assert.Equal(t, uint64(3), ops.actor.UserID)

	code, _ = call(t, e, http.MethodPost, "/api/sessions/1/end", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, e, http.MethodPost, "/api/sessions/1/end-with-rank", `{"stammrollennummer":"2002"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2002", ops.roll)

	ops.err = service.ErrInsufficientRank
	code, body = call(t, e, http.MethodPost, "/api/sessions/1/end-with-rank", `{"stammrollennummer":"2002"}`, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "insufficient_rank", body["code"])
}

func TestListSessionsHandler(t *testing.T) {
	sessions := &fakeSessions{byID: map[uint64]model.Session{1: {ID: 1, EventType: model.EventEinsatz, IsActive: true}}}
	e, _ := sessionServer(&fakeOps{}, sessions)

	code, body := call(t, e, http.MethodGet, "/api/sessions?limit=10000&skip=-4", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, defaultListLimit, sessions.limit)
	assert.Equal(t, 0, sessions.skip)

	call(t, e, http.MethodGet, "/api/sessions?limit=20&skip=40", "", "")
	assert.Equal(t, 20, sessions.limit)
	assert.Equal(t, 40, sessions.skip)
}

func TestGetSessionHandler(t *testing.T) {
	sessions := &fakeSessions{byID: map[uint64]model.Session{1: {ID: 1, EventType: model.EventEinsatz, IsActive: true}}}
	e, _ := sessionServer(&fakeOps{}, sessions)

	code, body := call(t, e, http.MethodGet, "/api/sessions/1", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["attendances"], 2)

	code, body = call(t, e, http.MethodGet, "/api/sessions/99", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "session_not_found", body["code"])
}

func TestActiveCurrentHandler(t *testing.T) {
	ended := t0.Add(time.Hour)
	sessions := &fakeSessions{byID: map[uint64]model.Session{
		1: {ID: 1, EventType: model.EventEinsatz, IsActive: true},
		2: {ID: 2, EventType: model.EventUebungsdienst, EndedAt: &ended},
	}}
	e, _ := sessionServer(&fakeOps{}, sessions)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/active/current", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []struct {
		ID        uint64           `json:"id"`
		Attendees []model.Attendee `json:"attendees"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].ID)
	assert.Len(t, out[0].Attendees, 1, "checked-out attendee is not listed")
}

func TestSessionQRHandler(t *testing.T) {
	ended := t0.Add(time.Hour)
	sessions := &fakeSessions{byID: map[uint64]model.Session{
		1: {ID: 1, EventType: model.EventEinsatz, IsActive: true},
		2: {ID: 2, EventType: model.EventEinsatz, EndedAt: &ended},
	}}
	e, qr := sessionServer(&fakeOps{}, sessions)

	code, body := call(t, e, http.MethodGet, "/api/sessions/1/qr", "", "")
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	id, ok := qr.Validate(token)
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)
	assert.True(t, strings.HasPrefix(body["url"].(string), "https://kiosk.example/checkin?token="))

	code, body = call(t, e, http.MethodGet, "/api/sessions/2/qr", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "session_not_active", body["code"])

	code, _ = call(t, e, http.MethodGet, "/api/sessions/404/qr", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}
