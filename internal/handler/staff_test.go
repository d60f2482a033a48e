package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/firestation-attendance/internal/auth"
	"github.com/iliyamo/firestation-attendance/internal/config"
	"github.com/iliyamo/firestation-attendance/internal/middleware"
	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/service"
	"github.com/iliyamo/firestation-attendance/internal/utils"
)

type fakeUsers struct {
	users   map[string]model.User
	touched []uint64
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id uint64, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeRefresh struct {
	live       map[string]uint64
	revokedAll []uint64
}

func (f *fakeRefresh) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	f.live[hash] = userID
	return nil
}

func (f *fakeRefresh) ValidateRefresh(_ context.Context, hash string, _ time.Time) (uint64, error) {
	id, ok := f.live[hash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (f *fakeRefresh) RevokeByHash(_ context.Context, hash string) error {
	delete(f.live, hash)
	return nil
}

func (f *fakeRefresh) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.revokedAll = append(f.revokedAll, userID)
	return nil
}

func authServer(t *testing.T) (*echo.Echo, *fakeUsers, *fakeRefresh) {
	t.Helper()
	hash, err := utils.HashPassword("geheim123", 4)
	require.NoError(t, err)
	pid := uint64(9)
	users := &fakeUsers{users: map[string]model.User{
		"wehrfuehrer": {ID: 3, Username: "wehrfuehrer", PasswordHash: hash, Role: auth.RoleWehrfuehrer, IsActive: true},
		"ada":         {ID: 4, Username: "ada", PasswordHash: hash, Role: auth.RoleMitglied, PersonnelID: &pid, IsActive: true},
		"retired":     {ID: 5, Username: "retired", PasswordHash: hash, Role: auth.RoleMitglied},
	}}
	tokens := &fakeRefresh{live: map[string]uint64{}}
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1}
	h := NewAuthHandler(cfg, users, tokens, zap.NewNop())

	e := newEcho()
	e.POST("/api/auth/login", h.Login)
	e.POST("/api/auth/refresh", h.Refresh)
	e.POST("/api/auth/logout", h.Logout, middleware.OptionalAuth(testSecret))
	e.GET("/api/auth/me", h.Me, middleware.JWTAuth(testSecret))
	return e, users, tokens
}

func login(t *testing.T, e *echo.Echo, username string) (string, string) {
	t.Helper()
	code, body := call(t, e, http.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"geheim123"}`, "")
	require.Equal(t, http.StatusOK, code)
	access := body["access"].(map[string]any)["token"].(string)
	refresh := body["refresh"].(map[string]any)["token"].(string)
	return access, refresh
}

func TestLogin(t *testing.T) {
	e, users, tokens := authServer(t)

	access, refresh := login(t, e, "ada")
	assert.NotEmpty(t, refresh)
	assert.Len(t, tokens.live, 1)
	assert.Equal(t, []uint64{4}, users.touched)

	claims, err := utils.ParseAccessToken(testSecret, access)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMitglied, claims.Role)
	require.NotNil(t, claims.PersonnelID)
	assert.Equal(t, uint64(9), *claims.PersonnelID)

	cases := map[string]string{
		"wrong password": `{"username":"ada","password":"nope"}`,
		"unknown user":   `{"username":"ghost","password":"geheim123"}`,
		"inactive":       `{"username":"retired","password":"geheim123"}`,
	}
	for name, body := range cases {
		code, resp := call(t, e, http.MethodPost, "/api/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, code, name)
		assert.Equal(t, "invalid credentials", resp["error"], name)
	}

	code, _ := call(t, e, http.MethodPost, "/api/auth/login", `{"username":"ada"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRefreshRotates(t *testing.T) {
	e, _, tokens := authServer(t)
	_, refresh := login(t, e, "wehrfuehrer")

	code, body := call(t, e, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+refresh+`"}`, "")
	require.Equal(t, http.StatusOK, code)
	next := body["refresh"].(map[string]any)["token"].(string)
	assert.NotEqual(t, refresh, next)
	assert.Len(t, tokens.live, 1, "old token revoked")

	code, _ = call(t, e, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code, "a rotated token cannot be reused")

	code, _ = call(t, e, http.MethodPost, "/api/auth/refresh", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLogout(t *testing.T) {
	e, _, tokens := authServer(t)
	access, refresh := login(t, e, "wehrfuehrer")

	code, _ := call(t, e, http.MethodPost, "/api/auth/logout", `{"refresh_token":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, tokens.live)

	code, _ = call(t, e, http.MethodPost, "/api/auth/logout", "", access)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, []uint64{3}, tokens.revokedAll)

	code, _ = call(t, e, http.MethodPost, "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMe(t *testing.T) {
	e, _, _ := authServer(t)
	access, _ := login(t, e, "ada")

	code, body := call(t, e, http.MethodGet, "/api/auth/me", "", access)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ada", body["username"])
	assert.EqualValues(t, 9, body["personnel_id"])
}

type fakePersonnel struct {
	rows   map[uint64]model.Personnel
	groups map[uint64]bool
	next   uint64
}

func (f *fakePersonnel) checkGroup(p model.Personnel) error {
	if p.GroupID != nil && !f.groups[*p.GroupID] {
		return repository.ErrReference
	}
	return nil
}

func (f *fakePersonnel) GetByID(_ context.Context, id uint64) (model.Personnel, error) {
	p, ok := f.rows[id]
	if !ok {
		return model.Personnel{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePersonnel) List(_ context.Context, activeOnly bool) ([]model.Personnel, error) {
	out := []model.Personnel{}
	for _, p := range f.rows {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePersonnel) Create(_ context.Context, p *model.Personnel) error {
	if err := f.checkGroup(*p); err != nil {
		return err
	}
	for _, other := range f.rows {
		if other.Stammrollennummer == p.Stammrollennummer {
			return repository.ErrDuplicate
		}
	}
	f.next++
	p.ID = f.next
	f.rows[p.ID] = *p
	return nil
}

func (f *fakePersonnel) Update(_ context.Context, p model.Personnel) error {
	if _, ok := f.rows[p.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := f.checkGroup(p); err != nil {
		return err
	}
	f.rows[p.ID] = p
	return nil
}

func (f *fakePersonnel) Deactivate(_ context.Context, id uint64) error {
	p, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.IsActive = false
	f.rows[id] = p
	return nil
}

func personnelServer() (*echo.Echo, *fakePersonnel) {
	store := &fakePersonnel{rows: map[uint64]model.Personnel{}}
	h := &PersonnelHandler{Personnel: store, Logger: zap.NewNop()}
	e := newEcho()
	e.GET("/api/personnel", h.List)
	e.GET("/api/personnel/:id", h.Get)
	e.POST("/api/personnel", h.Create)
	e.PUT("/api/personnel/:id", h.Update)
	e.DELETE("/api/personnel/:id", h.Delete)
	return e, store
}

func TestPersonnelCRUD(t *testing.T) {
	e, store := personnelServer()

	code, body := call(t, e, http.MethodPost, "/api/personnel",
		`{"stammrollennummer":" 1001 ","vorname":"Ada","nachname":"Lang","dienstgrad":"UBM"}`, "")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "1001", body["stammrollennummer"])
	assert.Equal(t, "Unterbrandmeister", body["dienstgrad_name"])
	assert.Equal(t, true, body["is_active"])

	code, body = call(t, e, http.MethodPost, "/api/personnel",
		`{"stammrollennummer":"1001","vorname":"Bob","nachname":"Kurz","dienstgrad":"FM"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "duplicate_stammrollennummer", body["code"])

	code, body = call(t, e, http.MethodPost, "/api/personnel",
		`{"stammrollennummer":"1002","vorname":"Bob","nachname":"Kurz","dienstgrad":"GENERAL"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown dienstgrad", body["error"])

	code, body = call(t, e, http.MethodPut, "/api/personnel/1",
		`{"stammrollennummer":"1001","vorname":"Ada","nachname":"Lang","dienstgrad":"BM"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BM", store.rows[1].Dienstgrad)
	assert.Equal(t, "Brandmeister", body["dienstgrad_name"])

	code, _ = call(t, e, http.MethodDelete, "/api/personnel/1", "", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.False(t, store.rows[1].IsActive, "deactivated, not removed")

	code, body = call(t, e, http.MethodDelete, "/api/personnel/77", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "personnel_not_found", body["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/personnel?active_only=true", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var list []personnelResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestPersonnelUnknownGroup(t *testing.T) {
	e, store := personnelServer()
	store.groups = map[uint64]bool{3: true}

	code, body := call(t, e, http.MethodPost, "/api/personnel",
		`{"stammrollennummer":"1001","vorname":"Ada","nachname":"Lang","dienstgrad":"FM","group_id":9}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown_group", body["code"])
	assert.Empty(t, store.rows)

	code, body = call(t, e, http.MethodPost, "/api/personnel",
		`{"stammrollennummer":"1001","vorname":"Ada","nachname":"Lang","dienstgrad":"FM","group_id":3}`, "")
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 3, body["group_id"])

	code, body = call(t, e, http.MethodPut, "/api/personnel/1",
		`{"stammrollennummer":"1001","vorname":"Ada","nachname":"Lang","dienstgrad":"FM","group_id":4}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown_group", body["code"])
	assert.Equal(t, uint64(3), *store.rows[1].GroupID)
}

type fakeReports struct {
	year       int
	start, end *time.Time
	err        error
}

func (f *fakeReports) PersonnelYearly(_ context.Context, id uint64, year int) (service.PersonnelYearly, error) {
	f.year = year
	return service.PersonnelYearly{Year: year, Personnel: service.PersonnelRef{ID: id}}, f.err
}

func (f *fakeReports) UnitYearly(_ context.Context, year int) (service.UnitYearly, error) {
	f.year = year
	return service.UnitYearly{Year: year}, f.err
}

func (f *fakeReports) History(_ context.Context, id uint64, start, end *time.Time) (service.History, error) {
	f.start, f.end = start, end
	return service.History{Personnel: service.PersonnelRef{ID: id}}, f.err
}

func statsServer(r *fakeReports) *echo.Echo {
	h := &StatisticsHandler{Reports: r, Logger: zap.NewNop()}
	e := newEcho()
	e.GET("/api/statistics/personnel/:id/yearly", h.PersonnelYearly)
	e.GET("/api/statistics/unit/yearly", h.UnitYearly)
	e.GET("/api/statistics/personnel/:id/history", h.History)
	return e
}

func TestStatisticsHandlers(t *testing.T) {
	r := &fakeReports{}
	e := statsServer(r)

	code, _ := call(t, e, http.MethodGet, "/api/statistics/unit/yearly?year=2024", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2024, r.year)

	code, _ = call(t, e, http.MethodGet, "/api/statistics/personnel/3/yearly", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, r.year, "service picks the current year")

	code, _ = call(t, e, http.MethodGet, "/api/statistics/unit/yearly?year=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, e, http.MethodGet, "/api/statistics/personnel/3/history?start_date=2025-01-01&end_date=2025-03-31", "", "")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, r.start)
	require.NotNil(t, r.end)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *r.start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), *r.end)

	code, _ = call(t, e, http.MethodGet, "/api/statistics/personnel/3/history", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, r.start)
	assert.Nil(t, r.end)

	code, _ = call(t, e, http.MethodGet, "/api/statistics/personnel/3/history?start_date=01.01.2025", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	r.err = service.ErrPersonnelNotFound
	code, _ = call(t, e, http.MethodGet, "/api/statistics/personnel/3/history", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	r.err = errors.New("timeout")
	code, body := call(t, e, http.MethodGet, "/api/statistics/unit/yearly", "", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"])
}
