package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kettleworks/brewbot/internal/domain"
	"github.com/kettleworks/brewbot/internal/handler"
	"github.com/kettleworks/brewbot/internal/service"
)

// ---- mock services ---------------------------------------------------------

type mockRoster struct {
	join  func(ctx context.Context, req service.JoinRequest) (domain.Brew, error)
	leave func(ctx context.Context, userID, location string) (domain.Brew, error)
}

func (m *mockRoster) Join(ctx context.Context, req service.JoinRequest) (domain.Brew, error) {
	return m.join(ctx, req)
}
func (m *mockRoster) Leave(ctx context.Context, userID, location string) (domain.Brew, error) {
	return m.leave(ctx, userID, location)
}

type mockHistory struct {
	list        func(ctx context.Context) ([]domain.Brew, error)
	next        func(ctx context.Context, location string) (domain.Brew, error)
	lastForUser func(ctx context.Context, userID string) (domain.Brew, error)
}

func (m *mockHistory) List(ctx context.Context) ([]domain.Brew, error) { return m.list(ctx) }
func (m *mockHistory) Next(ctx context.Context, location string) (domain.Brew, error) {
	return m.next(ctx, location)
}
func (m *mockHistory) LastForUser(ctx context.Context, userID string) (domain.Brew, error) {
	return m.lastForUser(ctx, userID)
}

type mockDirectory struct {
	getByIP func(ctx context.Context, ip string) (domain.Location, error)
}

func (m *mockDirectory) GetByIP(ctx context.Context, ip string) (domain.Location, error) {
	return m.getByIP(ctx, ip)
}

// compile-time checks against the handler's consumer interfaces.
var (
	_ handler.RosterServicer    = (*mockRoster)(nil)
	_ handler.HistoryServicer   = (*mockHistory)(nil)
	_ handler.LocationDirectory = (*mockDirectory)(nil)
)

func serve(t *testing.T, srv *handler.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func brewFixture() domain.Brew {
	return domain.Brew{
		ID:       uuid.New(),
		DueAt:    time.Date(2025, 3, 1, 9, 10, 0, 0, time.UTC),
		Location: "kitchen",
		Brewers:  []domain.Brewer{{UserID: "github|xyz", Name: "Grace"}},
		Version:  1,
	}
}

// ---- join ------------------------------------------------------------------

func TestJoinBrew_OK(t *testing.T) {
	fixture := brewFixture()

	var gotReq service.JoinRequest
	srv := handler.NewServer(&mockRoster{
		join: func(_ context.Context, req service.JoinRequest) (domain.Brew, error) {
			gotReq = req
			return fixture, nil
		},
	}, &mockHistory{}, &mockDirectory{})

	body := `{"user_id":"github|xyz","name":"Grace","location":"kitchen","brew":"assam","lead_minutes":15}`
	rec := serve(t, srv, http.MethodPost, "/brews/join", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "github|xyz", gotReq.UserID)
	assert.Equal(t, "kitchen", gotReq.Location)
	assert.Equal(t, "assam", gotReq.Drink)
	assert.Equal(t, 15*time.Minute, gotReq.Lead)

	var got domain.Brew
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, fixture.ID, got.ID)
}

func TestJoinBrew_LocationFromCallerIP(t *testing.T) {
	srv := handler.NewServer(&mockRoster{
		join: func(_ context.Context, req service.JoinRequest) (domain.Brew, error) {
			assert.Equal(t, "kitchen", req.Location)
			return brewFixture(), nil
		},
	}, &mockHistory{}, &mockDirectory{
		getByIP: func(_ context.Context, ip string) (domain.Location, error) {
			assert.Equal(t, "192.0.2.1", ip) // httptest.NewRequest default RemoteAddr
			return domain.Location{Name: "kitchen"}, nil
		},
	})

	body := `{"user_id":"github|xyz","name":"Grace"}`
	rec := serve(t, srv, http.MethodPost, "/brews/join", body)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJoinBrew_UnknownCallerIP(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{}, &mockDirectory{
		getByIP: func(_ context.Context, _ string) (domain.Location, error) {
			return domain.Location{}, domain.ErrNotFound
		},
	})

	rec := serve(t, srv, http.MethodPost, "/brews/join", `{"user_id":"github|xyz","name":"Grace"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinBrew_InvalidBody(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{}, &mockDirectory{})

	rec := serve(t, srv, http.MethodPost, "/brews/join", `{not json`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestJoinBrew_ValidationError(t *testing.T) {
	srv := handler.NewServer(&mockRoster{
		join: func(_ context.Context, _ service.JoinRequest) (domain.Brew, error) {
			return domain.Brew{}, domain.ErrValidation
		},
	}, &mockHistory{}, &mockDirectory{})

	rec := serve(t, srv, http.MethodPost, "/brews/join", `{"user_id":"x|y","name":"n","location":"kitchen"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---- leave -----------------------------------------------------------------

func TestLeaveBrew_OK(t *testing.T) {
	srv := handler.NewServer(&mockRoster{
		leave: func(_ context.Context, userID, location string) (domain.Brew, error) {
			assert.Equal(t, "github|xyz", userID)
			assert.Equal(t, "kitchen", location)
			return brewFixture(), nil
		},
	}, &mockHistory{}, &mockDirectory{})

	rec := serve(t, srv, http.MethodPost, "/brews/leave", `{"user_id":"github|xyz","location":"kitchen"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ---- reads -----------------------------------------------------------------

func TestListBrews(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{
		list: func(_ context.Context) ([]domain.Brew, error) {
			return []domain.Brew{brewFixture(), brewFixture()}, nil
		},
	}, &mockDirectory{})

	rec := serve(t, srv, http.MethodGet, "/brews", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Brew
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestNextBrew_NotFound(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{
		next: func(_ context.Context, _ string) (domain.Brew, error) {
			return domain.Brew{}, domain.ErrNotFound
		},
	}, &mockDirectory{})

	rec := serve(t, srv, http.MethodGet, "/brews/next?location=kitchen", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no upcoming brew")
}

func TestLastBrewForUser(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{
		lastForUser: func(_ context.Context, userID string) (domain.Brew, error) {
			assert.Equal(t, "github|xyz", userID)
			return brewFixture(), nil
		},
	}, &mockDirectory{})

	rec := serve(t, srv, http.MethodGet, "/users/github%7Cxyz/last-brew", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLookupLocation(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{}, &mockDirectory{
		getByIP: func(_ context.Context, ip string) (domain.Location, error) {
			assert.Equal(t, "10.1.2.3", ip)
			return domain.Location{Name: "lab"}, nil
		},
	})

	rec := serve(t, srv, http.MethodGet, "/locations/lookup?ip=10.1.2.3", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"location":"lab"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := handler.NewServer(&mockRoster{}, &mockHistory{}, &mockDirectory{})

	rec := serve(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}
