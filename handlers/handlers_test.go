// ABOUTME: Shared test fixtures for the handler package
// ABOUTME: Builds a wired handler over a fake upstream with a seeded session

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mthomas/servicedesk-bff/cache"
	"github.com/mthomas/servicedesk-bff/config"
	"github.com/mthomas/servicedesk-bff/middleware"
	"github.com/mthomas/servicedesk-bff/models"
	"github.com/mthomas/servicedesk-bff/services"
)

const (
	testUserID   = "5137153cc611227c000bbd1bd8cd2005"
	testGroupID  = "287ebd7da9fe198100f92cc8d1d2154e"
	testRecordID = "9c573169c611228700193229fff72400"
	testToken    = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

// newTestHandler wires a handler against the given upstream URL and
// seeds one authenticated session reachable as testToken.
func newTestHandler(t *testing.T, upstreamURL string) *Handler {
	t.Helper()

	cfg := &config.Config{
		UpstreamURL:            upstreamURL,
		UpstreamTimeout:        2,
		ServiceAccountUser:     "svc.bff",
		ServiceAccountPassword: "svcpw",
		SessionTTL:             60,
		NameCacheTTL:           60,
	}

	store := services.NewMemorySessionStore(cache.New(time.Minute))
	h := NewHandler(cfg, store, "memory")

	session := &models.Session{
		Token: testToken,
		Identity: models.Identity{
			SysID:    testUserID,
			UserName: "jdoe",
			Name:     "Jane Doe",
			Email:    "jdoe@example.com",
		},
		Delegated: models.Credential{Username: "jdoe", Password: "secret"},
		Groups:    []string{testGroupID},
		CreatedAt: time.Now(),
	}
	if err := store.Save(context.Background(), session, time.Minute); err != nil {
		t.Fatalf("Failed to seed session: %v", err)
	}

	return h
}

// testMux registers the full route table with the auth middleware so
// requests exercise path patterns and session injection together.
func testMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range h.Routes() {
		handler := route.Handler
		if route.Auth {
			handler = middleware.Chain(handler, middleware.Auth(h.SessionLookup()))
		}
		mux.HandleFunc(route.Method+" "+route.Path, handler)
	}
	return mux
}

// doRequest runs one request through the route table as the seeded user.
func doRequest(h *Handler, method, target string, body *string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(*body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)

	rec := httptest.NewRecorder()
	testMux(h).ServeHTTP(rec, req)
	return rec
}
