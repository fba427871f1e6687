// ABOUTME: Session service for the credential-delegation layer
// ABOUTME: Authenticates against the upstream store and manages server-side sessions

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/mthomas/servicedesk-bff/cache"
	"github.com/mthomas/servicedesk-bff/models"
)

// groupPageSize is the page size for the group membership query.
const groupPageSize = 100

// SessionStore is the injectable backing store for sessions. A lookup
// miss returns models.ErrNotAuthenticated.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}

// SessionService authenticates users against the upstream store and
// owns the session lifecycle.
type SessionService struct {
	store             SessionStore
	client            *Client
	serviceAccount    models.Credential
	useServiceAccount bool
	ttl               time.Duration
}

// SessionOptions configures a session service.
type SessionOptions struct {
	Store          SessionStore
	Client         *Client
	ServiceAccount models.Credential
	// UseServiceAccount makes every delegated call after login use the
	// service account instead of the user's own credential. Identity and
	// groups are still carried for query scoping either way.
	UseServiceAccount bool
	TTL               time.Duration
}

// NewSessionService creates a session service.
func NewSessionService(opts SessionOptions) *SessionService {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionService{
		store:             opts.Store,
		client:            opts.Client,
		serviceAccount:    opts.ServiceAccount,
		useServiceAccount: opts.UseServiceAccount,
		ttl:               ttl,
	}
}

// Authenticate verifies username/password against the upstream store by
// looking up the active identity as that user, resolves its group
// memberships, and creates a session. Returns
// models.ErrInvalidCredentials when the upstream rejects the credential
// or no active identity matches.
func (s *SessionService) Authenticate(ctx context.Context, username, password string) (*models.Session, error) {
	userCred := models.Credential{Username: username, Password: password}

	params := url.Values{}
	params.Set("sysparm_query", "user_name="+SanitizeQueryTerm(username)+"^active=true")
	params.Set("sysparm_limit", "1")
	params.Set("sysparm_fields", "sys_id,user_name,name,email")

	rows, err := s.client.TableQuery(ctx, userCred, "sys_user", params)
	if err != nil {
		var ue *models.UpstreamError
		if errors.As(err, &ue) && (ue.Status == 401 || ue.Status == 403) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, models.ErrInvalidCredentials
	}

	row := rows[0]
	identity := models.Identity{
		SysID:    row.Get("sys_id").String(),
		UserName: row.Get("user_name").String(),
		Name:     row.Get("name").String(),
		Email:    row.Get("email").String(),
	}

	groups, err := s.fetchGroups(ctx, userCred, identity.SysID)
	if err != nil {
		return nil, fmt.Errorf("group membership lookup failed: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	delegated := userCred
	if s.useServiceAccount {
		delegated = s.serviceAccount
	}

	session := &models.Session{
		Token:     token,
		Identity:  identity,
		Delegated: delegated,
		Groups:    groups,
		CreatedAt: time.Now(),
	}

	if err := s.store.Save(ctx, session, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	slog.Info("Session created", "user", identity.UserName, "groups", len(groups), "delegation", delegationMode(s.useServiceAccount))
	return session, nil
}

// Lookup resolves a session token. A miss is models.ErrNotAuthenticated.
func (s *SessionService) Lookup(ctx context.Context, token string) (*models.Session, error) {
	return s.store.Lookup(ctx, token)
}

// Logout deletes the server-side session for a token.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}

// fetchGroups pages through the membership table collecting group IDs.
func (s *SessionService) fetchGroups(ctx context.Context, cred models.Credential, userSysID string) ([]string, error) {
	var groups []string

	for offset := 0; ; offset += groupPageSize {
		params := url.Values{}
		params.Set("sysparm_query", "user="+userSysID)
		params.Set("sysparm_fields", "group")
		params.Set("sysparm_limit", strconv.Itoa(groupPageSize))
		params.Set("sysparm_offset", strconv.Itoa(offset))

		rows, err := s.client.TableQuery(ctx, cred, "sys_user_grmember", params)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			if g := unwrapValue(row.Get("group")); g != "" {
				groups = append(groups, g)
			}
		}

		if len(rows) < groupPageSize {
			return groups, nil
		}
	}
}

// generateToken returns a 48-hex-char cryptographically random token.
func generateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func delegationMode(useServiceAccount bool) string {
	if useServiceAccount {
		return "service_account"
	}
	return "user"
}

// MemorySessionStore keeps sessions in the process-wide TTL cache.
// Sessions survive only until process restart.
type MemorySessionStore struct {
	cache *cache.Cache
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore(c *cache.Cache) *MemorySessionStore {
	return &MemorySessionStore{cache: c}
}

func (m *MemorySessionStore) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	m.cache.SetWithTTL(sessionKey(session.Token), session, ttl)
	return nil
}

func (m *MemorySessionStore) Lookup(ctx context.Context, token string) (*models.Session, error) {
	val, ok := m.cache.Get(sessionKey(token))
	if !ok {
		return nil, models.ErrNotAuthenticated
	}
	session, ok := val.(*models.Session)
	if !ok {
		return nil, models.ErrNotAuthenticated
	}
	return session, nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, token string) error {
	m.cache.Delete(sessionKey(token))
	return nil
}

// sessionKey returns the cache key for a session token.
func sessionKey(token string) string {
	return "session:" + token
}
