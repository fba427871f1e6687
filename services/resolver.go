// ABOUTME: Reference resolver and display-name cache
// ABOUTME: Turns display strings into identifiers and identifiers into labels

package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mthomas/servicedesk-bff/cache"
	"github.com/mthomas/servicedesk-bff/models"
)

// Resolution is the tagged outcome of a reference resolution. When
// Resolved is false the input passed through unchanged, and an update
// writing it may silently fail upstream.
type Resolution struct {
	Value    string `json:"value"`
	Resolved bool   `json:"resolved"`
}

// Resolver resolves human-entered reference strings to identifiers and
// identifiers back to human-readable labels.
type Resolver struct {
	client  *Client
	names   *cache.Cache
	nameTTL time.Duration
}

// NewResolver creates a resolver with the given display-name cache TTL.
func NewResolver(client *Client, names *cache.Cache, nameTTL time.Duration) *Resolver {
	if nameTTL <= 0 {
		nameTTL = 5 * time.Minute
	}
	return &Resolver{client: client, names: names, nameTTL: nameTTL}
}

// Resolve turns input into a canonical identifier. Input already in
// identifier shape is returned as-is with no upstream call. Otherwise
// one lookup runs against kind-specific candidate fields; when nothing
// matches (or the lookup fails), the input passes through unresolved.
func (r *Resolver) Resolve(ctx context.Context, cred models.Credential, kind models.EntityKind, input string) Resolution {
	if models.IsSysID(input) {
		return Resolution{Value: input, Resolved: true}
	}

	params := url.Values{}
	params.Set("sysparm_query", lookupQuery(kind, SanitizeQueryTerm(input)))
	params.Set("sysparm_limit", "1")
	params.Set("sysparm_fields", "sys_id")

	rows, err := r.client.TableQuery(ctx, cred, string(kind), params)
	if err != nil {
		slog.Warn("Reference lookup failed, passing input through", "kind", kind, "input", sanitizeForLog(input), "error", err)
		return Resolution{Value: input, Resolved: false}
	}
	if len(rows) == 0 {
		return Resolution{Value: input, Resolved: false}
	}

	return Resolution{Value: rows[0].Get("sys_id").String(), Resolved: true}
}

// lookupQuery builds the kind-specific exact-or-partial match condition.
func lookupQuery(kind models.EntityKind, input string) string {
	switch kind {
	case models.EntityUser:
		return fmt.Sprintf("user_name=%s^ORname=%s^ORemail=%s^ORuser_nameLIKE%s^ORnameLIKE%s^ORemailLIKE%s",
			input, input, input, input, input, input)
	default:
		return fmt.Sprintf("name=%s^ORnameLIKE%s", input, input)
	}
}

// ResolveName returns a human-readable label for an identifier, serving
// from the display-name cache when unexpired. Resolution failure falls
// back to the raw identifier so rendering never blocks on it.
func (r *Resolver) ResolveName(ctx context.Context, cred models.Credential, kind models.EntityKind, sysID string) string {
	key := nameKey(kind, sysID)
	if cached, found := r.names.Get(key); found {
		if label, ok := cached.(string); ok {
			return label
		}
	}

	label := r.fetchName(ctx, cred, kind, sysID)
	r.names.SetWithTTL(key, label, r.nameTTL)
	return label
}

// fetchName issues one upstream fetch for the kind's minimal field set.
// People and groups carry a name; anything else labels as its identifier.
func (r *Resolver) fetchName(ctx context.Context, cred models.Credential, kind models.EntityKind, sysID string) string {
	switch kind {
	case models.EntityUser, models.EntityGroup:
	default:
		return sysID
	}

	params := url.Values{}
	params.Set("sysparm_fields", "name")

	row, err := r.client.GetRecord(ctx, cred, string(kind), sysID, params)
	if err != nil {
		slog.Warn("Display-name fetch failed, using identifier", "kind", kind, "sys_id", sysID, "error", err)
		return sysID
	}

	if name := row.Get("name").String(); name != "" {
		return name
	}
	return sysID
}

// nameKey builds the display-name cache key for (entity kind, identifier).
func nameKey(kind models.EntityKind, sysID string) string {
	return "name:" + string(kind) + ":" + sysID
}
