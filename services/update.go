// ABOUTME: Record update pipeline for partial work item updates
// ABOUTME: Structured fields and journal notes are written as two independent PATCHes

package services

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/mthomas/servicedesk-bff/models"
)

// UpdatePipeline validates and applies a partial update to a work item.
type UpdatePipeline struct {
	client   *Client
	resolver *Resolver
}

// NewUpdatePipeline creates an update pipeline.
func NewUpdatePipeline(client *Client, resolver *Resolver) *UpdatePipeline {
	return &UpdatePipeline{client: client, resolver: resolver}
}

// Apply resolves reference fields, writes the remaining structured
// fields in one PATCH, then appends journal notes (with a provenance
// stamp naming the acting identity) in a second PATCH using
// display-value-aware write mode. The two writes are independent; a
// failure in one does not roll back the other, and the returned result
// reports which steps applied.
func (p *UpdatePipeline) Apply(ctx context.Context, cred models.Credential, ref models.RecordRef, fields map[string]string, actor string) (models.UpdateResult, error) {
	var result models.UpdateResult

	structured := make(map[string]string)
	journal := make(map[string]string)

	for name, value := range fields {
		if models.IsJournalField(name) {
			// An explicitly supplied empty journal field passes through
			// as an explicit clear.
			journal[name] = value
			continue
		}
		// Empty structured values would be no-op writes; strip them.
		if value == "" {
			continue
		}
		if kind, ok := models.AssignmentFields[name]; ok {
			res := p.resolver.Resolve(ctx, cred, kind, value)
			if !res.Resolved {
				slog.Warn("Assignment reference unresolved, passing through", "field", name, "value", value)
			}
			value = res.Value
		}
		structured[name] = value
	}

	if len(structured) > 0 {
		body, err := buildBody(structured)
		if err != nil {
			return result, &models.UpdateError{Step: models.UpdateStepFields, Err: err}
		}
		if _, err := p.client.PatchRecord(ctx, cred, string(ref.Table), ref.SysID, body, nil); err != nil {
			return result, &models.UpdateError{Step: models.UpdateStepFields, Err: err}
		}
		result.FieldsApplied = true
	}

	if len(journal) > 0 {
		stamped := make(map[string]string, len(journal))
		for name, value := range journal {
			text := strings.TrimSpace(value)
			if text != "" {
				text = text + "\n#Cont. by " + actor
			}
			stamped[name] = text
		}

		body, err := buildBody(stamped)
		if err != nil {
			return result, &models.UpdateError{Step: models.UpdateStepJournal, Err: err}
		}

		// Journal fields require display-value-aware write mode, which is
		// why they go in a separate PATCH from the structured fields.
		params := url.Values{}
		params.Set("sysparm_input_display_value", "true")

		if _, err := p.client.PatchRecord(ctx, cred, string(ref.Table), ref.SysID, body, params); err != nil {
			return result, &models.UpdateError{Step: models.UpdateStepJournal, Err: err}
		}
		result.JournalApplied = true
	}

	return result, nil
}

// buildBody assembles a flat JSON object from field name/value pairs.
func buildBody(fields map[string]string) ([]byte, error) {
	body := []byte("{}")
	var err error
	for name, value := range fields {
		body, err = sjson.SetBytes(body, name, value)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}
