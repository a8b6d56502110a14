package totpgate

import (
	"context"
	"fmt"
	"net/url"
)

// Apply is the processing-filter entry point, invoked mid-pipeline after
// primary authentication. It resolves the user identifier, records the
// validation target on the transaction, suspends the transaction in the
// state store, and returns the redirect that sends the user agent to the
// challenge endpoint.
//
// A nil redirect with a nil error means the user proceeds without a second
// factor (no secret configured and enforcement is off). ErrMissingUserID is
// fatal for the request and aborts the pipeline step.
func (g *Gate) Apply(ctx context.Context, tx *Transaction) (*Redirect, error) {
	if g == nil || g.store == nil {
		return nil, ErrGateNotReady
	}
	if tx == nil || len(tx.Attributes) == 0 {
		g.metricInc(MetricMissingUserID)
		g.emitAudit(ctx, auditEventMissingUserID, false, "", "", ErrMissingUserID, nil)
		return nil, ErrMissingUserID
	}

	uidAttr, err := g.metadata.UserIDAttribute(tx.IdPEntityID)
	if err != nil || uidAttr == "" {
		g.metricInc(MetricMissingUserID)
		g.emitAudit(ctx, auditEventMissingUserID, false, "", "", err, nil)
		return nil, fmt.Errorf("%w: user id attribute not defined in metadata", ErrMissingUserID)
	}

	uidValues := tx.Attributes[uidAttr]
	if len(uidValues) == 0 || uidValues[0] == "" {
		g.metricInc(MetricMissingUserID)
		g.emitAudit(ctx, auditEventMissingUserID, false, "", "", ErrMissingUserID, func() map[string]string {
			return map[string]string{
				"attribute": uidAttr,
			}
		})
		return nil, fmt.Errorf("%w: attribute %q absent from transaction", ErrMissingUserID, uidAttr)
	}
	tx.UserID = uidValues[0]

	// Scratch fields: the attribute name is configurable, so the resolved
	// value is stored in a consistent location for the challenge handler.
	if values := tx.Attributes[g.config.Filter.SecretAttr]; len(values) > 0 {
		tx.Secret = values[0]
	}
	tx.AuthenticationURL = g.config.Filter.AuthenticationURL

	if tx.AuthenticationURL == "" && tx.Secret == "" {
		if g.config.Filter.Enforce2FA {
			g.metricInc(MetricNotConfiguredBlocked)
			g.emitAudit(ctx, auditEventNotConfigured, false, tx.UserID, "", ErrNotConfigured, nil)
			if g.config.Filter.NotConfiguredURL != "" {
				// Validated against the redirect policy at Build.
				return &Redirect{Location: g.config.Filter.NotConfiguredURL}, nil
			}
			return nil, ErrNotConfigured
		}

		g.metricInc(MetricChallengeSkipped)
		g.emitAudit(ctx, auditEventChallengeSkipped, true, tx.UserID, "", nil, nil)
		return nil, nil
	}

	wire, id, err := generateStateID(g.config.StateID, tx.ReturnURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateBackend, err)
	}

	if err := g.store.Save(ctx, PurposeRequest, id, tx, g.config.Store.StateTTL); err != nil {
		g.emitAudit(ctx, auditEventChallengeIssued, false, tx.UserID, id, err, nil)
		return nil, err
	}

	// The challenge endpoint is a same-application, trusted target; only
	// the embedded return hint ever needs redirect validation.
	location := g.config.Filter.ChallengeURL + "?StateId=" + url.QueryEscape(wire)

	g.metricInc(MetricChallengeIssued)
	g.emitAudit(ctx, auditEventChallengeIssued, true, tx.UserID, id, nil, nil)

	return &Redirect{Location: location, StateID: wire}, nil
}
