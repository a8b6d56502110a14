package totpgate

import (
	"errors"
	"html/template"
	"net/http"
	"time"
)

// User-facing messages. The recoverable ones re-render the challenge form;
// the helpdesk message accompanies internal failures only.
const (
	msgCodeNotNumeric = "A valid token consists of only numeric values"
	msgCodeIncorrect  = "You have entered the incorrect token."
	msgValidatorDown  = "There was an issue with the validation service. Please contact your helpdesk administrator."
)

// ChallengeHandler returns the HTTP endpoint the filter redirects to. It
// accepts GET and POST; parameters StateId (required) and code (present on
// submissions) may arrive in the query or the form body.
func (g *Gate) ChallengeHandler() http.Handler {
	return http.HandlerFunc(g.serveChallenge)
}

func (g *Gate) serveChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wire := r.FormValue("StateId")
	if wire == "" {
		g.metricInc(MetricStateRejected)
		g.emitAudit(ctx, auditEventStateRejected, false, "", "", ErrStateIDMissing, nil)
		g.badRequest(w, "Missing required StateId parameter.")
		return
	}

	sid, err := parseStateID(g.config.StateID, wire)
	if err != nil {
		g.metricInc(MetricStateRejected)
		g.emitAudit(ctx, auditEventStateRejected, false, "", "", err, nil)
		g.badRequest(w, "Malformed StateId parameter.")
		return
	}

	// The embedded hint crossed the user agent; reject it before any
	// store access.
	if sid.ReturnURL != "" && !g.policy.Allowed(sid.ReturnURL) {
		g.metricInc(MetricRedirectRejected)
		g.emitAudit(ctx, auditEventStateRejected, false, "", sid.ID, ErrRedirectRejected, func() map[string]string {
			return map[string]string{
				"return_url": sid.ReturnURL,
			}
		})
		g.badRequest(w, "Untrusted redirect target.")
		return
	}

	tx, err := g.store.Load(ctx, PurposeRequest, sid.ID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) || errors.Is(err, ErrStateExpired) {
			g.metricInc(MetricStateRejected)
			g.emitAudit(ctx, auditEventStateRejected, false, "", sid.ID, err, nil)
			g.badRequest(w, "Unknown or expired authentication state. Please restart the login.")
			return
		}
		g.emitAudit(ctx, auditEventStateRejected, false, "", sid.ID, err, nil)
		g.internalError(w)
		return
	}

	view := ChallengeView{
		StateID: wire,
		PostURL: g.config.Filter.ChallengeURL,
	}

	code := r.FormValue("code")
	if code == "" {
		// First visit or an error round trip: render the form, mutate
		// nothing.
		g.metricInc(MetricChallengeRendered)
		g.emitAudit(ctx, auditEventChallengeRendered, true, tx.UserID, sid.ID, nil, nil)
		g.render(w, view)
		return
	}

	if !allDigits(code) {
		// Cheap short-circuit: no validation round trip for garbage
		// input.
		g.metricInc(MetricCodeFormatRejected)
		g.emitAudit(ctx, auditEventCodeRejected, false, tx.UserID, sid.ID, ErrCodeNotNumeric, nil)
		view.ErrorMessage = msgCodeNotNumeric
		g.render(w, view)
		return
	}

	start := time.Now()
	outcome, err := g.validator.Validate(ctx, tx, code)
	g.metricObserve(MetricValidatorLatency, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrValidatorProtocol) {
			g.metricInc(MetricValidatorProtocolError)
		} else {
			g.metricInc(MetricValidatorUnreachable)
		}
		g.emitAudit(ctx, auditEventValidatorError, false, tx.UserID, sid.ID, err, nil)
		g.internalError(w)
		return
	}

	// Exact string comparison: codes are numeric-as-text and leading
	// zeros matter.
	if outcome.AssertedValue != code {
		g.metricInc(MetricCodeRejected)
		g.emitAudit(ctx, auditEventCodeRejected, false, tx.UserID, sid.ID, ErrCodeRejected, func() map[string]string {
			return map[string]string{
				"validator_status": boolString(outcome.Status),
			}
		})
		view.ErrorMessage = msgCodeIncorrect
		g.render(w, view)
		return
	}

	// One-time consume: whichever request deletes the state resumes; a
	// double submit loses the race and is turned away without a second
	// resume.
	deleted, err := g.store.Delete(ctx, PurposeRequest, sid.ID)
	if err != nil {
		g.emitAudit(ctx, auditEventValidatorError, false, tx.UserID, sid.ID, err, nil)
		g.internalError(w)
		return
	}
	if !deleted {
		g.metricInc(MetricResumeReplayBlocked)
		g.emitAudit(ctx, auditEventStateRejected, false, tx.UserID, sid.ID, ErrStateNotFound, func() map[string]string {
			return map[string]string{
				"reason": "state_already_consumed",
			}
		})
		g.badRequest(w, "Unknown or expired authentication state. Please restart the login.")
		return
	}

	g.metricInc(MetricCodeAccepted)
	g.emitAudit(ctx, auditEventCodeAccepted, true, tx.UserID, sid.ID, nil, nil)

	if err := g.resumer.Resume(w, r, tx); err != nil {
		g.emitAudit(ctx, auditEventResumed, false, tx.UserID, sid.ID, err, nil)
		g.internalError(w)
		return
	}

	g.metricInc(MetricResumed)
	g.emitAudit(ctx, auditEventResumed, true, tx.UserID, sid.ID, nil, nil)
}

func (g *Gate) render(w http.ResponseWriter, view ChallengeView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := g.renderer.Render(w, view); err != nil {
		http.Error(w, msgValidatorDown, http.StatusInternalServerError)
	}
}

func (g *Gate) badRequest(w http.ResponseWriter, message string) {
	http.Error(w, message, http.StatusBadRequest)
}

func (g *Gate) internalError(w http.ResponseWriter) {
	http.Error(w, msgValidatorDown, http.StatusInternalServerError)
}

func allDigits(code string) bool {
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return len(code) > 0
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

const defaultChallengeTemplate = `<!DOCTYPE html>
<html>
<head><title>Two-factor authentication</title></head>
<body>
<h1>Enter your one-time code</h1>
{{if .ErrorMessage}}<p class="error">{{.ErrorMessage}}</p>{{end}}
<form method="post" action="{{.PostURL}}">
<input type="hidden" name="StateId" value="{{.StateID}}">
<label for="code">Code</label>
<input id="code" name="code" type="text" inputmode="numeric" autocomplete="one-time-code" autofocus>
<button type="submit">Verify</button>
</form>
</body>
</html>
`

type defaultRenderer struct {
	tmpl *template.Template
}

func newDefaultRenderer() *defaultRenderer {
	return &defaultRenderer{
		tmpl: template.Must(template.New("challenge").Parse(defaultChallengeTemplate)),
	}
}

func (r *defaultRenderer) Render(w http.ResponseWriter, view ChallengeView) error {
	return r.tmpl.Execute(w, view)
}
