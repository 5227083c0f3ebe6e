// AngelaMos | 2026
// rules.go

package enquiry

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/validation"
)

const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldProgram = "program"
	FieldMessage = "message"
	FieldConsent = "consent"
)

const repeatLimit = 3

type Rules struct {
	DuplicateWindow time.Duration
	MessageMin      int
	MessageMax      int
}

func DefaultRules() Rules {
	return Rules{
		DuplicateWindow: 2 * time.Minute,
		MessageMin:      20,
		MessageMax:      500,
	}
}

func RulesFromConfig(cfg config.SubmissionConfig) Rules {
	r := DefaultRules()
	if cfg.DuplicateWindow > 0 {
		r.DuplicateWindow = cfg.DuplicateWindow
	}
	if cfg.MessageMin > 0 {
		r.MessageMin = cfg.MessageMin
	}
	if cfg.MessageMax > 0 {
		r.MessageMax = cfg.MessageMax
	}
	return r
}

// DuplicateChecker reports whether a submission for (email, program) was
// stored at or after since.
type DuplicateChecker interface {
	ExistsRecent(
		ctx context.Context,
		email, program string,
		since time.Time,
	) (bool, error)
}

// Validate applies every field rule and reports all violations together.
// It returns nil or a *core.ValidationError.
func (r Rules) Validate(p Payload) error {
	return r.fieldErrors(p).OrNil()
}

// Check runs Validate plus the duplicate window lookup. Lookup failures are
// returned as-is; they are not validation errors.
func (r Rules) Check(
	ctx context.Context,
	p Payload,
	dup DuplicateChecker,
	now time.Time,
) error {
	verr := r.fieldErrors(p)

	if dup != nil && r.DuplicateWindow > 0 {
		n := p.Normalized()
		if n.Email != "" && n.Program != "" {
			found, err := dup.ExistsRecent(ctx, n.Email, n.Program,
				now.Add(-r.DuplicateWindow))
			if err != nil {
				return fmt.Errorf("duplicate check: %w", err)
			}
			if found {
				verr.Add(core.GlobalField, fmt.Sprintf(
					"Duplicate submission within %s.", humanize(r.DuplicateWindow)))
			}
		}
	}

	return verr.OrNil()
}

func (r Rules) fieldErrors(p Payload) *core.ValidationError {
	verr := core.NewValidationError()
	n := p.Normalized()

	switch {
	case n.Name == "":
		verr.Add(FieldName, "Name is required.")
	case utf8.RuneCountInString(n.Name) < 2:
		verr.Add(FieldName, "Name must be at least 2 characters.")
	}

	if n.Email == "" || !validation.IsEmail(n.Email) {
		verr.Add(FieldEmail, "A valid email is required.")
	}

	if n.Program == "" {
		verr.Add(FieldProgram, "Program is required.")
	}

	msg := n.Message
	if msg == "" {
		verr.Add(FieldMessage, "Message is required.")
	} else {
		if validation.HasMarkup(msg) {
			verr.Add(FieldMessage, "HTML is not allowed.")
		}
		if validation.HasURL(msg) {
			verr.Add(FieldMessage, "URLs are not allowed.")
		}
		if validation.HasRepeatedRun(msg, repeatLimit) {
			verr.Add(FieldMessage, "Avoid repeated characters.")
		}
		length := utf8.RuneCountInString(msg)
		if length < r.MessageMin {
			verr.Add(FieldMessage, fmt.Sprintf(
				"Message must be at least %d characters.", r.MessageMin))
		}
		if length > r.MessageMax {
			verr.Add(FieldMessage, fmt.Sprintf(
				"Message exceeds %d characters.", r.MessageMax))
		}
	}

	if !n.Consent {
		verr.Add(FieldConsent, "Consent is required.")
	}

	return verr
}

func humanize(d time.Duration) string {
	switch {
	case d%time.Minute == 0 && d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
}
