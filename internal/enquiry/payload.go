// AngelaMos | 2026
// payload.go

package enquiry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nfphealth/nfp-backend/internal/validation"
)

// Payload is an enquiry as submitted by a caller, before validation.
type Payload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Program string `json:"program"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message"`
	Consent Truthy `json:"consent"`
}

// ProgramName returns the trimmed program, or the legacy topic when the
// program is blank.
func (p Payload) ProgramName() string {
	if prog := strings.TrimSpace(p.Program); prog != "" {
		return prog
	}
	return strings.TrimSpace(p.Topic)
}

// Normalized trims identity fields and folds the topic alias into Program.
// Message is left as written so length rules see what the user typed.
func (p Payload) Normalized() Payload {
	return Payload{
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.ToLower(strings.TrimSpace(p.Email)),
		Program: p.ProgramName(),
		Message: p.Message,
		Consent: p.Consent,
	}
}

// Record builds the sanitized stored form of a validated payload.
func (p Payload) Record(source string, now time.Time) *Enquiry {
	n := p.Normalized()
	program := validation.Strip(n.Program)
	consent := bool(n.Consent)

	return &Enquiry{
		ID:        uuid.New().String(),
		Name:      validation.Strip(n.Name),
		Email:     validation.Strip(n.Email),
		Program:   program,
		Topic:     program,
		Message:   validation.Strip(n.Message),
		Consent:   &consent,
		CreatedAt: now.UTC(),
		Source:    source,
	}
}

// Truthy decodes loosely typed consent values. Anything other than false,
// zero, null, or an empty string counts as true.
type Truthy bool

func (t *Truthy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*t = false
	case bytes.Equal(data, []byte("true")):
		*t = true
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = s != ""
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		*t = true
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*t = f != 0
	}

	return nil
}
