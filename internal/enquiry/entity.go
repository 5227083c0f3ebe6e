// AngelaMos | 2026
// entity.go

package enquiry

import (
	"encoding/json"
	"time"
)

const (
	SourceCloud = "cloud"
	SourceLocal = "local"
)

// Enquiry is a stored submission. It is never mutated after creation.
// Topic mirrors Program for readers of older records.
type Enquiry struct {
	ID        string    `db:"id"         json:"id,omitempty"`
	Name      string    `db:"name"       json:"name"`
	Email     string    `db:"email"      json:"email"`
	Program   string    `db:"program"    json:"program"`
	Topic     string    `db:"-"          json:"topic,omitempty"`
	Message   string    `db:"message"    json:"message"`
	Consent   *bool     `db:"consent"    json:"consent,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	Source    string    `db:"-"          json:"source,omitempty"`
}

// ProgramName falls back to the legacy topic field.
func (e *Enquiry) ProgramName() string {
	if e.Program != "" {
		return e.Program
	}
	return e.Topic
}

type enquiryJSON struct {
	jsonAlias
	CreatedAt int64 `json:"createdAt"`
}

type jsonAlias Enquiry

// MarshalJSON encodes createdAt as unix milliseconds.
func (e Enquiry) MarshalJSON() ([]byte, error) {
	var ms int64
	if !e.CreatedAt.IsZero() {
		ms = e.CreatedAt.UnixMilli()
	}
	return json.Marshal(enquiryJSON{jsonAlias: jsonAlias(e), CreatedAt: ms})
}

func (e *Enquiry) UnmarshalJSON(data []byte) error {
	var raw enquiryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Enquiry(raw.jsonAlias)
	if raw.CreatedAt > 0 {
		e.CreatedAt = time.UnixMilli(raw.CreatedAt).UTC()
	}
	return nil
}
