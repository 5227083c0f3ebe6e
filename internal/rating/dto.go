// AngelaMos | 2026
// dto.go

package rating

import (
	"math"
	"strings"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/validation"
)

type Payload struct {
	ProgramID string  `json:"programId"`
	UserID    string  `json:"userId,omitempty"`
	Stars     float64 `json:"stars"`
	Comment   string  `json:"comment,omitempty"`
}

// Validate reports every rule violation. Missing identifiers are reported
// under the global key since they are not user-editable fields.
func Validate(p Payload) error {
	verr := core.NewValidationError()

	if strings.TrimSpace(p.ProgramID) == "" {
		verr.Add(core.GlobalField, "Program id required.")
	}
	if strings.TrimSpace(p.UserID) == "" {
		verr.Add(core.GlobalField, "User id required.")
	}

	if p.Stars < 1 || p.Stars > 5 || p.Stars != math.Trunc(p.Stars) {
		verr.Add("stars", "Rating must be from 1 to 5.")
	}

	if validation.HasMarkup(p.Comment) {
		verr.Add("comment", "HTML not allowed in comment.")
	}

	return verr.OrNil()
}

func (p Payload) toRating() *Rating {
	return &Rating{
		ProgramID: strings.TrimSpace(p.ProgramID),
		UserID:    strings.TrimSpace(p.UserID),
		Stars:     int(p.Stars),
		Comment:   validation.Strip(p.Comment),
	}
}
