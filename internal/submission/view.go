// AngelaMos | 2026
// view.go

package submission

import (
	"context"
	"time"

	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/validation"
)

// Row is a display-ready local submission.
type Row struct {
	Time    string `json:"time"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Program string `json:"program"`
	Consent string `json:"consent"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

const timeLayout = "2006-01-02 15:04:05"

// Normalize formats records for display. Records without a timestamp show
// the current time; missing program and consent show "-".
func Normalize(records []enquiry.Enquiry, loc *time.Location, now time.Time) []Row {
	if loc == nil {
		loc = time.Local
	}

	rows := make([]Row, 0, len(records))
	for i := range records {
		e := &records[i]

		ts := e.CreatedAt
		if ts.IsZero() {
			ts = now
		}

		program := e.ProgramName()
		if program == "" {
			program = "-"
		}

		consent := "-"
		if e.Consent != nil {
			consent = "No"
			if *e.Consent {
				consent = "Yes"
			}
		}

		rows = append(rows, Row{
			Time:    ts.In(loc).Format(timeLayout),
			Name:    validation.Escape(e.Name),
			Email:   validation.Escape(e.Email),
			Program: validation.Escape(program),
			Consent: consent,
			Message: validation.Escape(e.Message),
			Source:  e.Source,
		})
	}
	return rows
}

func (p *Pipeline) Rows(ctx context.Context) ([]Row, error) {
	records, err := p.Records(ctx)
	if err != nil {
		return nil, err
	}
	return Normalize(records, time.Local, p.now()), nil
}
