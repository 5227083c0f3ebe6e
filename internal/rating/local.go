// AngelaMos | 2026
// local.go

package rating

import (
	"context"
	"time"

	"github.com/nfphealth/nfp-backend/internal/localstore"
)

type localEntry struct {
	ProgramID string `json:"programId"`
	UserID    string `json:"userId"`
	Stars     int    `json:"stars"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// LocalBook keeps ratings in the client's durable store.
type LocalBook struct {
	list *localstore.List[localEntry]
	now  func() time.Time
}

func NewLocalBook(backend localstore.Backend) *LocalBook {
	return &LocalBook{
		list: localstore.NewList[localEntry](backend, localstore.KeyRatings),
		now:  time.Now,
	}
}

// Submit validates and upserts p, then returns the program summary with the
// caller's own stars.
func (b *LocalBook) Submit(ctx context.Context, p Payload) (Summary, error) {
	if err := Validate(p); err != nil {
		return Summary{}, err
	}

	rt := p.toRating()
	ts := b.now().UnixMilli()

	err := b.list.Update(ctx, func(cur []localEntry) ([]localEntry, error) {
		for i := range cur {
			if cur[i].ProgramID == rt.ProgramID && cur[i].UserID == rt.UserID {
				cur[i].Stars = rt.Stars
				cur[i].Comment = rt.Comment
				cur[i].UpdatedAt = ts
				return cur, nil
			}
		}
		return append(cur, localEntry{
			ProgramID: rt.ProgramID,
			UserID:    rt.UserID,
			Stars:     rt.Stars,
			Comment:   rt.Comment,
			CreatedAt: ts,
			UpdatedAt: ts,
		}), nil
	})
	if err != nil {
		return Summary{}, err
	}

	return b.Summary(ctx, rt.ProgramID, rt.UserID)
}

func (b *LocalBook) Summary(
	ctx context.Context,
	programID, userID string,
) (Summary, error) {
	entries, err := b.list.All(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{ProgramID: programID}
	total := 0
	for _, e := range entries {
		if e.ProgramID != programID {
			continue
		}
		s.Count++
		total += e.Stars
		if userID != "" && e.UserID == userID {
			s.My = e.Stars
		}
	}
	if s.Count > 0 {
		s.Avg = float64(total) / float64(s.Count)
	}

	return s, nil
}
