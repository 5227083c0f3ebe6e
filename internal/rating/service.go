// AngelaMos | 2026
// service.go

package rating

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type Service struct {
	repo    Repository
	summary *cache.Cache
}

// NewService caches program summaries for ttl. A zero ttl disables caching.
func NewService(repo Repository, ttl time.Duration) *Service {
	s := &Service{repo: repo}
	if ttl > 0 {
		s.summary = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *Service) Submit(ctx context.Context, p Payload) (Summary, error) {
	if err := Validate(p); err != nil {
		return Summary{}, err
	}

	rt := p.toRating()
	if err := s.repo.Upsert(ctx, rt); err != nil {
		return Summary{}, err
	}

	if s.summary != nil {
		s.summary.Delete(rt.ProgramID)
	}

	sum, err := s.Summary(ctx, rt.ProgramID)
	if err != nil {
		return Summary{}, err
	}
	sum.My = rt.Stars
	return sum, nil
}

func (s *Service) Summary(ctx context.Context, programID string) (Summary, error) {
	if s.summary != nil {
		if v, ok := s.summary.Get(programID); ok {
			return v.(Summary), nil
		}
	}

	sum, err := s.repo.Summary(ctx, programID)
	if err != nil {
		return Summary{}, err
	}

	if s.summary != nil {
		s.summary.SetDefault(programID, sum)
	}
	return sum, nil
}

// Mine is the summary plus the caller's own stars, uncached.
func (s *Service) Mine(ctx context.Context, programID, userID string) (Summary, error) {
	sum, err := s.Summary(ctx, programID)
	if err != nil {
		return Summary{}, err
	}

	sum.My, err = s.repo.StarsFor(ctx, programID, userID)
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (s *Service) Average(ctx context.Context) (float64, error) {
	return s.repo.Average(ctx)
}
