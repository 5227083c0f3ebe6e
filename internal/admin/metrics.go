// AngelaMos | 2026
// metrics.go

package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/nfphealth/nfp-backend/internal/user"
)

// Window is how far back the enquiry count looks.
const Window = 7 * 24 * time.Hour

const metricsKey = "metrics"

type Metrics struct {
	UsersTotal  int     `json:"usersTotal"`
	Admins      int     `json:"admins"`
	Members     int     `json:"members"`
	Enquiries7d int     `json:"enquiries7d"`
	AvgRating   float64 `json:"avgRating"`
}

type UserCounter interface {
	CountByRole(ctx context.Context) (user.RoleCounts, error)
}

type EnquiryCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type RatingAverager interface {
	Average(ctx context.Context) (float64, error)
}

// MetricsService aggregates dashboard numbers. The three sources are read
// concurrently and the result is cached for the configured ttl.
type MetricsService struct {
	users     UserCounter
	enquiries EnquiryCounter
	ratings   RatingAverager
	cache     *cache.Cache
	now       func() time.Time
}

func NewMetricsService(
	users UserCounter,
	enquiries EnquiryCounter,
	ratings RatingAverager,
	ttl time.Duration,
) *MetricsService {
	s := &MetricsService{
		users:     users,
		enquiries: enquiries,
		ratings:   ratings,
		now:       time.Now,
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *MetricsService) Get(ctx context.Context) (Metrics, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(metricsKey); ok {
			return v.(Metrics), nil
		}
	}

	var (
		counts user.RoleCounts
		recent int
		avg    float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.users.CountByRole(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.enquiries.CountSince(gctx, s.now().Add(-Window))
		return err
	})
	g.Go(func() error {
		var err error
		avg, err = s.ratings.Average(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Metrics{}, fmt.Errorf("aggregate metrics: %w", err)
	}

	m := Metrics{
		UsersTotal:  counts.Total,
		Admins:      counts.Admins,
		Members:     counts.Members(),
		Enquiries7d: recent,
		AvgRating:   avg,
	}

	if s.cache != nil {
		s.cache.SetDefault(metricsKey, m)
	}
	return m, nil
}
