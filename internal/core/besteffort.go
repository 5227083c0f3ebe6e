// AngelaMos | 2026
// besteffort.go

package core

import (
	"context"
	"log/slog"
)

// BestEffort runs a secondary side effect whose failure must not affect
// the primary operation. Errors and panics are logged and dropped.
func BestEffort(
	ctx context.Context,
	logger *slog.Logger,
	name string,
	fn func(ctx context.Context) error,
) {
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if p := recover(); p != nil {
			logger.WarnContext(ctx, "best-effort task panicked (ignored)",
				"task", name,
				"panic", p,
			)
		}
	}()

	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "best-effort task failed (ignored)",
			"task", name,
			"error", err,
		)
	}
}
