// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const sweepPageSize = 500

// SweepResult summarizes one renormalization sweep.
type SweepResult struct {
	Scanned  int
	Repaired int
	Failed   int
	Duration time.Duration
}

// Sweep runs Renormalize for every stored user, page by page. A failure for
// one user is logged and counted; only context cancellation or a paging
// error stops the sweep.
func (u *Updater) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	var res SweepResult
	repo := u.store.Repository()

	after := ""
	for {
		ids, err := repo.UserIDs(ctx, after, sweepPageSize)
		if err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("page users after %q: %w", after, err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				res.Duration = time.Since(start)
				return res, err
			}
			res.Scanned++

			repaired, err := u.Renormalize(ctx, id)
			switch {
			case err == nil:
				if repaired {
					res.Repaired++
				}
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				res.Duration = time.Since(start)
				return res, err
			default:
				res.Failed++
				u.logger.Warn().Err(err).Str("user_id", id).Msg("renormalize failed during sweep")
			}
		}

		if len(ids) < sweepPageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	res.Duration = time.Since(start)
	u.logger.Info().
		Int("scanned", res.Scanned).
		Int("repaired", res.Repaired).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("renormalization sweep completed")
	return res, nil
}
