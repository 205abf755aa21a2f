// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package preference

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

const exportPageSize = 256

// Export writes one JSON object per line for each requested user, or for
// every stored user when userIDs is empty. Requested users without a record
// are skipped. Returns the number of records written.
func (s *Store) Export(ctx context.Context, w io.Writer, userIDs ...string) (int, error) {
	enc := json.NewEncoder(w)

	write := func(id string) (bool, error) {
		p, err := s.repo.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load preference %s: %w", id, err)
		}
		if err := enc.EncodeContext(ctx, p); err != nil {
			return false, fmt.Errorf("encode preference %s: %w", id, err)
		}
		return true, nil
	}

	written := 0
	if len(userIDs) > 0 {
		for _, id := range userIDs {
			ok, err := write(id)
			if err != nil {
				return written, err
			}
			if ok {
				written++
			}
		}
		return written, nil
	}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ids, err := s.repo.UserIDs(ctx, after, exportPageSize)
		if err != nil {
			return written, fmt.Errorf("list users: %w", err)
		}
		for _, id := range ids {
			ok, err := write(id)
			if err != nil {
				return written, err
			}
			if ok {
				written++
			}
		}
		if len(ids) < exportPageSize {
			return written, nil
		}
		after = ids[len(ids)-1]
	}
}
