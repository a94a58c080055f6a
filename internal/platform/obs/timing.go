package obs

import (
	"context"
	"gbfs2osm/internal/platform/logging"
	"time"
)

type ctxKey string

// RunIDKey carries the id of the current run (CLI) or request (preview API).
const RunIDKey ctxKey = "run_id"

// WithRunID returns a context tagged with id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// RunID returns the id stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(RunIDKey).(string)
	return id
}

// Time logs the duration of the named operation when the returned func runs.
//
//	defer obs.Time(ctx, "overpass.FetchEntities")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		logger := logging.FromContext(ctx)

		if errp != nil && *errp != nil {
			logger.Debug().
				Str("run_id", RunID(ctx)).
				Str("op", name).
				Int64("dur_ms", dur.Milliseconds()).
				Err(*errp).
				Msg("operation failed")
			return
		}
		logger.Debug().
			Str("run_id", RunID(ctx)).
			Str("op", name).
			Int64("dur_ms", dur.Milliseconds()).
			Msg("operation finished")
	}
}
