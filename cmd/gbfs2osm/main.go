// Command gbfs2osm turns a bikeshare operator's GBFS station list into an
// OSM changeset file that can be reviewed and uploaded with JOSM.
package main

import (
	"context"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"os"
	"os/signal"
	"syscall"
)

// Version information populated at build time with -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Process exit codes.
const (
	exitFailure       = 1
	exitInvalidConfig = 2
	exitMalformedFeed = 3
	exitBackend       = 4
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd(buildInfo{Version: version, Commit: commit, Date: date})
	if err := root.ExecuteContext(ctx); err != nil {
		logging.Default().Error().Err(err).Msg("gbfs2osm failed")
		cancel()
		os.Exit(exitCode(err))
	}
}

// exitCode maps the failure class of err to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case domain.IsInvalidConfiguration(err):
		return exitInvalidConfig
	case domain.IsMalformedFeed(err):
		return exitMalformedFeed
	case domain.IsBackendUnavailable(err):
		return exitBackend
	default:
		return exitFailure
	}
}
