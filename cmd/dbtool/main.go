// Command dbtool prepares the SQL response cache used by gbfs2osm when
// --cache-backend is sqlite or postgres.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"gbfs2osm/internal/adapters/cache"
	"gbfs2osm/internal/config"
	"gbfs2osm/internal/platform/db"
	"gbfs2osm/internal/platform/logging"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	config.LoadEnvFiles()
	logger := logging.Configure(logging.Config{
		Level:  config.Get("LOG_LEVEL", "info"),
		Format: config.Get("LOG_FORMAT", "auto"),
	})

	if err := newRootCmd().ExecuteContext(logging.WithLogger(context.Background(), logger)); err != nil {
		logger.Error().Err(err).Msg("dbtool failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dialect  string
		dsn      string
		purgeAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dbtool",
		Short: "Create the response_cache table and optionally purge old entries",
		Example: `  GBFS2OSM_CACHE_DSN=postgres://localhost/gbfs2osm dbtool --dialect postgres
  dbtool --dialect sqlite --dsn .cache/cache.sqlite --purge-older-than 168h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = config.Get(config.EnvPrefix+"_CACHE_DSN", config.Get("DATABASE_URL", ""))
			}
			return run(cmd.Context(), cache.Dialect(strings.ToLower(dialect)), dsn, purgeAge)
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", string(cache.DialectPostgres), "database dialect: postgres or sqlite")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database URL or sqlite file (default $GBFS2OSM_CACHE_DSN, then $DATABASE_URL)")
	cmd.Flags().DurationVar(&purgeAge, "purge-older-than", 0, "delete entries older than this age, 0 to keep all")

	return cmd
}

func run(ctx context.Context, dialect cache.Dialect, dsn string, purgeAge time.Duration) error {
	logger := logging.FromContext(ctx)

	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("dbtool: a DSN is required")
	}

	conn, err := open(dialect, dsn)
	if err != nil {
		return fmt.Errorf("dbtool: %w", err)
	}
	defer conn.Close()

	logger.Info().Str("dialect", string(dialect)).Msg("initializing response cache schema")
	if err := cache.InitSchema(ctx, conn, dialect); err != nil {
		return fmt.Errorf("dbtool: %w", err)
	}
	logger.Info().Msg("schema ready")

	if purgeAge > 0 {
		n, err := cache.Purge(ctx, conn, dialect, time.Now().Add(-purgeAge))
		if err != nil {
			return fmt.Errorf("dbtool: %w", err)
		}
		logger.Info().Int64("deleted", n).Dur("older_than", purgeAge).Msg("purged cache entries")
	}

	return nil
}

func open(dialect cache.Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case cache.DialectPostgres:
		return db.OpenPostgres(dsn)
	case cache.DialectSQLite:
		return db.OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
}
