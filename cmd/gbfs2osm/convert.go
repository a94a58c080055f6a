package main

import (
	"fmt"
	"gbfs2osm/internal/adapters/osmxml"
	"gbfs2osm/internal/config"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/services"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Write a changeset that brings OSM in line with the GBFS feed",
		Example: `  gbfs2osm convert --gbfs-feed-url https://gbfs.velobixi.com/gbfs/gbfs.json \
    --operator "PBSC Urban Solutions" --network BIXI -o bixi.osm
  gbfs2osm convert --system bixi --systems-file systems.yaml --overwrite capacity,name -o bixi.osc`,
		Args: cobra.NoArgs,
		RunE: a.runConvert,
	}
}

func (a *app) runConvert(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireOutput(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := logging.FromContext(cmd.Context()).With().Str("run_id", runID).Logger()
	ctx := logging.WithLogger(obs.WithRunID(cmd.Context(), runID), logger)
	defer obs.Time(ctx, "convert")(&err)

	format, err := outputFormat(cfg)
	if err != nil {
		return err
	}
	writer, err := osmxml.NewFileWriter(cfg.OutputFile, format, a.info.Generator())
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	ad, err := openAdapters(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ad.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("closing adapters failed")
		}
	}()

	result, err := services.Reconcile(ctx, reconcileRequest(cfg), ad.Source, ad.Fetcher)
	if err != nil {
		return err
	}

	if err := writer.WriteChangeset(ctx, result.Changeset); err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	logger.Info().
		Str("file", cfg.OutputFile).
		Str("format", string(writer.Format)).
		Int("operations", len(result.Changeset.Operations)).
		Msg("changeset written")
	return nil
}

// outputFormat returns the explicit --format, or "" to let the writer
// infer it from the output file extension.
func outputFormat(cfg *config.Config) (osmxml.Format, error) {
	if cfg.Format == "" {
		return "", nil
	}
	return osmxml.ParseFormat(cfg.Format)
}
