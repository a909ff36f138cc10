package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pable/go-cr-meta/internal/archetype"
	"github.com/pable/go-cr-meta/internal/archive"
	"github.com/pable/go-cr-meta/internal/cache"
	"github.com/pable/go-cr-meta/internal/cards"
	"github.com/pable/go-cr-meta/internal/clashapi"
	"github.com/pable/go-cr-meta/internal/etl"
	"github.com/pable/go-cr-meta/internal/report"
	"github.com/pable/go-cr-meta/internal/snapshot"
	"github.com/pable/go-cr-meta/internal/storage"
)

// snapshot command flags.
var (
	snapTopN   int
	snapDryRun bool
	snapRecord string
	snapReplay string
	snapCards  string
	snapRedis  string
	snapModes  []int64
)

// source is what the pipeline reads from: the live API, optionally cached
// and recorded, or a replayed capture.
type source interface {
	etl.RankingSource
	etl.BattleLogSource
}

// snapshotCmd rebuilds the stored meta snapshot from the top players' battle logs.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Scan the top players and replace the stored snapshot",
	Long: `Fetches the ranked leaderboard, scans each player's battle log, dedups
ranked 1v1 matches, classifies every deck and replaces the stored snapshot in
a single transaction. A summary is printed before anything is written.

Examples:
  # Top 50 players, write to the default database
  crmeta snapshot --top-n 50

  # Record the API responses, then rebuild offline from them
  crmeta snapshot --record run.cap.zst
  crmeta snapshot --replay run.cap.zst --dry-run`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().IntVar(&snapTopN, "top-n", 0, "number of top players to scan (default from config, 20)")
	snapshotCmd.Flags().BoolVar(&snapDryRun, "dry-run", false, "print the summary without writing")
	snapshotCmd.Flags().StringVar(&snapRecord, "record", "", "write a capture of every API response to this file")
	snapshotCmd.Flags().StringVar(&snapReplay, "replay", "", "read players and battle logs from a capture instead of the API")
	snapshotCmd.Flags().StringVar(&snapCards, "cards", "", "card catalog file (YAML or JSON); default is the embedded catalog")
	snapshotCmd.Flags().StringVar(&snapRedis, "redis", "", "Redis address or URL for the battle log cache")
	snapshotCmd.Flags().Int64SliceVar(&snapModes, "mode", nil, "ranked game mode ids (default ladder and ranked 1v1)")
	snapshotCmd.MarkFlagsMutuallyExclusive("record", "replay")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	runID := uuid.NewString()
	runLog := log.With(zap.String("run_id", runID))

	topN := cfg.ETL.TopN
	if snapTopN != 0 {
		topN = snapTopN
	}
	modes := cfg.ETL.RankedModes
	if len(snapModes) > 0 {
		modes = snapModes
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	overrides, err := db.LoadOverrides(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	runLog.Info("starting snapshot",
		zap.Int("top_n", topN),
		zap.Int("overrides", len(overrides)),
		zap.Int("catalog_cards", catalog.Len()),
		zap.String("dialect", db.Dialect().String()),
	)

	src, recorder, cleanup, err := buildSource(cmd, runID, runLog)
	if err != nil {
		return err
	}
	defer cleanup()

	classifier := archetype.NewClassifier(catalog, overrides)
	pipeline := etl.New(src, src, catalog, classifier, etl.Options{TopN: topN, RankedModes: modes}, runLog)
	res, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if recorder != nil {
		if err := archive.Save(snapRecord, recorder.Capture()); err != nil {
			return fmt.Errorf("save capture: %w", err)
		}
		runLog.Info("capture saved", zap.String("path", snapRecord))
	}

	snap := snapshot.Assemble(res.Players, res.Aggregator)
	if err := commitSnapshot(ctx, cmd.OutOrStdout(), db, runID, res.Stats, snap, snapDryRun, runLog); err != nil {
		return err
	}
	if !snapDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "\nSnapshot written to %s\n", cfg.Database)
	}
	return nil
}

// commitSnapshot prints the run summary, then validates snap and replaces the
// stored snapshot with it. An invalid snapshot is never written.
func commitSnapshot(ctx context.Context, w io.Writer, db *storage.DB, runID string, stats etl.Stats, snap *snapshot.Snapshot, dryRun bool, runLog *zap.Logger) error {
	report.PrintRunSummary(w, runID, stats)
	if err := snap.Validate(); err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintln(w, "\n(dry run, nothing written)")
		return nil
	}
	if err := db.ReplaceSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	runLog.Info("snapshot written", zap.Any("rows", snap.Counts()))
	return nil
}

func loadCatalog() (*cards.Catalog, error) {
	path := cfg.ETL.CardsFile
	if snapCards != "" {
		path = snapCards
	}
	if path == "" {
		return cards.Default(), nil
	}
	c, err := cards.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load card catalog: %w", err)
	}
	return c, nil
}

// buildSource assembles the source chain. The recorder, when requested,
// sits outermost so the capture holds exactly what the pipeline saw.
func buildSource(cmd *cobra.Command, runID string, runLog *zap.Logger) (source, *archive.Recorder, func(), error) {
	cleanup := func() {}
	if snapReplay != "" {
		c, err := archive.Load(snapReplay)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load capture: %w", err)
		}
		runLog.Info("replaying capture", zap.String("path", snapReplay), zap.String("recorded_run", c.RunID))
		return archive.NewReplay(c), nil, cleanup, nil
	}

	if cfg.API.Token == "" {
		return nil, nil, nil, errors.New("no API token: set CR_API_TOKEN or api.token in the config file")
	}
	client := clashapi.NewClient(cfg.API.Token, clashapi.Options{
		BaseURL:           cfg.API.BaseURL,
		RankingPath:       cfg.API.RankingPath,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Log:               runLog,
	})

	var src source = client
	addr := cfg.Redis.Addr
	if snapRedis != "" {
		addr = snapRedis
	}
	if addr != "" {
		rdb, err := cache.NewRedisClient(cmd.Context(), addr)
		if err != nil {
			runLog.Warn("battle log cache disabled", zap.Error(err))
		} else {
			bc := cache.New(client, rdb, cfg.Redis.TTL(), runLog)
			src = cachedSource{RankingSource: client, BattleLogSource: bc}
			cleanup = func() {
				runLog.Info("battle log cache", zap.Int("hits", bc.Hits), zap.Int("misses", bc.Misses))
				_ = rdb.Close()
			}
		}
	}

	if snapRecord != "" {
		rec := archive.NewRecorder(src, runID)
		return rec, rec, cleanup, nil
	}
	return src, nil, cleanup, nil
}

// cachedSource pairs the live ranking with a cached battle log source.
type cachedSource struct {
	etl.RankingSource
	etl.BattleLogSource
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return nil
}
