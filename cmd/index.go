package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/id/uuid"
	"github.com/JakeFAU/nga-crawler/internal/index"
	"github.com/JakeFAU/nga-crawler/internal/progress"
	"github.com/JakeFAU/nga-crawler/internal/progress/sinks"
	"github.com/JakeFAU/nga-crawler/internal/query"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build, refresh and query the board index",
	}
	cmd.AddCommand(newIndexBuildCmd())
	cmd.AddCommand(newIndexDeepenCmd())
	cmd.AddCommand(newIndexQueryCmd())
	cmd.AddCommand(newIndexStructureCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	var (
		landingURL  string
		htmlPath    string
		baseURL     string
		maxSections int
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the board index from the landing page or a saved copy of it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			logger := appInstance.Logger()
			if !cmd.Flags().Changed("max-sections") {
				maxSections = cfg.Index.MaxSections
			}

			src := index.LandingSource{URL: landingURL}
			if htmlPath != "" {
				html, err := os.ReadFile(htmlPath)
				switch {
				case errors.Is(err, fs.ErrNotExist):
					logger.Warn("saved landing page not found, building online", zap.String("path", htmlPath))
				case err != nil:
					return fmt.Errorf("read landing page: %w", err)
				default:
					src.HTML = html
					src.BaseURL = baseURL
					if src.BaseURL == "" {
						src.BaseURL = cfg.Index.LandingURL
					}
				}
			}

			runID, err := uuid.New().NewID()
			if err != nil {
				return err
			}
			hub := newCLIHub(cmd.ErrOrStderr(), logger)
			w := appInstance.NewWorker(nil, nil, hub, logger.Named("worker"))
			res, buildErr := w.BuildFrom(cmd.Context(), runID, src, maxSections)
			closeHub(hub, logger)
			if buildErr != nil {
				return buildErr
			}
			writeBuildSummary(cmd.OutOrStdout(), res.Path, res.Index)
			if res.ArchiveURI != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "归档: %s\n", res.ArchiveURI)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&landingURL, "url", "", "landing page to read sections from (default from config)")
	cmd.Flags().StringVar(&htmlPath, "html", "", "saved landing page to parse instead of fetching it")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL for relative links in --html (default the landing URL)")
	cmd.Flags().IntVar(&maxSections, "max-sections", 0, "cap on sections indexed; 0 means all")
	return cmd
}

// newIndexDeepenCmd refreshes the child forums of an existing index without
// re-reading the landing page.
func newIndexDeepenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deepen",
		Short: "Re-fetch the child forums of every board in the saved index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()
			ctx := cmd.Context()

			current, err := appInstance.Store().Load(ctx)
			if err != nil {
				return fmt.Errorf("load index: %w", err)
			}
			runID, err := uuid.New().NewRawID()
			if err != nil {
				return err
			}
			hub := newCLIHub(cmd.ErrOrStderr(), logger)
			emit := func(evt progress.Event) {
				evt.JobID = progress.UUIDToBytes(runID)
				evt.TS = appInstance.Clock().Now().UTC()
				hub.Emit(evt)
			}
			started := time.Now()
			emit(progress.Event{Stage: progress.StageBuildStart})
			deep, err := appInstance.Builder().Deepen(ctx, current.Boards, func(p index.Progress) {
				emit(progress.Event{
					Stage:   progress.StageSectionDone,
					Done:    p.Done,
					Total:   p.Total,
					Elapsed: p.Elapsed,
					ETA:     p.ETA,
					HasETA:  p.HasETA,
				})
			})
			if err != nil {
				emit(progress.Event{Stage: progress.StageBuildError, Dur: time.Since(started), Note: err.Error()})
				closeHub(hub, logger)
				return fmt.Errorf("deepen index: %w", err)
			}
			path, err := appInstance.Store().Save(ctx, deep)
			if err != nil {
				emit(progress.Event{Stage: progress.StageBuildError, Dur: time.Since(started), Note: err.Error()})
				closeHub(hub, logger)
				return fmt.Errorf("save index: %w", err)
			}
			emit(progress.Event{Stage: progress.StageBuildDone, Boards: len(deep.Boards), Dur: time.Since(started)})
			closeHub(hub, logger)
			writeBuildSummary(cmd.OutOrStdout(), path, deep)
			return nil
		},
	}
}

func newIndexQueryCmd() *cobra.Command {
	var (
		topK   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query <name>",
		Short: "Find boards by category or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res := appInstance.Engine().Query(cmd.Context(), args[0], topK)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				writeQueryResult(cmd.OutOrStdout(), res)
			}
			if !res.Success {
				return fmt.Errorf("query failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "topk", query.DefaultTopK, "fuzzy matches to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

func newIndexStructureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "structure",
		Short: "Print the index grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res := appInstance.Engine().Structure(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("structure failed: %s", res.Error)
			}
			return nil
		},
	}
}

// newCLIHub draws the deep-phase bar on out and logs stage transitions.
func newCLIHub(out io.Writer, logger *zap.Logger) *progress.Hub {
	return progress.NewHub(
		progress.Config{MaxBatchWait: 100 * time.Millisecond, Logger: logger.Named("progress")},
		sinks.NewBarSink(out),
		sinks.NewLogSink(logger.Named("progress_log")),
	)
}

func closeHub(hub *progress.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
}
