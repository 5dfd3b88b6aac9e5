package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"

	"github.com/vietddude/syncwatch/internal/control"
	"github.com/vietddude/syncwatch/internal/core/config"
	"github.com/vietddude/syncwatch/internal/indexing/health"
	"github.com/vietddude/syncwatch/internal/indexing/reconcile"
)

var (
	statusWatch     bool
	statusInterval  time.Duration
	statusThreshold float64
	statusFastURL   string
	statusDownURL   string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status of all configured chains",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "refresh until interrupted")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 5*time.Second, "refresh interval: 1s, 5s, 10s, 15s, 30s or 1m")
	statusCmd.Flags().Float64Var(&statusThreshold, "threshold", 0.001, "per-edge threshold percent")
	statusCmd.Flags().StringVar(&statusFastURL, "fast-url", "", "override the fast indexer GraphQL URL")
	statusCmd.Flags().StringVar(&statusDownURL, "downstream-url", "", "override the downstream indexer GraphQL URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if err := config.ValidatePollInterval(statusInterval); err != nil {
		slog.Error("Invalid interval", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateThreshold(statusThreshold); err != nil {
		slog.Error("Invalid threshold", "error", err)
		os.Exit(1)
	}

	pool := pond.NewPool(cfg.Sources.RPC.Concurrency)
	defer pool.StopAndWait()
	collector := control.BuildCollector(cfg, pool, slog.Default())
	defer collector.Close()

	monitor := health.NewMonitor(collector, control.Endpoints(cfg), control.Thresholds(cfg), slog.Default())
	opts := health.PollOptions{
		FastURL:       statusFastURL,
		DownstreamURL: statusDownURL,
		Threshold:     &statusThreshold,
	}
	names := reconcile.SourceNames{
		Authoritative: cfg.Sources.RPC.Name,
		Fast:          cfg.Sources.Fast.Name,
		Downstream:    cfg.Sources.Downstream.Name,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for {
		pollCtx, pollCancel := context.WithTimeout(ctx, statusInterval+cfg.Sources.Fast.Timeout)
		report, err := monitor.Poll(pollCtx, opts)
		pollCancel()

		if statusWatch {
			// Clear screen and home the cursor
			fmt.Fprint(os.Stdout, "\033[H\033[2J")
		}
		if err != nil {
			slog.Error("Failed to fetch block data", "error", err)
			if !statusWatch {
				os.Exit(1)
			}
		} else {
			renderDashboard(os.Stdout, report, names)
		}

		if !statusWatch {
			return
		}
		fmt.Fprintf(os.Stdout, "\nRefreshing every %s (Ctrl+C to quit)\n", statusInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(statusInterval):
		}
	}
}

func renderDashboard(out io.Writer, r *health.Report, names reconcile.SourceNames) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "CHAIN\tID\t%s\t%s\t%s\tEVENTS\t%s → %s\t%s → %s\t%s → %s\tBEHIND\tSTATUS\n",
		names.Authoritative, names.Fast, names.Downstream,
		names.Fast, names.Authoritative,
		names.Downstream, names.Fast,
		names.Downstream, names.Authoritative,
	)

	healthyChains := 0
	for _, id := range r.Order {
		ch := r.Chains[id]
		if ch.Healthy {
			healthyChains++
		}
		events := "-"
		if ch.EventsProcessed != nil {
			events = fmt.Sprintf("%d", *ch.EventsProcessed)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			ch.Name, ch.ChainID,
			heightCell(ch.Authoritative), heightCell(ch.FastIndexer), heightCell(ch.Downstream),
			events,
			reconcile.FormatPercentage(ch.Sync.FastVsAuthoritative),
			reconcile.FormatPercentage(ch.Sync.DownstreamVsFast),
			reconcile.FormatPercentage(ch.Sync.DownstreamVsAuthoritative),
			ch.BlocksBehind.DownstreamVsAuthoritative,
			ch.Status,
		)
	}
	_ = w.Flush()

	overall := "unhealthy"
	if r.System.Healthy {
		overall = "healthy"
	}
	_, _ = fmt.Fprintf(out, "\nOverall: %s (%s of edges in sync, %d/%d chains healthy, threshold %g%%)\n",
		overall,
		reconcile.FormatPercentage(r.System.Percent),
		healthyChains, len(r.Order),
		r.ThresholdPercent,
	)
	_, _ = fmt.Fprintf(out, "Last updated: %s\n", r.UpdatedAt.Format(time.RFC3339))
}

func heightCell(h health.HeightReport) string {
	if !h.Available {
		return "n/a"
	}
	return fmt.Sprintf("%d", h.Height)
}
