package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docindex/internal/config"
)

// StaleEnqueuer queues reindex jobs for documents chunked with outdated settings.
type StaleEnqueuer interface {
	EnqueueStale(ctx context.Context) ([]string, error)
}

// ReindexStaleCmd returns the reindex-stale command
func ReindexStaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex-stale",
		Short: "Queue reindex jobs for stale documents",
		Long: `Queue a reindex job for every indexed document whose chunking version,
max chars or overlap differ from the current configuration. Documents with
an active job are skipped. The worker of a running server picks the jobs up.`,
		Args: cobra.NoArgs,
		RunE: runReindexStale,
	}

	cmd.Flags().Bool("json", false, "Print queued document ids as JSON")

	return cmd
}

func runReindexStale(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	asJSON, _ := cmd.Flags().GetBool("json")
	return reindexStale(ctx, a.documents, cmd.OutOrStdout(), asJSON)
}

func reindexStale(ctx context.Context, svc StaleEnqueuer, out io.Writer, asJSON bool) error {
	ids, err := svc.EnqueueStale(ctx)
	if err != nil {
		if len(ids) > 0 {
			fmt.Fprintf(out, "queued %d documents before failing\n", len(ids))
		}
		return fmt.Errorf("failed to enqueue stale documents: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"queued": ids,
			"count":  len(ids),
		})
	}

	if len(ids) == 0 {
		fmt.Fprintln(out, "no stale documents")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	fmt.Fprintf(out, "queued %d documents\n", len(ids))
	return nil
}
