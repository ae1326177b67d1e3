package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fireflyiii/pkg/firefly"
)

// snapshotSource is one listing included in a snapshot.
type snapshotSource struct {
	key  string
	list func(ctx context.Context) (firefly.Value, error)
}

// takeSnapshot fetches every source concurrently. The first failure cancels
// the rest.
func takeSnapshot(ctx context.Context, sources []snapshotSource) (firefly.Value, error) {
	results := make([]firefly.Value, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			v, err := src.list(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", src.key, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return firefly.Null(), err
	}

	out := make(map[string]firefly.Value, len(sources))
	for i, src := range sources {
		out[src.key] = results[i]
	}
	return firefly.Object(out), nil
}

func newSnapshotCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Dump accounts, currencies and transactions in one document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := takeSnapshot(cmd.Context(), []snapshotSource{
				{"accounts", a.client.ListAccounts},
				{"currencies", a.client.ListCurrencies},
				{"transactions", a.client.ListTransactions},
			})
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			if format == "" {
				format = a.output
			}
			return render(cmd.OutOrStdout(), v, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (defaults to --output)")
	return cmd
}
