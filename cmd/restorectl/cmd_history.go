package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetkeeper/internal/application"
	"github.com/JonMunkholm/assetkeeper/internal/asset"
)

// =============================================================================
// history
// =============================================================================

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [DEPLOYMENT_ID]",
		Short: "Show recorded deployments, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application.App) error {
				if len(args) == 1 {
					result, err := app.Coordinator.History(ctx, args[0])
					if err != nil {
						return err
					}
					return c.output(cmd, result, func(p *printer) { p.deployment(result) })
				}

				results, err := app.Coordinator.ListHistory(ctx, limit)
				if err != nil {
					return err
				}
				return c.output(cmd, results, func(p *printer) { p.deployments(results) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum deployments to list (0 for all)")
	return cmd
}

// =============================================================================
// inspect
// =============================================================================

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect KIND ID",
		Short: "Parse an archived definition and summarize its structure",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, app *application.App) error {
				info, err := app.Coordinator.Inspect(ctx, kind, args[1])
				if err != nil {
					return err
				}
				return c.output(cmd, info, func(p *printer) { p.parsed(kind, args[1], info) })
			})
		},
	}
}

// =============================================================================
// cache
// =============================================================================

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the asset listing cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild [KIND...]",
		Short: "Rebuild the cache from the active collection files",
		Long: `Rebuild the asset listing cache from the active collection files in
the object store. With no arguments every kind is rebuilt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, app *application.App) error {
				report, err := app.Maintenance.RebuildAll(ctx, kinds...)
				if err != nil {
					return err
				}
				return c.output(cmd, report, func(p *printer) { p.rebuild(report) })
			})
		},
	})
	return cmd
}

// parseKinds parses kind arguments, dropping duplicates.
func parseKinds(args []string) ([]asset.Kind, error) {
	kinds := make([]asset.Kind, 0, len(args))
	for _, a := range args {
		k, err := parseKindArg(a)
		if err != nil {
			return nil, fmt.Errorf("cache rebuild: %w", err)
		}
		kinds = append(kinds, k)
	}
	return lo.Uniq(kinds), nil
}
