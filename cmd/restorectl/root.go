package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetkeeper/internal/application"
	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
)

// Exit codes.
const (
	exitSuccess  = 0 // command completed
	exitFindings = 1 // completed, but a restore failed or validation found errors
	exitError    = 2 // command could not run
)

// errFindings marks a command that ran to completion with failures the caller
// must act on. The details are already printed.
var errFindings = errors.New("completed with failures")

// reportError prints a command error and, for known failures, the code and
// next step. Findings were already printed by the command.
func reportError(w io.Writer, err error) {
	if err == nil || errors.Is(err, errFindings) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
	if restore.IsUserFacing(err) {
		fmt.Fprintln(w, "Hint:", restore.FormatUserError(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errFindings):
		return exitFindings
	default:
		return exitError
	}
}

// appLoader builds the application for one command invocation.
type appLoader func(ctx context.Context, logLevel string) (*application.App, error)

type cli struct {
	load     appLoader
	jsonOut  bool
	logLevel string
}

func newRootCmd(load appLoader) *cobra.Command {
	c := &cli{load: load}

	root := &cobra.Command{
		Use:   "restorectl",
		Short: "Validate and restore archived BI assets",
		Long: `restorectl restores datasources, datasets, analyses and dashboards
from the archive into the platform account configured in the environment
(AWS_REGION, AWS_ACCOUNT_ID, OBJECT_STORE_BUCKET, DATABASE_URL and so on).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print machine-readable JSON")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		c.kindsCmd(),
		c.validateCmd(),
		c.deployCmd(),
		c.batchCmd(),
		c.historyCmd(),
		c.inspectCmd(),
		c.cacheCmd(),
	)
	return root
}

// withApp loads the application, runs fn and releases it.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *application.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := c.load(ctx, c.logLevel)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Close()
	return fn(ctx, app)
}

// =============================================================================
// kinds
// =============================================================================

func (c *cli) kindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List restorable asset kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(_ context.Context, app *application.App) error {
				kinds := app.Coordinator.Kinds()
				return c.output(cmd, kinds, func(p *printer) { p.kinds(kinds) })
			})
		},
	}
}

func parseKindArg(s string) (asset.Kind, error) {
	kind, err := asset.ParseKind(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", deploy.ErrInvalidRequest, err)
	}
	return kind, nil
}
