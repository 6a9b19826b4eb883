package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetkeeper/internal/application"
	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
)

// restoreFlags are the deploy options shared by validate and deploy.
type restoreFlags struct {
	targetID       string
	name           string
	overwrite      bool
	skipIfExists   bool
	backupExisting bool
	dryRun         bool
	validateOnly   bool
	archiveFile    string

	noPermissions bool
	noTags        bool
	noSchedules   bool
	noFolders     bool
	noGroups      bool
}

func (f *restoreFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.targetID, "target-id", "", "restore under a different asset ID")
	fs.StringVar(&f.name, "name", "", "override the restored asset's display name")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace the asset if it already exists")
	fs.BoolVar(&f.skipIfExists, "skip-if-exists", false, "succeed without changes if the asset exists")
	fs.BoolVar(&f.backupExisting, "backup-existing", false, "snapshot the existing asset before replacing it")
	fs.BoolVar(&f.dryRun, "dry-run", false, "run validation and transforms without calling the platform")
	fs.BoolVar(&f.validateOnly, "validate-only", false, "stop after validation")
	fs.StringVar(&f.archiveFile, "archive", "", "read the archived document from a file instead of the object store")

	fs.BoolVar(&f.noPermissions, "no-permissions", false, "skip restoring permissions")
	fs.BoolVar(&f.noTags, "no-tags", false, "skip restoring tags")
	fs.BoolVar(&f.noSchedules, "no-refresh-schedules", false, "skip restoring dataset refresh schedules")
	fs.BoolVar(&f.noFolders, "no-folder-memberships", false, "skip restoring folder memberships")
	fs.BoolVar(&f.noGroups, "no-group-members", false, "skip restoring group members")
}

func (f *restoreFlags) config() restore.DeployConfig {
	cfg := restore.DefaultConfig()
	cfg.TargetID = f.targetID
	cfg.NameOverride = f.name
	cfg.Overwrite = f.overwrite
	cfg.SkipIfExists = f.skipIfExists
	cfg.BackupExisting = f.backupExisting
	cfg.DryRun = f.dryRun
	cfg.ValidateOnly = f.validateOnly
	cfg.IncludePermissions = !f.noPermissions
	cfg.IncludeTags = !f.noTags
	cfg.RestoreRefreshSchedules = !f.noSchedules
	cfg.RestoreFolderMemberships = !f.noFolders
	cfg.RestoreGroupMembers = !f.noGroups
	return cfg
}

// request builds the coordinator request from positional args and flags.
func (f *restoreFlags) request(app *application.App, args []string) (deploy.Request, error) {
	kind, err := parseKindArg(args[0])
	if err != nil {
		return deploy.Request{}, err
	}
	req := deploy.Request{Kind: kind, ID: args[1], Config: f.config()}

	if f.archiveFile != "" {
		archived, err := readArchiveFile(f.archiveFile, app.Config.Restore.MaxArchiveSize)
		if err != nil {
			return deploy.Request{}, err
		}
		req.Archived = archived
	}
	return req, nil
}

func readArchiveFile(path string, limit int64) (*asset.ExportData, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	raw, err := readLimited(fh, limit, "archive")
	if err != nil {
		return nil, err
	}
	data, err := asset.DecodeExportData(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deploy.ErrInvalidRequest, err)
	}
	return data, nil
}

// =============================================================================
// validate
// =============================================================================

func (c *cli) validateCmd() *cobra.Command {
	var flags restoreFlags
	cmd := &cobra.Command{
		Use:   "validate KIND ID",
		Short: "Run the pre-deploy checks for an archived asset",
		Example: `  restorectl validate dataset ds-orders
  restorectl validate dashboard sales --target-id sales-copy --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application.App) error {
				req, err := flags.request(app, args)
				if err != nil {
					return err
				}
				results, err := app.Coordinator.Validate(ctx, req)
				if err != nil {
					return err
				}
				valid := !restore.HasErrors(results)
				body := struct {
					Valid   bool                       `json:"valid"`
					Results []restore.ValidationResult `json:"results"`
				}{valid, results}
				if err := c.output(cmd, body, func(p *printer) { p.validation(results) }); err != nil {
					return err
				}
				if !valid {
					return errFindings
				}
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// =============================================================================
// deploy
// =============================================================================

func (c *cli) deployCmd() *cobra.Command {
	var flags restoreFlags
	cmd := &cobra.Command{
		Use:   "deploy KIND ID",
		Short: "Restore an archived asset into the platform",
		Example: `  restorectl deploy datasource athena-prod
  restorectl deploy analysis q3-review --overwrite --backup-existing
  restorectl deploy dataset ds-orders --dry-run --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application.App) error {
				req, err := flags.request(app, args)
				if err != nil {
					return err
				}
				result, err := app.Coordinator.Deploy(ctx, req)
				if err != nil {
					return err
				}
				if err := c.output(cmd, result, func(p *printer) { p.deployment(result) }); err != nil {
					return err
				}
				if result.Status == restore.StatusFailed {
					return errFindings
				}
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// =============================================================================
// batch
// =============================================================================

func (c *cli) batchCmd() *cobra.Command {
	var maxParallel int
	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Restore every asset listed in a YAML or JSON manifest",
		Long: `Restore every asset listed in a manifest. Pass - to read the manifest
from stdin.

  concurrent: false
  stopOnError: true
  defaults:
    overwrite: true
  items:
    - kind: datasource
      id: athena-prod
    - kind: dataset
      id: ds-orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *application.App) error {
				m, err := readManifest(cmd, args[0], app.Config.Restore.MaxManifestSize)
				if err != nil {
					return err
				}
				if maxParallel > 0 {
					m.MaxParallel = maxParallel
					if err := m.Validate(); err != nil {
						return err
					}
				}

				result := app.Coordinator.DeployBatch(ctx, m)
				if err := c.output(cmd, result, func(p *printer) { p.batch(result) }); err != nil {
					return err
				}
				if !result.Success() {
					return errFindings
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "override the manifest's maxParallel")
	return cmd
}

func readManifest(cmd *cobra.Command, path string, limit int64) (deploy.Manifest, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		fh, err := os.Open(path)
		if err != nil {
			return deploy.Manifest{}, err
		}
		defer fh.Close()
		r = fh
	}

	raw, err := readLimited(r, limit, "manifest")
	if err != nil {
		return deploy.Manifest{}, err
	}
	return deploy.LoadManifest(bytes.NewReader(raw))
}
