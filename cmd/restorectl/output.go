package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetkeeper/internal/admin"
	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/deploy"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
)

// output writes v as indented JSON with --json, otherwise renders text.
func (c *cli) output(cmd *cobra.Command, v any, text func(p *printer)) error {
	out := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	p := &printer{tw: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	text(p)
	return p.tw.Flush()
}

// printer renders aligned text tables.
type printer struct {
	tw *tabwriter.Writer
}

func (p *printer) row(cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(p.tw, strings.Join(parts, "\t"))
}

func (p *printer) kinds(kinds []asset.Kind) {
	p.row("KIND", "PLURAL", "COLLECTION")
	for _, k := range kinds {
		p.row(k, k.Plural(), yesNo(k.IsCollection()))
	}
}

func (p *printer) validation(results []restore.ValidationResult) {
	p.row("CHECK", "RESULT", "SEVERITY", "MESSAGE")
	for _, r := range results {
		result := "pass"
		if !r.Passed {
			result = "FAIL"
		}
		p.row(r.Validator, result, r.Severity, r.Message)
	}
}

func (p *printer) deployment(r restore.DeploymentResult) {
	p.row("Deployment:", r.DeploymentID)
	p.row("Kind:", r.Kind)
	p.row("Source:", r.SourceID)
	p.row("Target:", r.TargetID)
	p.row("Status:", r.Status)
	if r.DryRun {
		p.row("Dry run:", "yes")
	}
	p.row("Started:", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		p.row("Duration:", r.Duration.Round(time.Millisecond))
	}
	if r.TargetArn != "" {
		p.row("ARN:", r.TargetArn)
	}
	if r.BackupPath != "" {
		p.row("Backup:", r.BackupPath)
	}
	if r.ArchiveBackupPath != "" {
		p.row("Archive backup:", r.ArchiveBackupPath)
	}
	for _, t := range r.Transformations {
		p.row("Transformed:", t)
	}
	for _, w := range r.Warnings {
		p.row("Warning:", w)
	}
	if r.Error != "" {
		p.row("Failed stage:", r.FailedStage)
		p.row("Error:", fmt.Sprintf("[%s] %s", r.ErrorCode, r.Error))
		if failure := errors.New(r.Error); restore.IsUserFacing(failure) {
			p.row("Next step:", restore.NewUserError(failure).Action)
		}
	}
}

func (p *printer) deployments(results []restore.DeploymentResult) {
	p.row("DEPLOYMENT", "KIND", "SOURCE", "TARGET", "STATUS", "STARTED", "ERROR")
	for _, r := range results {
		p.row(r.DeploymentID, r.Kind, r.SourceID, r.TargetID, r.Status,
			r.StartedAt.Format(time.RFC3339), dash(r.ErrorCode))
	}
}

func (p *printer) batch(b deploy.BatchResult) {
	p.deployments(b.Results)
	p.row("")
	p.row(fmt.Sprintf("%s batch: %d succeeded, %d failed, %d skipped in %s",
		b.Mode, b.Succeeded, b.Failed, b.Skipped, b.Duration.Round(time.Millisecond)))
}

func (p *printer) parsed(kind asset.Kind, id string, info parser.ParsedAssetInfo) {
	caps := asset.CapabilitiesFor(kind)
	p.row("Asset:", fmt.Sprintf("%s %s", kind, id))
	if caps.Sheets {
		p.row("Sheets:", len(info.Sheets))
		for _, s := range info.Sheets {
			p.row("", fmt.Sprintf("%s (%d visuals)", s.Name, s.VisualCount))
		}
	}
	if caps.Visuals {
		p.row("Visuals:", len(info.Visuals))
	}
	if caps.Fields {
		p.row("Fields:", len(info.Fields))
	}
	if caps.CalculatedFields {
		p.row("Calculated fields:", len(info.CalculatedFields))
	}
	if caps.Parameters {
		p.row("Parameters:", len(info.Parameters))
	}
	if caps.Filters {
		p.row("Filters:", len(info.Filters))
	}
	if caps.Datasets {
		p.row("Datasets:", len(info.Datasets))
	}
	if caps.Lineage {
		p.row("Upstream datasets:", dash(strings.Join(info.Lineage.DatasetIDs, ", ")))
		p.row("Upstream datasources:", dash(strings.Join(info.Lineage.DatasourceIDs, ", ")))
	}
	if caps.ConnectionInfo && info.Connection != nil {
		conn := info.Connection
		p.row("Connection:", dash(conn.Type))
		if conn.Host != "" {
			p.row("Host:", fmt.Sprintf("%s:%d", conn.Host, conn.Port))
		}
		if conn.Database != "" {
			p.row("Database:", conn.Database)
		}
	}
}

func (p *printer) rebuild(r admin.RebuildReport) {
	p.row("KIND", "RESULT")
	for _, k := range r.Rebuilt {
		p.row(k, "rebuilt")
	}
	for _, k := range r.Empty {
		p.row(k, "no collection file")
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// readLimited reads at most limit bytes from r. limit <= 0 reads everything.
func readLimited(r io.Reader, limit int64, what string) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", what, limit)
	}
	return raw, nil
}
