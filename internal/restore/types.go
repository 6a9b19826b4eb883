package restore

import (
	"time"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// SourceArchive is the only restore origin the orchestrator accepts.
const SourceArchive = "archive"

// Severity grades a validation result.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Validator ids reported in ValidationResult.Validator.
const (
	ValidatorSource       = "source"
	ValidatorTargetID     = "target-id"
	ValidatorArchivedData = "archived-data"
	ValidatorExisting     = "existing-asset"
	ValidatorDependencies = "dependencies"
	ValidatorSummary      = "summary"
)

// ValidationResult is one pre-deploy check outcome.
type ValidationResult struct {
	Validator string         `json:"validator"`
	Passed    bool           `json:"passed"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
}

// HasErrors reports whether any result failed with error severity.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if !r.Passed && r.Severity == SeverityError {
			return true
		}
	}
	return false
}

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus string

const (
	StatusPending    DeploymentStatus = "pending"
	StatusValidating DeploymentStatus = "validating"
	StatusDeploying  DeploymentStatus = "deploying"
	StatusCompleted  DeploymentStatus = "completed"
	StatusFailed     DeploymentStatus = "failed"
	StatusRolledBack DeploymentStatus = "rolled_back"
	StatusSkipped    DeploymentStatus = "skipped"
)

// Terminal reports whether no further transitions happen from s.
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRolledBack, StatusSkipped:
		return true
	}
	return false
}

// Stage names the pipeline step a deployment failed in.
type Stage string

const (
	StageValidating     Stage = "validating"
	StageBackupExisting Stage = "backup-existing"
	StageDeleting       Stage = "deleting"
	StageCreating       Stage = "creating"
	StagePostProcessing Stage = "post-processing"
	StageArchivalBackup Stage = "archival-backup"
)

// DeployConfig controls one restore.
type DeployConfig struct {
	Source         string `json:"source,omitempty" yaml:"source,omitempty"`
	TargetID       string `json:"targetId,omitempty" yaml:"targetId,omitempty"`
	Overwrite      bool   `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	SkipIfExists   bool   `json:"skipIfExists,omitempty" yaml:"skipIfExists,omitempty"`
	BackupExisting bool   `json:"backupExisting,omitempty" yaml:"backupExisting,omitempty"`
	ValidateOnly   bool   `json:"validateOnly,omitempty" yaml:"validateOnly,omitempty"`
	DryRun         bool   `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
	NameOverride   string `json:"nameOverride,omitempty" yaml:"nameOverride,omitempty"`

	IncludePermissions       bool `json:"includePermissions" yaml:"includePermissions"`
	IncludeTags              bool `json:"includeTags" yaml:"includeTags"`
	RestoreRefreshSchedules  bool `json:"restoreRefreshSchedules" yaml:"restoreRefreshSchedules"`
	RestoreFolderMemberships bool `json:"restoreFolderMemberships" yaml:"restoreFolderMemberships"`
	RestoreGroupMembers      bool `json:"restoreGroupMembers" yaml:"restoreGroupMembers"`
}

// DefaultConfig restores from the archive with every optional component.
func DefaultConfig() DeployConfig {
	return DeployConfig{
		Source:                   SourceArchive,
		IncludePermissions:       true,
		IncludeTags:              true,
		RestoreRefreshSchedules:  true,
		RestoreFolderMemberships: true,
		RestoreGroupMembers:      true,
	}
}

// source returns the configured origin; an unset origin means the archive.
func (c DeployConfig) source() string {
	if c.Source == "" {
		return SourceArchive
	}
	return c.Source
}

// target returns the id the asset is restored under.
func (c DeployConfig) target(sourceID string) string {
	if c.TargetID == "" {
		return sourceID
	}
	return c.TargetID
}

// DeploymentResult is the complete record of one restore. It is created when
// the restore starts and written once more when it reaches a terminal state.
type DeploymentResult struct {
	DeploymentID      string             `json:"deploymentId"`
	Kind              asset.Kind         `json:"kind"`
	SourceID          string             `json:"sourceId"`
	TargetID          string             `json:"targetId"`
	Status            DeploymentStatus   `json:"status"`
	Success           bool               `json:"success"`
	StartedAt         time.Time          `json:"startedAt"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	Duration          time.Duration      `json:"durationNs"`
	TargetArn         string             `json:"targetArn,omitempty"`
	BackupPath        string             `json:"backupPath,omitempty"`
	ArchiveBackupPath string             `json:"archiveBackupPath,omitempty"`
	Transformations   []string           `json:"transformations,omitempty"`
	ValidationResults []ValidationResult `json:"validationResults,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	FailedStage       Stage              `json:"failedStage,omitempty"`
	Error             string             `json:"error,omitempty"`
	ErrorCode         string             `json:"errorCode,omitempty"`
	DryRun            bool               `json:"dryRun,omitempty"`
}

// RestoreOutput is what a strategy reports after creating an asset.
type RestoreOutput struct {
	platform.CreateResult
	Payload  platform.Payload `json:"-"`
	Warnings []string         `json:"warnings,omitempty"`
}
