// Package restore recreates archived BI assets on the platform.
//
// A restore runs as a sequential pipeline:
//
//	Validating -> BackupExisting -> Deleting -> Creating ->
//	PostProcessing -> ArchivalBackup -> Completed
//
// A failure in any stage up to and including Creating ends the deployment as
// failed and records the stage. Post-processing (refresh schedules, folder
// and group memberships, activation, cache update) and the archival backup
// are best effort: their failures are reported as warnings and never change
// the outcome of a deployment whose asset was created.
//
// Per-kind behaviour lives in Strategy implementations obtained from a
// Factory. Kinds without a strategy resolve to one that reports the restore
// as not implemented.
//
// Every call to Orchestrator.Deploy returns a complete DeploymentResult and
// writes it to the HistoryStore twice: once when the deployment starts and
// once when it reaches a terminal status.
package restore
