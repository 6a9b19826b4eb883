package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/parser"
	"github.com/JonMunkholm/assetkeeper/internal/platform"
)

// sideEffect is one independent post-create operation.
type sideEffect struct {
	effect string
	label  string
	run    func(ctx context.Context) error
}

// memberTypes maps the resource segment of a member ARN to the folder
// membership type.
var memberTypes = map[string]string{
	"dashboard":  "DASHBOARD",
	"analysis":   "ANALYSIS",
	"dataset":    "DATASET",
	"datasource": "DATASOURCE",
	"topic":      "TOPIC",
}

// runSideEffects attempts every post-create operation for the restored asset.
// Each runs regardless of the others; failures become warnings.
func (o *Orchestrator) runSideEffects(ctx context.Context, kind asset.Kind, targetID string, working *asset.ExportData, cfg DeployConfig) []string {
	effects := o.sideEffects(kind, targetID, working, cfg)
	if len(effects) == 0 {
		return nil
	}

	log := logging.WithFields(ctx, "kind", kind, "asset_id", targetID)
	var warnings []string
	for _, e := range effects {
		if err := e.run(ctx); err != nil {
			log.Warn("post-restore step failed", "effect", e.effect, "item", e.label, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s %s failed: %s", e.effect, e.label, ClassifyError(err)))
			sideEffectsTotal.WithLabelValues(string(kind), e.effect, "failed").Inc()
			continue
		}
		sideEffectsTotal.WithLabelValues(string(kind), e.effect, "ok").Inc()
	}
	return warnings
}

func (o *Orchestrator) sideEffects(kind asset.Kind, targetID string, working *asset.ExportData, cfg DeployConfig) []sideEffect {
	var effects []sideEffect
	if kind == asset.KindDataset && cfg.RestoreRefreshSchedules {
		effects = append(effects, o.refreshEffects(targetID, working)...)
	}
	if cfg.RestoreFolderMemberships {
		if kind == asset.KindFolder {
			effects = append(effects, o.folderMemberEffects(targetID, working)...)
		} else {
			effects = append(effects, o.membershipEffects(kind, targetID, working)...)
		}
	}
	if kind == asset.KindGroup && cfg.RestoreGroupMembers {
		effects = append(effects, o.groupMemberEffects(targetID, working)...)
	}
	return effects
}

// refreshEffects recreates refresh schedules and the refresh properties of a
// dataset.
func (o *Orchestrator) refreshEffects(datasetID string, working *asset.ExportData) []sideEffect {
	var effects []sideEffect

	schedules := snapshotDoc(working, asset.SnapshotRefreshSchedules)
	list := schedules.Get("RefreshSchedules")
	if schedules.IsArray() {
		list = schedules
	}
	for i, s := range list.Array() {
		if !s.IsObject() {
			continue
		}
		label := firstNonEmpty(s.Get("ScheduleId").String(), fmt.Sprintf("#%d", i+1))
		effects = append(effects, sideEffect{
			effect: "refresh-schedule",
			label:  label,
			run: func(ctx context.Context) error {
				p, err := objectPayload(s, "Arn")
				if err != nil {
					return err
				}
				return o.client.CreateRefreshSchedule(ctx, datasetID, p)
			},
		})
	}

	props := snapshotDoc(working, asset.SnapshotRefreshProperties).Get("DataSetRefreshProperties")
	if props.IsObject() {
		effects = append(effects, sideEffect{
			effect: "refresh-properties",
			label:  datasetID,
			run: func(ctx context.Context) error {
				p, err := objectPayload(props)
				if err != nil {
					return err
				}
				return o.client.PutDataSetRefreshProperties(ctx, datasetID, p)
			},
		})
	}
	return effects
}

// membershipEffects places a restored asset back into the folders recorded
// for it.
func (o *Orchestrator) membershipEffects(kind asset.Kind, targetID string, working *asset.ExportData) []sideEffect {
	memberType, ok := memberTypes[string(kind)]
	if !ok {
		return nil
	}
	doc := snapshotDoc(working, asset.SnapshotFolderMemberships)

	var folders []string
	for _, f := range doc.Get("Folders").Array() {
		id := f.String()
		if f.IsObject() {
			id = f.Get("FolderId").String()
		}
		if id != "" {
			folders = append(folders, parser.ArnID(id))
		}
	}
	for _, arn := range doc.Get("FolderArns").Array() {
		if arn.String() != "" {
			folders = append(folders, parser.ArnID(arn.String()))
		}
	}

	var effects []sideEffect
	seen := make(map[string]bool)
	for _, folderID := range folders {
		if folderID == "" || seen[folderID] {
			continue
		}
		seen[folderID] = true
		effects = append(effects, sideEffect{
			effect: "folder-membership",
			label:  folderID,
			run: func(ctx context.Context) error {
				return o.client.CreateFolderMembership(ctx, folderID, targetID, memberType)
			},
		})
	}
	return effects
}

// folderMemberEffects re-adds the members recorded for a restored folder.
func (o *Orchestrator) folderMemberEffects(folderID string, working *asset.ExportData) []sideEffect {
	doc := snapshotDoc(working, asset.SnapshotFolderMemberships)
	var effects []sideEffect
	for _, m := range doc.Get("FolderMemberList").Array() {
		memberID := m.Get("MemberId").String()
		memberType := memberTypeFromArn(m.Get("MemberArn").String())
		if memberID == "" || memberType == "" {
			continue
		}
		effects = append(effects, sideEffect{
			effect: "folder-membership",
			label:  memberID,
			run: func(ctx context.Context) error {
				return o.client.CreateFolderMembership(ctx, folderID, memberID, memberType)
			},
		})
	}
	return effects
}

// groupMemberEffects re-adds the users recorded for a restored group.
func (o *Orchestrator) groupMemberEffects(groupName string, working *asset.ExportData) []sideEffect {
	doc := snapshotDoc(working, asset.SnapshotMembers)
	var effects []sideEffect
	for _, m := range doc.Get("GroupMemberList").Array() {
		member := m.Get("MemberName").String()
		if member == "" {
			continue
		}
		effects = append(effects, sideEffect{
			effect: "group-member",
			label:  member,
			run: func(ctx context.Context) error {
				return o.client.CreateGroupMembership(ctx, groupName, member)
			},
		})
	}
	return effects
}

// memberTypeFromArn reads the resource type from an ARN such as
// arn:aws:quicksight:us-east-1:123:dashboard/abc.
func memberTypeFromArn(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return ""
	}
	resource, _, _ := strings.Cut(parts[5], "/")
	return memberTypes[resource]
}

// objectPayload converts a JSON object into a payload, dropping the given
// read-only keys.
func objectPayload(obj gjson.Result, drop ...string) (platform.Payload, error) {
	var p platform.Payload
	if err := json.Unmarshal([]byte(obj.Raw), &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	for _, k := range drop {
		delete(p, k)
	}
	return p, nil
}
