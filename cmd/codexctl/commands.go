package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	osfs "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kittclouds/codexkitt/internal/aicontext"
	"github.com/kittclouds/codexkitt/internal/mentions"
	"github.com/kittclouds/codexkitt/internal/store"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <bundle.json>",
		Short: "Import a novel bundle (entities, relations, scenes, messages)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := store.DecodeBundle(f)
			if err != nil {
				return err
			}
			n, err := store.Import(cmd.Context(), a.store, b)
			if err != nil {
				return err
			}
			a.log.Info("bundle imported",
				zap.String("novel_id", b.Novel.ID),
				zap.Int("entities", n.Entities),
				zap.Int("relations", n.Relations),
				zap.Int("scenes", n.Scenes),
				zap.Int("messages", n.Messages),
			)

			if scan, _ := cmd.Flags().GetBool("scan"); scan {
				var refs []mentions.UnitRef
				for _, s := range b.Scenes {
					refs = append(refs, mentions.UnitRef{Kind: store.UnitScene, ID: s.ID})
				}
				for _, m := range b.Messages {
					refs = append(refs, mentions.UnitRef{Kind: store.UnitMessage, ID: m.ID})
				}
				return scanUnits(cmd, a, refs)
			}
			return printJSON(cmd.OutOrStdout(), n)
		},
	}
	cmd.Flags().Bool("scan", false, "Scan every imported scene and message")
	return cmd
}

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Synchronize mention records for scenes and chat messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenes, _ := cmd.Flags().GetStringSlice("scene")
			messages, _ := cmd.Flags().GetStringSlice("message")

			var refs []mentions.UnitRef
			for _, id := range scenes {
				refs = append(refs, mentions.UnitRef{Kind: store.UnitScene, ID: id})
			}
			for _, id := range messages {
				refs = append(refs, mentions.UnitRef{Kind: store.UnitMessage, ID: id})
			}
			if len(refs) == 0 {
				return errors.New("nothing to scan: pass --scene or --message")
			}
			return scanUnits(cmd, a, refs)
		},
	}
	cmd.Flags().StringSlice("scene", nil, "Scene IDs to scan")
	cmd.Flags().StringSlice("message", nil, "Chat message IDs to scan")
	return cmd
}

type scanReport struct {
	Unit    string           `json:"unit"`
	Changes mentions.Changes `json:"changes"`
}

func scanUnits(cmd *cobra.Command, a *app, refs []mentions.UnitRef) error {
	reports := make([]scanReport, 0, len(refs))
	for _, ref := range refs {
		changes, err := a.scans.ScanContentUnit(cmd.Context(), ref)
		if err != nil {
			return fmt.Errorf("scan %s: %w", ref, err)
		}
		reports = append(reports, scanReport{Unit: ref.String(), Changes: changes})
	}
	return printJSON(cmd.OutOrStdout(), reports)
}

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context [entity-id...]",
		Short: "Assemble the AI context for detected entities or a scanned unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []aicontext.Option
			depth := a.cfg.CascadeDepth
			if cmd.Flags().Changed("depth") {
				depth, _ = cmd.Flags().GetInt("depth")
				opts = append(opts, aicontext.WithDepth(depth))
			}
			if cmd.Flags().Changed("limit") {
				limit, _ := cmd.Flags().GetInt("limit")
				opts = append(opts, aicontext.WithModelLimit(limit))
			}
			if manual, _ := cmd.Flags().GetStringSlice("manual"); len(manual) > 0 {
				opts = append(opts, aicontext.WithManual(manual...))
			}
			unitID, _ := cmd.Flags().GetString("unit")
			novelID, _ := cmd.Flags().GetString("novel")

			var (
				p   *aicontext.Payload
				err error
			)
			if unitID != "" {
				if novelID == "" {
					return errors.New("--unit requires --novel")
				}
				p, err = a.builder.BuildForUnit(cmd.Context(), unitID, novelID, opts...)
			} else {
				if novelID != "" {
					opts = append(opts, aicontext.WithAlways(novelID))
				}
				p, err = a.builder.Build(cmd.Context(), args, opts...)
			}
			if err != nil {
				return err
			}

			if out, _ := cmd.Flags().GetString("out"); out != "" {
				if err := writeSnapshot(out, &aicontext.Snapshot{Detected: args, Depth: depth, Payload: p}); err != nil {
					return err
				}
			}

			if text, _ := cmd.Flags().GetBool("text"); text {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), aicontext.Wrap(p.Text))
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().Int("depth", 1, "Relation cascade depth (0-3)")
	cmd.Flags().Int("limit", 0, "Model context window in tokens (default CODEX_MODEL_LIMIT)")
	cmd.Flags().StringSlice("manual", nil, "Entity IDs selected by hand")
	cmd.Flags().String("unit", "", "Use the persisted mentions of this scene or message")
	cmd.Flags().String("novel", "", "Novel whose always-mode entities are included")
	cmd.Flags().Bool("text", false, "Print the wrapped prompt text instead of JSON")
	cmd.Flags().String("out", "", "Also write a JSON snapshot of the payload to this file")
	return cmd
}

func writeSnapshot(out string, snap *aicontext.Snapshot) error {
	abs, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	fsys := osfs.NewFS()
	name, err := fsys.FromOSPath(abs)
	if err != nil {
		return err
	}
	return aicontext.WriteSnapshot(fsys, name, snap)
}

func newRelatedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "related <entity-id>",
		Short: "List the direct neighbours of an entity, unfiltered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.builder.RelatedOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entities, err := a.store.GetEntities(cmd.Context(), ids)
			if err != nil {
				return err
			}
			for _, e := range entities {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.ID, e.Type, e.Name)
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <entity-id>",
		Short: "Show an entity's mention total and per-unit breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.scans.MentionStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
