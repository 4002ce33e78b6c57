package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"govdraft/internal/apply"
	"govdraft/internal/config"
	"govdraft/internal/draft"
	"govdraft/internal/evidence"
	"govdraft/internal/generate"
	"govdraft/internal/ledger"
	"govdraft/internal/section"
	"govdraft/internal/template"
	"govdraft/internal/trace"
)

// Exit statuses surfaced to callers. Runtime-config and success statuses
// are CLI concerns; the error classes come from the core packages.
const (
	exitSchemaInvalid = 2
	exitConfigMissing = 3
	exitDraftInvalid  = 4
	exitUnsafeApply   = 5
)

var (
	rootCmd = &cobra.Command{
		Use:           "govdraft",
		Short:         "Draft and apply governance document templates from codebase evidence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, exit.message)
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to YAML config file")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(applyCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate <template>",
	Short: "Validate template marker correctness",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, parseErrs, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		errs := append(parseErrs, template.Validate(model)...)
		if len(errs) > 0 {
			fmt.Println("Template validation failed:")
			for _, e := range errs {
				fmt.Printf("- %s\n", e.Error())
			}
			return &exitError{code: exitSchemaInvalid, message: fmt.Sprintf("%d schema error(s)", len(errs))}
		}
		fmt.Printf("Template valid. Sections: %d (%d fillable)\n", len(model.Sections), len(model.FillSections()))
		return nil
	},
}

var (
	draftCodebase string
	draftOutRoot  string
	draftContext  string
	draftModel    string
)

var draftCmd = &cobra.Command{
	Use:   "draft <template>",
	Short: "Generate draft markdown from a codebase and a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return &exitError{code: exitConfigMissing, message: err.Error()}
		}
		if draftOutRoot != "" {
			cfg.Run.OutputRoot = draftOutRoot
		}
		if draftContext != "" {
			cfg.Run.ContextFile = draftContext
		}
		if draftModel != "" {
			cfg.AI.Model = draftModel
		}
		if cfg.AI.APIKey == "" {
			return &exitError{code: exitConfigMissing, message: "AI API key not configured (set GOVDRAFT_API_KEY)"}
		}

		model, parseErrs, err := template.ParseFile(args[0])
		if err != nil {
			return err
		}
		if errs := append(parseErrs, template.Validate(model)...); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			return &exitError{code: exitSchemaInvalid, message: "template is schema-invalid"}
		}

		idx, err := evidence.Build(draftCodebase, cfg.Repo.Allowlist, cfg.Repo.Denylist)
		if err != nil {
			return err
		}
		contextItems, err := ledger.Load(cfg.Run.ContextFile)
		if err != nil {
			return err
		}

		log, err := zap.NewProduction()
		if err != nil {
			log = zap.NewNop()
		}
		defer log.Sync()

		ctx := context.Background()
		capability, err := generate.NewCapability(ctx, cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Temperature)
		if err != nil {
			return &exitError{code: exitConfigMissing, message: err.Error()}
		}
		tracer := trace.NewCollector(log)
		orch := generate.NewOrchestrator(capability, generate.Policy{
			Attempts: cfg.Run.Attempts,
			Timeout:  cfg.Timeout(),
			Backoff:  500 * time.Millisecond,
		}, tracer, log)

		d, err := orch.Draft(ctx, model, idx, contextItems)
		if err != nil {
			return err
		}

		runDir, err := makeRunDir(cfg.Run.OutputRoot)
		if err != nil {
			return err
		}
		if err := writeRunArtifacts(runDir, d, tracer); err != nil {
			return err
		}

		merged := ledger.Merge(contextItems, d.MissingItems(), model.SectionOrder())
		if err := ledger.Write(cfg.Run.ContextFile, merged); err != nil {
			return err
		}

		fmt.Printf("Draft generated: %s\n", filepath.Join(runDir, "draft.md"))
		fmt.Printf("Context updated: %s\n", cfg.Run.ContextFile)
		return nil
	},
}

var (
	applyDraftPath string
	applyOut       string
	applyForce     bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <template>",
	Short: "Apply a reviewed draft into a copy of the template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return &exitError{code: exitConfigMissing, message: err.Error()}
		}

		d, draftErrs, err := draft.ParseFile(applyDraftPath)
		if err != nil {
			return err
		}
		if len(draftErrs) > 0 {
			fmt.Fprintln(os.Stderr, "Draft is invalid:")
			for _, e := range draftErrs {
				fmt.Fprintf(os.Stderr, "- %s\n", e.Error())
			}
			return &exitError{code: exitDraftInvalid, message: fmt.Sprintf("%d draft error(s)", len(draftErrs))}
		}

		outPath := applyOut
		if outPath == "" {
			runDir, err := makeRunDir(cfg.Run.OutputRoot)
			if err != nil {
				return err
			}
			outPath = filepath.Join(runDir, "applied-"+filepath.Base(args[0]))
		}

		report, err := apply.Apply(args[0], d, apply.Options{
			Force:            applyForce,
			OutPath:          outPath,
			ContextReference: cfg.Run.ContextFile,
		})
		if err != nil {
			var unsafe *apply.UnsafeApplyError
			var invalid *apply.TemplateInvalidError
			switch {
			case errors.As(err, &unsafe):
				return &exitError{code: exitUnsafeApply, message: unsafe.Error()}
			case errors.As(err, &invalid):
				return &exitError{code: exitSchemaInvalid, message: invalid.Error()}
			}
			return err
		}

		fmt.Printf("Applied document created: %s\n", report.OutputPath)
		fmt.Printf("Unresolved sections: %d\n", len(report.UnresolvedSectionIDs))
		return nil
	},
}

func init() {
	draftCmd.Flags().StringVar(&draftCodebase, "codebase", ".", "Path to the codebase to analyze")
	draftCmd.Flags().StringVar(&draftOutRoot, "output-root", "", "Root output directory override")
	draftCmd.Flags().StringVar(&draftContext, "context-file", "", "Missing-context markdown file override")
	draftCmd.Flags().StringVar(&draftModel, "model", "", "Model name override")

	applyCmd.Flags().StringVar(&applyDraftPath, "draft", "", "Path to the reviewed draft markdown")
	applyCmd.Flags().StringVarP(&applyOut, "out", "o", "", "Output document path")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "Allow apply over an already-applied document")
	applyCmd.MarkFlagRequired("draft")
}

func makeRunDir(root string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	runDir := filepath.Join(root, stamp)
	for suffix := 1; ; suffix++ {
		if _, err := os.Stat(runDir); os.IsNotExist(err) {
			break
		}
		runDir = filepath.Join(root, fmt.Sprintf("%s-%d", stamp, suffix))
	}
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return runDir, nil
}

// writeRunArtifacts persists the draft plus its supporting files: a run
// summary, the open questions, the attachment manifest, and the trace.
func writeRunArtifacts(runDir string, d *section.Draft, tracer *trace.Collector) error {
	if err := os.WriteFile(filepath.Join(runDir, "draft.md"), []byte(draft.Serialize(d)), 0o644); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}

	var partial []string
	for _, sec := range d.Sections {
		if sec.Unresolved() {
			partial = append(partial, sec.SectionID)
		}
	}
	summary := map[string]any{
		"generated_at":        time.Now().UTC().Format(time.RFC3339),
		"section_count":       len(d.Sections),
		"unresolved_sections": partial,
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "draft-summary.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	missing, err := json.MarshalIndent(d.MissingItems(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode missing items: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "missing-items.json"), append(missing, '\n'), 0o644); err != nil {
		return fmt.Errorf("write missing items: %w", err)
	}

	manifest, err := os.Create(filepath.Join(runDir, "attachments-manifest.csv"))
	if err != nil {
		return fmt.Errorf("write attachment manifest: %w", err)
	}
	writer := csv.NewWriter(manifest)
	writer.Write([]string{"section_id", "attachment"})
	for _, sec := range d.Sections {
		for _, attachment := range sec.Attachments {
			writer.Write([]string{sec.SectionID, attachment})
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		manifest.Close()
		return fmt.Errorf("write attachment manifest: %w", err)
	}
	if err := manifest.Close(); err != nil {
		return fmt.Errorf("close attachment manifest: %w", err)
	}

	if err := tracer.WriteJSON(filepath.Join(runDir, "trace.json")); err != nil {
		return err
	}
	return tracer.WriteCSV(filepath.Join(runDir, "trace.csv"))
}
