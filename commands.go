package hy3dtools

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewCommand creates a Cobra command tree for the setup tooling.
// The returned command can be executed directly or added to a parent CLI's
// root command.
//
// Commands provided:
//   - copy <owner/name> [subfolder] [--all] [--force]
//   - list
//   - info <owner/name> [subfolder]
//   - path <owner/name> [subfolder]
//   - remove <owner/name> [subfolder] [--yes]
//   - build [--plan file]
//   - status
//
// Global flags: --json, --quiet, --verbose
func NewCommand(cfg Config, opts ...ManagerOption) *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
		verbose    bool
	)

	// Manager will be created in PersistentPreRunE
	var mgr Manager

	cmd := &cobra.Command{
		Use:   "hunyuan3d-tools",
		Short: "Set up Hunyuan3D-2 models and renderers",
		Long:  "Stage downloaded model weights into the local models directory and build the native renderer components.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip manager creation for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			var err error
			mgr, err = NewManager(cfg, opts...)
			if err != nil {
				return fmt.Errorf("failed to initialize manager: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	cmd.AddCommand(copyCmd(&mgr, &quiet, &verbose))
	cmd.AddCommand(listCmd(&mgr, &jsonOutput))
	cmd.AddCommand(infoCmd(&mgr, &jsonOutput))
	cmd.AddCommand(pathCmd(&mgr))
	cmd.AddCommand(removeCmd(&mgr, &quiet))
	cmd.AddCommand(buildCmd(&mgr, &jsonOutput, &quiet))
	cmd.AddCommand(statusCmd(&mgr, &jsonOutput))

	return cmd
}

func copyCmd(mgr *Manager, quiet, verbose *bool) *cobra.Command {
	var (
		all   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "copy [owner/name] [subfolder]",
		Short: "Copy cached model weights into the models directory",
		Long:  "Copy a model's weight files from the download cache into the local models directory. Use --all to copy every known model.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var opts []CopyOption
			if force {
				opts = append(opts, WithForce())
			}
			if *verbose {
				opts = append(opts, WithProgress(func(p CopyProgress) {
					if p.Phase == "copy" {
						fmt.Fprintf(out, "  %s\n", p.CurrentFile)
					}
				}))
			}

			if all {
				results, err := (*mgr).CopyAll(ctx, opts...)
				for _, res := range results {
					if !*quiet && res.TargetDir != "" {
						printCopyResult(out, res)
					}
				}
				if err != nil {
					return err
				}
				if !*quiet {
					fmt.Fprintln(out, "\nAll models copied. You can now run the generation pipeline against the local models directory.")
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("model reference required (or use --all)")
			}

			ref, err := ParseModelRef(strings.Join(args, " "))
			if err != nil {
				return err
			}

			res, err := (*mgr).Copy(ctx, ref, opts...)
			if err != nil {
				if errors.Is(err, ErrAlreadyCopied) {
					if !*quiet {
						fmt.Fprintf(out, "Model %s is already copied (use --force to copy again)\n", ref)
					}
					return nil
				}
				return err
			}

			if !*quiet {
				printCopyResult(out, res)
				fmt.Fprintln(out, "\nDone. You can now run the generation pipeline against the local models directory.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Copy all known models")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Copy again even if already copied")
	return cmd
}

func printCopyResult(w io.Writer, res CopyResult) {
	layout := "cache root"
	if res.FromSnapshot {
		layout = "snapshot"
	}
	fmt.Fprintf(w, "Copied %s: %d files (%s, from %s) -> %s\n",
		res.Ref, res.FilesCopied, formatSize(res.BytesCopied), layout, res.TargetDir)
	if res.FilesFailed > 0 {
		fmt.Fprintf(w, "  warning: %d files could not be copied\n", res.FilesFailed)
	}
}

func listCmd(mgr *Manager, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List copied models",
		Long:  "List the models staged in the local models directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := (*mgr).ListCopied(cmd.Context())
			if err != nil {
				return err
			}
			return outputCopiedModels(cmd.OutOrStdout(), models, *jsonOutput)
		},
	}
}

func infoCmd(mgr *Manager, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info <owner/name> [subfolder]",
		Short: "Show copied model information",
		Long:  "Show detailed information about a staged model.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := ParseModelRef(strings.Join(args, " "))
			if err != nil {
				return err
			}

			model, err := (*mgr).GetCopied(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return outputCopiedDetail(cmd.OutOrStdout(), model, *jsonOutput)
		},
	}
}

func pathCmd(mgr *Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "path <owner/name> [subfolder]",
		Short: "Print path to a copied model",
		Long:  "Print the filesystem path to a staged model's directory.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := ParseModelRef(strings.Join(args, " "))
			if err != nil {
				return err
			}

			path, err := (*mgr).Path(cmd.Context(), ref)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func removeCmd(mgr *Manager, quiet *bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <owner/name> [subfolder]",
		Short: "Remove a copied model",
		Long:  "Remove a staged model's directory and registry entry.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := ParseModelRef(strings.Join(args, " "))
			if err != nil {
				return err
			}

			// Confirmation prompt
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Remove %s? [y/N]: ", ref)
				if !confirmPrompt(cmd.InOrStdin()) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := (*mgr).Remove(cmd.Context(), ref); err != nil {
				return err
			}

			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ref)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func buildCmd(mgr *Manager, jsonOutput, quiet *bool) *cobra.Command {
	var planFile string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the renderer components",
		Long:  "Compile and install the renderer components into the active conda environment. Components requiring CUDA are skipped when nvcc is not found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			opts := []BuildOption{}
			if !*quiet {
				opts = append(opts, WithBuildOutput(out))
			}
			if planFile != "" {
				plan, err := LoadPlan(planFile)
				if err != nil {
					return err
				}
				opts = append(opts, WithPlan(plan))
			}

			report, err := (*mgr).Build(ctx, opts...)
			if err != nil {
				if errors.Is(err, ErrWrongEnv) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Activate the environment first: conda activate %s\n", report.Env)
				}
				return err
			}

			if *jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			if !*quiet {
				for _, step := range report.Steps {
					if step.Status == StepSkipped {
						fmt.Fprintf(out, "Skipped %s: no CUDA compiler found. Texture baking will fall back to vertex coloring.\n", step.Name)
					}
				}
				fmt.Fprintln(out, "\nRenderer components installed. You can now run texture generation.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "Build plan YAML file (defaults to the built-in plan)")
	return cmd
}

func statusCmd(mgr *Manager, jsonOutput *bool) *cobra.Command {
	var planFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report environment and model status",
		Long:  "Report the active conda environment, CUDA compiler, cache directory, and per-model staging state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []BuildOption{}
			if planFile != "" {
				plan, err := LoadPlan(planFile)
				if err != nil {
					return err
				}
				opts = append(opts, WithPlan(plan))
			}

			st, err := (*mgr).Status(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			return outputStatus(cmd.OutOrStdout(), st, *jsonOutput)
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "Build plan YAML file (defaults to the built-in plan)")
	return cmd
}

// confirmPrompt reads from stdin and returns true only if the user types 'y'
// or 'yes'. Returns false for empty input or any other response.
func confirmPrompt(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		response := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return response == "y" || response == "yes"
	}
	return false
}

// Output helpers

func outputCopiedModels(w io.Writer, models []CopiedModel, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Fprintln(w, "No models copied")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tSUBFOLDER\tSIZE\tFILES\tCOPIED")
	for _, m := range models {
		subfolder := m.Ref.Subfolder
		if subfolder == "" {
			subfolder = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			m.Ref.RepoID(),
			subfolder,
			formatSize(m.TotalSize),
			m.FileCount,
			m.CopiedAt.Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

func outputCopiedDetail(w io.Writer, m CopiedModel, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	layout := "cache root"
	if m.FromSnapshot {
		layout = "snapshot"
	}

	fmt.Fprintf(w, "Model:        %s\n", m.Ref.RepoID())
	if m.Ref.Subfolder != "" {
		fmt.Fprintf(w, "Subfolder:    %s\n", m.Ref.Subfolder)
	}
	fmt.Fprintf(w, "Size:         %s\n", formatSize(m.TotalSize))
	fmt.Fprintf(w, "Files:        %d\n", m.FileCount)
	fmt.Fprintf(w, "Source:       %s\n", layout)
	fmt.Fprintf(w, "Copied:       %s\n", m.CopiedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Path:         %s\n", m.Path)
	return nil
}

func outputStatus(w io.Writer, st EnvStatus, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	condaEnv := st.CondaEnv
	if condaEnv == "" {
		condaEnv = "(none)"
	}
	envNote := ""
	if !st.EnvOK {
		envNote = fmt.Sprintf(" (expected %q)", st.ExpectedEnv)
	}
	fmt.Fprintf(w, "Conda env:    %s%s\n", condaEnv, envNote)

	if st.CompilerPath != "" {
		fmt.Fprintf(w, "CUDA:         %s\n", st.CompilerPath)
	} else {
		fmt.Fprintln(w, "CUDA:         not found")
	}

	cacheNote := ""
	if !st.CacheDirExists {
		cacheNote = " (missing)"
	}
	fmt.Fprintf(w, "Cache dir:    %s%s\n", st.CacheDir, cacheNote)
	fmt.Fprintf(w, "Models dir:   %s\n", st.ModelsDir)

	fmt.Fprintln(w, "\nModels:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  MODEL\tCACHED\tCOPIED")
	for _, m := range st.Models {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Ref, yesNo(m.Cached), yesNo(m.Copied))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
