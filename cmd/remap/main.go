// cmd/remap/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"remapper/internal/bundle"
	"remapper/internal/config"
	"remapper/internal/diff"
	"remapper/internal/parcel"
	"remapper/internal/remap"
	"remapper/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "remap",
	Short: "Flatten a multi-file source bundle into one directory",
	Long: `remap copies every source of a compiler-input bundle into a single
temporary directory, renaming files whose names collide and rewriting
import statements so they point at the flattened siblings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if !verbose {
			return nil
		}
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

func init() {
	var flattenCmd = &cobra.Command{
		Use:   "flatten <bundle.json>",
		Short: "Flatten a bundle once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := remapOptions(cmd)
			if err != nil {
				return err
			}
			return flatten(cmd, args[0], opts)
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch <bundle.json>",
		Short: "Flatten a bundle and again whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := remapOptions(cmd)
			if err != nil {
				return err
			}

			run := func() error {
				if err := flatten(cmd, args[0], opts); err != nil {
					color.Red("✗ %v", err)
					return err
				}
				return nil
			}
			// A failing first run is reported but does not stop the watch.
			run()

			w, err := watch.New(args[0], watch.DefaultDebounce, logger, run)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx)
		},
	}

	// Runs commands
	var runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded remap runs",
	}

	var listRunsCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openParcel(cmd, remap.Options{})
			if err != nil {
				return err
			}
			defer p.Close()

			runs, err := p.ListRuns()
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No runs found")
				return nil
			}

			fmt.Println("\nRuns:")
			for _, r := range runs {
				fmt.Printf("%s  %s  %d files  %d renamed  %s\n",
					r.ID[:8],
					r.CreatedAt.Format(time.RFC3339),
					len(r.Files),
					r.RenamedCount(),
					r.Main,
				)
			}
			return nil
		},
	}

	var showRunCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show the files of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showDiff, _ := cmd.Flags().GetBool("diff")
			contextLines, _ := cmd.Flags().GetInt("context")

			p, err := openParcel(cmd, remap.Options{})
			if err != nil {
				return err
			}
			defer p.Close()

			run, err := p.GetRun(args[0])
			if err != nil {
				return fmt.Errorf("getting run: %w", err)
			}

			fmt.Printf("Run %s (%s)\n", run.ID, run.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Output: %s\n\n", run.TempDirectory)
			for _, f := range run.Files {
				printFile(f.OriginalPath, f.OutputPath, f.Renamed, f.IsMain)
			}

			if !showDiff {
				return nil
			}

			diffs, err := p.Diffs(run.ID, contextLines)
			if err != nil {
				return fmt.Errorf("computing diffs: %w", err)
			}
			for _, d := range diffs {
				fmt.Printf("\ndiff --remap a/%s b/%s\n", d.File.OriginalPath, d.File.OutputPath)
				printColoredDiff(d.Result)
			}
			return nil
		},
	}

	var deleteRunCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run and release its archived content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openParcel(cmd, remap.Options{})
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.DeleteRun(args[0]); err != nil {
				return fmt.Errorf("deleting run: %w", err)
			}

			fmt.Println("Run deleted:", args[0])
			return nil
		},
	}

	// Add flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log remap decisions")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file")
	rootCmd.PersistentFlags().String("db", "", "Data directory for recorded runs")

	for _, c := range []*cobra.Command{flattenCmd, watchCmd} {
		c.Flags().StringP("main", "m", "", "Main source path as it appears in the bundle")
		c.Flags().StringP("temp-dir", "t", "", "Name of the flattened output directory")
		c.Flags().String("ext", "", "Extension given to flattened files")
		c.Flags().StringP("base-dir", "b", "", "Directory relative source paths are resolved against (default: the bundle's directory)")
	}

	showRunCmd.Flags().Bool("diff", false, "Show the import rewrites of each file")
	showRunCmd.Flags().Int("context", 3, "Context lines around each rewrite")

	// Add commands to root
	rootCmd.AddCommand(flattenCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(deleteRunCmd)
}

// remapOptions merges the config file with command line overrides.
func remapOptions(cmd *cobra.Command) (remap.Options, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return remap.Options{}, fmt.Errorf("loading config: %w", err)
	}

	if tempDir, _ := cmd.Flags().GetString("temp-dir"); tempDir != "" {
		cfg.Remap.TempDirectory = tempDir
	}
	if ext, _ := cmd.Flags().GetString("ext"); ext != "" {
		cfg.Remap.SourceExtension = ext
	}
	if err := cfg.Validate(); err != nil {
		return remap.Options{}, err
	}

	opts := remap.OptionsFromConfig(cfg.Remap)
	opts.Logger = logger
	return opts, nil
}

func loadBundle(cmd *cobra.Command, path string) (*bundle.Bundle, error) {
	mainPath, _ := cmd.Flags().GetString("main")
	baseDir, _ := cmd.Flags().GetString("base-dir")
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	b, err := bundle.Decode(f, mainPath)
	if err != nil {
		return nil, fmt.Errorf("decoding bundle %s: %w", path, err)
	}
	if mainPath != "" {
		if _, ok := b.Get(mainPath); !ok {
			return nil, fmt.Errorf("main %q is not one of the bundle sources", mainPath)
		}
	}
	return b.ResolvePaths(baseDir)
}

func flatten(cmd *cobra.Command, path string, opts remap.Options) error {
	b, err := loadBundle(cmd, path)
	if err != nil {
		return err
	}

	dbDir, _ := cmd.Flags().GetString("db")
	var result *remap.Result
	var runID string

	if dbDir == "" {
		r, err := remap.NewRemapper(opts)
		if err != nil {
			return err
		}
		if result, err = r.Remap(b); err != nil {
			return err
		}
	} else {
		p, err := openParcel(cmd, opts)
		if err != nil {
			return err
		}
		defer p.Close()

		res, run, err := p.Flatten(b)
		if err != nil {
			return err
		}
		result, runID = res, run.ID
	}

	printSummary(result, runID)
	return nil
}

func openParcel(cmd *cobra.Command, opts remap.Options) (*parcel.Parcel, error) {
	dbDir, _ := cmd.Flags().GetString("db")
	if dbDir == "" {
		return nil, fmt.Errorf("--db is required")
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	p, err := parcel.New(parcel.Options{
		DataDir:         dbDir,
		CacheSize:       cfg.Archive.CacheSize,
		CompressMinSize: cfg.Archive.CompressMinSize,
		Remap:           opts,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing parcel: %w", err)
	}
	return p, nil
}

func printSummary(result *remap.Result, runID string) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("\nFlattened %d files into %s\n\n", len(result.Files), bold(result.TempDirectory))
	for _, f := range result.Files {
		printFile(f.OriginalPath, f.OutputPath, f.Renamed, f.IsMain)
	}
	if runID != "" {
		fmt.Printf("\nRecorded run %s\n", runID)
	}
}

func printFile(original, output string, renamed, isMain bool) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	marker := green("=")
	if renamed {
		marker = yellow("R")
	}
	suffix := ""
	if isMain {
		suffix = blue(" (main)")
	}
	fmt.Printf("\t%s %s -> %s%s\n", marker, original, filepath.Base(output), suffix)
}

func printColoredDiff(result *diff.Result) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(result.Format(), "\n") {
		if len(line) == 0 {
			continue
		}

		switch {
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, diff.Prefix(diff.Addition)):
			added.Println(line)
		case strings.HasPrefix(line, diff.Prefix(diff.Deletion)):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
	fmt.Printf("%s, %s\n",
		color.GreenString("%d additions", result.Stats.Additions),
		color.RedString("%d deletions", result.Stats.Deletions))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
