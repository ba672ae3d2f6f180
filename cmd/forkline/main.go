// Package main provides the forkline CLI: a patch-management engine
// for long-lived forks of upstream codebases.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forkline/forkline/apply"
	"github.com/forkline/forkline/config"
	"github.com/forkline/forkline/extract"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// appFactory builds the App after cobra has parsed the global flags.
type appFactory struct {
	configPath string
	libraryDir string
	repoDir    string
	verbose    bool
}

func (f *appFactory) build() (*App, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.libraryDir != "" {
		cfg.LibraryDir = f.libraryDir
	}
	if f.repoDir != "" {
		cfg.RepoDir = f.repoDir
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	app := NewApp(cfg)
	app.Logger = logger
	return app, nil
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	factory := &appFactory{}

	root := &cobra.Command{
		Use:   "forkline",
		Short: "Maintain a patch library for a long-lived fork",
		Long: `Forkline extracts fork-local changes from version control into a
library of per-file patch artifacts, groups them into named features,
and replays them onto fresh upstream checkouts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&factory.configPath, "config", "", "config file (default .forkline.yaml in CWD or $HOME)")
	root.PersistentFlags().StringVar(&factory.libraryDir, "library", "", "patch library directory")
	root.PersistentFlags().StringVar(&factory.repoDir, "repo", "", "tracked source tree (default current directory)")
	root.PersistentFlags().BoolVarP(&factory.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newExtractCmd(factory))
	root.AddCommand(newApplyCmd(factory))
	root.AddCommand(newFeatureCmd(factory))
	root.AddCommand(newVerifyCmd(factory))
	root.AddCommand(newVersionCmd())

	return root
}

func newExtractCmd(factory *appFactory) *cobra.Command {
	var opts extract.Options

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract commits into the patch library",
	}
	cmd.PersistentFlags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing artifacts without asking")
	cmd.PersistentFlags().BoolVar(&opts.IncludeBinary, "include-binary", false, "write markers for binary files")
	cmd.PersistentFlags().StringVar(&opts.Base, "base", "", "diff each file from this base instead of the parent")

	commit := &cobra.Command{
		Use:   "commit <rev>",
		Short: "Extract the changes of a single commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			opts.Verbose = factory.verbose
			if app.Config.IncludeBinary {
				opts.IncludeBinary = true
			}
			return app.ExtractCommit(cmd.Context(), args[0], opts)
		},
	}

	var squash bool
	rng := &cobra.Command{
		Use:   "range <base> <head>",
		Short: "Extract the changes of a commit range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			opts.Verbose = factory.verbose
			if app.Config.IncludeBinary {
				opts.IncludeBinary = true
			}
			return app.ExtractRange(cmd.Context(), args[0], args[1], squash, opts)
		},
	}
	rng.Flags().BoolVar(&squash, "squash", false, "extract the whole range as one combined change")

	cmd.AddCommand(commit, rng)
	return cmd
}

func newApplyCmd(factory *appFactory) *cobra.Command {
	var opts apply.Options

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replay library patches onto the working tree",
	}
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "check what would apply without touching the tree")
	cmd.PersistentFlags().BoolVar(&opts.CommitEach, "commit-each", false, "commit after every successful patch")
	cmd.PersistentFlags().BoolVar(&opts.AbortOnFailure, "abort-on-failure", false, "stop at the first failed patch")

	all := &cobra.Command{
		Use:   "all",
		Short: "Apply the whole series in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.ApplyAll(cmd.Context(), opts)
		},
	}

	feature := &cobra.Command{
		Use:   "feature <name>",
		Short: "Apply the patches of one feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.ApplyFeature(cmd.Context(), args[0], opts)
		},
	}

	cmd.AddCommand(all, feature)
	return cmd
}

func newFeatureCmd(factory *appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage the feature registry",
	}

	var description, commit string
	add := &cobra.Command{
		Use:   "add <name> [files...]",
		Short: "Register files under a feature name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.FeatureAdd(cmd.Context(), args[0], args[1:], description, commit)
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "feature description")
	add.Flags().StringVar(&commit, "commit", "", "take the file list from this commit")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.FeatureList(cmd.Context())
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a feature and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.FeatureShow(cmd.Context(), args[0])
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Unregister a feature (artifacts are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.FeatureRemove(cmd.Context(), args[0])
		},
	}

	var output string
	generate := &cobra.Command{
		Use:   "generate-patch <name>",
		Short: "Combine a feature's artifacts into one patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.GeneratePatch(cmd.Context(), args[0], output)
		},
	}
	generate.Flags().StringVarP(&output, "output", "o", "", "write the combined patch to this file")

	cmd.AddCommand(add, list, show, remove, generate)
	return cmd
}

func newVerifyCmd(factory *appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every library artifact is a well-formed diff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := factory.build()
			if err != nil {
				return err
			}
			return app.Verify(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "forkline %s\n", version)
		},
	}
}
