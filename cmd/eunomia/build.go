package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/policy/git"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/tracing"
)

var buildFlags struct {
	dir         string
	name        string
	version     string
	optimize    bool
	noValidate  bool
	gitCommit   string
	gitSource   bool
	watch       bool
	recursive   bool
	out         string
	requireDflt bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile policy source into a bundle",
	Long: `build runs the parse, analyze, optimize and bundle stages over every
".rego" file under --dir, producing a content-addressed, versioned bundle
archive.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildFlags.dir, "dir", ".", "directory containing .rego policy files")
	buildCmd.Flags().StringVar(&buildFlags.name, "name", "", "service name the bundle belongs to")
	buildCmd.Flags().StringVar(&buildFlags.version, "version", "", "bundle version (SemVer)")
	buildCmd.Flags().BoolVar(&buildFlags.optimize, "optimize", false, "strip comments and minimize whitespace in policy source")
	buildCmd.Flags().BoolVar(&buildFlags.noValidate, "no-validate", false, "skip the analyzer pass")
	buildCmd.Flags().StringVar(&buildFlags.gitCommit, "git-commit", "", "git commit SHA to record on the bundle")
	buildCmd.Flags().BoolVar(&buildFlags.gitSource, "git-source", false, "ignore --dir and clone/pull policy source from git_source in the config file")
	buildCmd.Flags().BoolVar(&buildFlags.watch, "watch", false, "rebuild whenever a .rego file under --dir changes (or, with --git-source, whenever a new commit touches .rego files)")
	buildCmd.Flags().BoolVar(&buildFlags.recursive, "recursive", true, "descend into subdirectories of --dir")
	buildCmd.Flags().StringVar(&buildFlags.out, "out", "", "output archive path (default <name>-<version>.tar.gz)")
	buildCmd.Flags().BoolVar(&buildFlags.requireDflt, "require-default", false, "require a default allow/deny rule in every package")

	_ = buildCmd.MarkFlagRequired("name")
	_ = buildCmd.MarkFlagRequired("version")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildFlags.gitSource {
		return runGitSourcedBuild()
	}
	if err := compileOnce(buildFlags.dir, buildFlags.gitCommit); err != nil {
		return err
	}
	if !buildFlags.watch {
		return nil
	}
	return watchAndRebuild()
}

// runGitSourcedBuild clones (or reuses) the repository named by
// git_source in the config file, compiles once from its policy path, and
// with --watch polls for new commits instead of the local filesystem.
func runGitSourcedBuild() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.GitSource.Repository == "" {
		return fmt.Errorf("--git-source requires a git_source.repository in the config file")
	}

	repo, err := git.NewRepository(&cfg.GitSource)
	if err != nil {
		return fmt.Errorf("open git source: %w", err)
	}
	ctx := context.Background()
	if err := repo.Clone(ctx); err != nil {
		return fmt.Errorf("clone git source: %w", err)
	}

	commit, err := repo.GetCurrentCommit()
	if err != nil {
		return fmt.Errorf("read current commit: %w", err)
	}
	if err := compileOnce(repo.GetPolicyPath(), commit.SHA); err != nil {
		return err
	}
	if !buildFlags.watch {
		return nil
	}

	watcher := git.NewWatcher(repo, cfg.GitSource.Poll.Interval, cfg.GitSource.Poll.Timeout, func(policyPath string) error {
		c, err := repo.GetCurrentCommit()
		if err != nil {
			return err
		}
		return compileOnce(policyPath, c.SHA)
	})
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start git watcher: %w", err)
	}
	fmt.Printf("watching %s (branch %s) for new commits (ctrl-c to stop)\n", cfg.GitSource.Repository, cfg.GitSource.Branch)
	select {}
}

func compileOnce(dir, gitCommit string) error {
	b := bundle.NewBuilder(buildFlags.name, buildFlags.version).
		WithOptimize(buildFlags.optimize).
		WithNoValidate(buildFlags.noValidate).
		WithGitCommit(gitCommit).
		WithRequireDefault(buildFlags.requireDflt)

	if err := b.AddDir(dir, buildFlags.recursive); err != nil {
		return err
	}

	_, span := tracing.Tracer().Start(context.Background(), "bundle.compile")
	tracing.SetBundleAttributes(span, buildFlags.name, buildFlags.version, "")
	compiled, err := b.Compile()
	if err != nil {
		tracing.SetErrorAttributes(span, err, "compile_failed")
		span.End()
		return err
	}
	span.End()

	out := buildFlags.out
	if out == "" {
		out = compiled.FileName()
	}
	if err := compiled.Write(out); err != nil {
		return fmt.Errorf("write bundle archive: %w", err)
	}

	fmt.Printf("compiled %s (%d policies) -> %s\n", compiled.FileName(), compiled.PolicyCount(), out)
	fmt.Printf("manifest digest: %s\n", compiled.ManifestDigest)
	return nil
}

func watchAndRebuild() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(buildFlags.dir); err != nil {
		return fmt.Errorf("watch %s: %w", buildFlags.dir, err)
	}

	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", buildFlags.dir)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".rego" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fmt.Printf("change detected: %s\n", event.Name)
			if err := compileOnce(buildFlags.dir, buildFlags.gitCommit); err != nil {
				fmt.Println("rebuild failed:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Println("watch error:", err)
		}
	}
}
