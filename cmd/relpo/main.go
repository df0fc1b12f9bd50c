package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plandes/relpo/internal/config"
	"github.com/plandes/relpo/internal/logging"
	"github.com/plandes/relpo/internal/project"
)

var (
	configPaths []string
	tmpDir      string
	logLevel    string

	infoFormat   string
	infoCache    bool
	outputPath   string
	showProgress bool
)

// errNotReleasable exits non-zero after the issue was already printed.
var errNotReleasable = errors.New("not releasable")

func main() {
	rootCmd := &cobra.Command{
		Use:           "relpo",
		Short:         "Release and distribution tooling for Python projects",
		Long:          "relpo checks that git tags and the change log agree before a release and builds offline environment distributions from pixi lock files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c", []string{config.DefaultFile}, "Config file (repeatable, earlier files win)")
	rootCmd.PersistentFlags().StringVar(&tmpDir, "tmp", "target", "Temporary directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.LevelWarn, "Log level (debug, info, warn, error, none)")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether the project is releasable",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print the project summary",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
	infoCmd.Flags().StringVar(&infoFormat, "format", "yaml", "Output format (json, yaml)")
	infoCmd.Flags().BoolVar(&infoCache, "cache", false, "Use the snapshot in the temporary directory when current")

	pyprojectCmd := &cobra.Command{
		Use:   "pyproject",
		Short: "Render pyproject.toml",
		Args:  cobra.NoArgs,
		RunE:  runPyProject,
	}
	pyprojectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")

	bumpCmd := &cobra.Command{
		Use:       "bump [major|minor|patch]",
		Short:     "Print the next version",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"major", "minor", "patch"},
		RunE:      runBump,
	}

	envdistCmd := &cobra.Command{
		Use:   "envdist",
		Short: "Build an environment distribution from the pixi lock file",
		Args:  cobra.NoArgs,
		RunE:  runEnvDist,
	}
	envdistCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Archive file to write")
	envdistCmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress spinner")

	condametaCmd := &cobra.Command{
		Use:   "condameta <file>",
		Short: "Print the build metadata of a conda package",
		Args:  cobra.ExactArgs(1),
		RunE:  runCondaMeta,
	}

	rootCmd.AddCommand(checkCmd, infoCmd, pyprojectCmd, bumpCmd, envdistCmd, condametaCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errNotReleasable) {
			fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		}
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	l, err := logging.GetLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

func loadProject() (*project.Project, *zap.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPaths...)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("loaded config", zap.Strings("sources", cfg.Sources))
	return project.New(cfg, project.WithLogger(logger)), logger, nil
}

// writeOutput writes content to outputPath, or stdout when it is empty.
func writeOutput(content []byte) error {
	if outputPath == "" {
		_, err := os.Stdout.Write(content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}
