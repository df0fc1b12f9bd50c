package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plandes/relpo/internal/condapkg"
	"github.com/plandes/relpo/internal/envdist"
	"github.com/plandes/relpo/internal/progress"
	"github.com/plandes/relpo/internal/project"
	"github.com/plandes/relpo/internal/snapshot"
	"github.com/plandes/relpo/internal/version"
)

func runCheck(cmd *cobra.Command, args []string) error {
	p, _, err := loadProject()
	if err != nil {
		return err
	}
	issue, err := p.Issue()
	if err != nil {
		return err
	}
	if issue != "" {
		fmt.Println(color.YellowString(issue))
		return errNotReleasable
	}
	fmt.Println(color.GreenString("releasable"))
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	p, logger, err := loadProject()
	if err != nil {
		return err
	}

	var summary *project.Summary
	if infoCache {
		cfg := p.Config()
		sources := append([]string{p.Dir(), filepath.Join(p.Dir(), ".git"), cfg.ChangeLogPath()}, cfg.Sources...)
		cache := snapshot.NewCache(afero.NewOsFs(), tmpDir, logger, sources...)
		summary, err = cache.Get(p.Summary)
	} else {
		summary, err = p.Summary()
	}
	if err != nil {
		return err
	}

	var out []byte
	switch infoFormat {
	case "json":
		out, err = jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(summary, "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(summary)
	default:
		return fmt.Errorf("unknown format: %s", infoFormat)
	}
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runPyProject(cmd *cobra.Command, args []string) error {
	p, _, err := loadProject()
	if err != nil {
		return err
	}
	content, err := p.PyProject()
	if err != nil {
		return err
	}
	return writeOutput([]byte(content + "\n"))
}

func runBump(cmd *cobra.Command, args []string) error {
	component := version.Patch
	if len(args) > 0 {
		c, err := version.ParseComponent(args[0])
		if err != nil {
			return err
		}
		component = c
	}
	p, _, err := loadProject()
	if err != nil {
		return err
	}
	next, err := p.NextVersion(component)
	if err != nil {
		return err
	}
	fmt.Println(next)
	return nil
}

func runEnvDist(cmd *cobra.Command, args []string) error {
	p, logger, err := loadProject()
	if err != nil {
		return err
	}

	var tracker progress.Tracker = progress.Nop{}
	if showProgress {
		tracker = progress.NewSpinner(os.Stderr)
	}
	builder := envdist.NewBuilder(p.Config().EnvDist, filepath.Join(tmpDir, "envdist"),
		envdist.WithLogger(logger),
		envdist.WithProgress(tracker),
		envdist.WithTemplateParams(p.TemplateParams()),
		envdist.WithOutputFile(outputPath))
	if err := builder.Generate(cmd.Context()); err != nil {
		return err
	}

	if outputPath != "" {
		fmt.Printf("wrote %s\n", outputPath)
	} else {
		fmt.Printf("staged %s\n", builder.StageDir())
	}
	return nil
}

func runCondaMeta(cmd *cobra.Command, args []string) error {
	pkg := condapkg.Open(afero.NewOsFs(), args[0])
	noarch, err := pkg.IsNoarch()
	if err != nil {
		return err
	}
	platform, err := pkg.TargetPlatform()
	if err != nil {
		return err
	}
	fmt.Printf("noarch: %t\ntarget_platform: %s\n", noarch, platform)
	return nil
}
