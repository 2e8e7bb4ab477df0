package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"forumscraper/pkg/config"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/storage"
	"forumscraper/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage forumscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (FORUMSCRAPER_*, also read from .env)
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every available option.

The file is written to $XDG_CONFIG_HOME/forumscraper/config.yaml unless a
different path is given with --config. An existing file is never replaced.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the merged configuration and check that the output root
can be created and written.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

// exampleConfig returns the defaults with a placeholder thread filled in
func exampleConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Forum.Threads = []string{"https://forum.example.com/threads/example-thread.123/"}
	cfg.Forum.PageAppenderBefore = "page-"
	cfg.Forum.EndPage = 0
	return cfg
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists: "+path, nil)
		fmt.Fprintf(cmd.OutOrStdout(), "\nTo overwrite, first remove the existing file:\n  rm %s\n", path)
		return &exitError{code: exitFatal, err: fmt.Errorf("%s already exists", path)}
	}

	if err := exampleConfig().Save(path); err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	ui.PrintSuccess("Created configuration file: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit forum.threads and the page settings, then run:")
	fmt.Fprintf(cmd.OutOrStdout(), "  forumscraper scrape --config %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, flagOverrides(cmd.Flags(), nil))
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none, defaults and environment only)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", source)

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configFile, flagOverrides(cmd.Flags(), nil))
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration is invalid", nil)
		for _, problem := range validationProblems(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", problem)
		}
		return &exitError{code: exitFatal, err: fmt.Errorf("invalid configuration")}
	}

	if _, err := storage.NewManager(cfg.Output.BaseDirectory, logger.NewNopLogger()); err != nil {
		ui.PrintError("Output directory is not usable", err)
		return &exitError{code: exitFatal, err: err}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Threads", fmt.Sprintf("%d", len(cfg.Forum.Threads)))
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	return nil
}

// validationProblems lists the individual problems joined into a validation error
func validationProblems(err error) []string {
	inner := stderrors.Unwrap(err)
	if inner == nil {
		return []string{err.Error()}
	}
	joined, ok := inner.(interface{ Unwrap() []error })
	if !ok {
		return []string{inner.Error()}
	}
	var problems []string
	for _, e := range joined.Unwrap() {
		problems = append(problems, e.Error())
	}
	return problems
}
