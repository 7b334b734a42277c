package main

import (
	"fmt"
	"strconv"

	"github.com/keagan/snapsift/internal/config"
	"github.com/keagan/snapsift/internal/gui"
	"github.com/keagan/snapsift/internal/persist"
	"github.com/keagan/snapsift/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var reviewCmd = &cobra.Command{
	Use:   "review [output dir]",
	Short: "Browse extracted screenshots in a desktop window",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.FromContext(cmd.Context()).OutputDir
		if len(args) == 1 {
			dir = args[0]
		}
		return gui.RunReview(log.Logger, dir)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [output dir]",
	Short: "Check an output directory's metadata and screenshot files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.FromContext(cmd.Context()).OutputDir
		if len(args) == 1 {
			dir = args[0]
		}

		report, err := persist.Validate(dir)
		if err != nil {
			return err
		}
		for _, name := range report.Missing {
			log.Warn().Str("file", name).Msg("screenshot file missing")
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderValidation(report))
		log.Info().
			Str("dir", dir).
			Int("screenshots", len(report.Screenshots)).
			Int("missing", len(report.Missing)).
			Msg("metadata valid")
		return nil
	},
}

func renderValidation(report persist.Report) string {
	missing := make(map[string]bool, len(report.Missing))
	for _, name := range report.Missing {
		missing[name] = true
	}

	rows := make([][]string, 0, len(report.Screenshots))
	for _, s := range report.Screenshots {
		status := "ok"
		if missing[s.Filename] {
			status = "missing"
		}
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Filename, status})
	}
	return renderTable([]string{"#", "File", "Status"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "./snapsift.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		return initConfig(path, force)
	},
}

func initConfig(path string, force bool) error {
	if util.FileExists(path) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("config written")
	return nil
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
