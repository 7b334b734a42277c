package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/keagan/snapsift/internal/config"
	"github.com/keagan/snapsift/internal/logging"
	"github.com/keagan/snapsift/internal/persist"
	"github.com/keagan/snapsift/internal/pipeline"
	"github.com/keagan/snapsift/internal/shots"
	"github.com/keagan/snapsift/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errNothingExtracted = errors.New("no screenshots extracted")

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract screenshots from a screen recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if err := applyExtractFlags(cfg, cmd.Flags()); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		input, _ := cmd.Flags().GetString("input")
		if !util.FileExists(input) {
			return fmt.Errorf("input video not found: %s", input)
		}

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}
		defer pipe.Close()

		if logging.IsTerminal(os.Stderr) {
			bar := newStageProgress(os.Stderr)
			defer bar.Finish()
			pipe.OnProgress(bar.Update)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := pipe.Extract(ctx, input)
		if err != nil {
			return err
		}

		if result.Status == pipeline.StatusEmpty {
			log.Warn().
				Str("run", result.RunID).
				Str("reason", string(result.Reason)).
				Int("transitions", result.Transitions).
				Msg("nothing to save")
			return errNothingExtracted
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(result.Screenshots))
		log.Info().
			Str("run", result.RunID).
			Int("screenshots", len(result.Screenshots)).
			Str("dir", filepath.Join(result.OutputDir, persist.ScreenshotsDir)).
			Dur("elapsed", result.Elapsed).
			Msg("extraction complete")
		return nil
	},
}

func init() {
	addExtractFlags(extractCmd.Flags())
	_ = extractCmd.MarkFlagRequired("input")
}

func addExtractFlags(f *pflag.FlagSet) {
	defaults := config.Default()
	f.StringP("input", "i", "", "input video file (required)")
	f.StringP("output", "o", defaults.OutputDir, "output directory")
	f.IntP("count", "c", defaults.Selection.TargetCount, "number of screenshots to extract")
	f.IntP("threshold", "t", defaults.Detection.TransitionThreshold, "scene transition threshold")
	f.Float64("interval", defaults.Selection.MinSpacingSeconds, "minimum time between screenshots in seconds")
	f.String("ocr", defaults.OCR.Engine, "ocr engine: tesseract, onnx or none")
	f.String("strategy", defaults.Selection.Strategy, "selection strategy: greedy or optimal")
	f.String("format", defaults.Output.Format, "image format: png or jpeg")
	f.Int("workers", defaults.Stability.Workers, "parallel decoders used to settle transitions")
	f.Duration("timeout", defaults.Timeout, "abort the extraction after this long (0 = no limit)")
}

// applyExtractFlags copies explicitly set flags over the loaded configuration so
// flags win over the config file and environment.
func applyExtractFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "output":
			cfg.OutputDir = v
		case "count":
			cfg.Selection.TargetCount, err = strconv.Atoi(v)
		case "threshold":
			cfg.Detection.TransitionThreshold, err = strconv.Atoi(v)
		case "interval":
			cfg.Selection.MinSpacingSeconds, err = strconv.ParseFloat(v, 64)
		case "ocr":
			cfg.OCR.Engine = v
		case "strategy":
			cfg.Selection.Strategy = v
		case "format":
			cfg.Output.Format = v
		case "workers":
			cfg.Stability.Workers, err = strconv.Atoi(v)
		case "timeout":
			cfg.Timeout, err = flags.GetDuration("timeout")
		}
		if err != nil {
			err = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	return err
}

func renderSummary(list []shots.Screenshot) string {
	headers := []string{"#", "Time", "Score", "Transition", "Stability", "UI", "File"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			util.FormatClock(s.Timestamp),
			fmt.Sprintf("%.1f", s.Score),
			strconv.Itoa(s.TransitionMagnitude),
			fmt.Sprintf("%.1f", s.StabilityScore),
			fmt.Sprintf("%.0f", s.UIImportanceScore),
			s.Filename,
		})
	}
	return renderTable(headers, rows, aligns)
}
