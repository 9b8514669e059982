// cmd/coachctl/commands.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/common/validation"
	"coaching-workers/internal/followup"
	"coaching-workers/internal/models"
)

// cli carries the flags and I/O shared by every subcommand.
type cli struct {
	stdin    io.Reader
	out      io.Writer
	now      func() time.Time
	asJSON   bool
	logLevel string
	logger   logger.Logger
}

func newRootCmd(stdin io.Reader, out io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, out: out, now: time.Now, logger: logger.NewNoOpLogger()}
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coachctl",
		Short:        "Inspect coaching follow-up scores and schedules",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("log-level") {
				c.logger = logger.NewStructured(c.logLevel, "console")
			}
		},
	}
	root.SetOut(c.out)
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print results as JSON")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		c.scoreCmd(),
		c.intervalCmd(),
		c.nextDateCmd(),
		c.elapsedCmd(),
		c.bandCmd(),
	)
	return root
}

func (c *cli) scoreCmd() *cobra.Command {
	var followupType, file string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Calculate the improvement score of a diagnosis document",
		Example: `  coachctl score --type pillar --file diagnosis.json
  cat diagnosis.json | coachctl score --type workbook --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := models.FollowupCategoryType(followupType)
			if !t.Valid() {
				return fmt.Errorf("--type must be pillar or workbook, got %q", followupType)
			}

			diagnosis, err := c.readDiagnosis(file)
			if err != nil {
				return err
			}
			if diagnosis == nil {
				c.logger.Warn("diagnosis is null, scoring as absent", map[string]interface{}{"file": file})
			}

			factors := followup.ScoreFactors(diagnosis, t)
			if factors == nil {
				factors = []followup.Factor{}
			}
			score := followup.CalculateImprovementScore(diagnosis, t)
			band := followup.ClassifyImprovement(score)

			if c.asJSON {
				return c.printJSON(map[string]interface{}{
					"improvementScore": score,
					"improvementBand":  band,
					"scoreFactors":     factors,
				})
			}
			fmt.Fprintf(c.out, "score: %d (%s)\n", score, band)
			for _, f := range factors {
				fmt.Fprintf(c.out, "  %-24s %d\n", f.Signal, f.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&followupType, "type", "", "Follow-up type (pillar or workbook)")
	cmd.Flags().StringVar(&file, "file", "-", "Diagnosis JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (c *cli) readDiagnosis(file string) (*models.DiagnosisResult, error) {
	var (
		raw []byte
		err error
	)
	if file == "-" {
		raw, err = io.ReadAll(c.stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read diagnosis: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}
	if result := validation.ValidateDiagnosisJSON(text); !result.Valid {
		return nil, fmt.Errorf("invalid diagnosis: %s", result.Summary())
	}

	var d models.DiagnosisResult
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("parse diagnosis: %w", err)
	}
	return &d, nil
}

func (c *cli) intervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interval <level>",
		Short: "Show the recommended days until the next follow-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseInt("level", args[0])
			if err != nil {
				return err
			}
			days := followup.RecommendedFollowupInterval(level)

			if c.asJSON {
				return c.printJSON(map[string]interface{}{
					"progressLevel":           level,
					"recommendedIntervalDays": days,
				})
			}
			fmt.Fprintf(c.out, "%d days\n", days)
			return nil
		},
	}
}

func (c *cli) nextDateCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "next-date <level>",
		Short: "Show the next follow-up date for a progress level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseInt("level", args[0])
			if err != nil {
				return err
			}

			start := c.now()
			if from != "" {
				if start, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("--from must be RFC3339: %w", err)
				}
			}
			next := followup.NextFollowupDateFrom(start, level)

			if c.asJSON {
				return c.printJSON(map[string]interface{}{
					"progressLevel":           level,
					"recommendedIntervalDays": followup.RecommendedFollowupInterval(level),
					"nextFollowupDate":        next,
				})
			}
			fmt.Fprintln(c.out, next.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start date (RFC3339), defaults to now")
	return cmd
}

func (c *cli) elapsedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "elapsed [createdAt]",
		Short: "Describe how long ago an RFC3339 timestamp was",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var createdAt *time.Time
			if len(args) == 1 {
				t, err := time.Parse(time.RFC3339, args[0])
				if err != nil {
					return fmt.Errorf("createdAt must be RFC3339: %w", err)
				}
				createdAt = &t
			}
			elapsed := followup.TimeElapsedSince(createdAt, c.now())

			if c.asJSON {
				return c.printJSON(map[string]interface{}{"createdAt": createdAt, "elapsed": elapsed})
			}
			fmt.Fprintln(c.out, elapsed)
			return nil
		},
	}
}

func (c *cli) bandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "band <score>",
		Short: "Classify an improvement score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := parseInt("score", args[0])
			if err != nil {
				return err
			}
			band := followup.ClassifyImprovement(score)

			if c.asJSON {
				return c.printJSON(map[string]interface{}{
					"improvementScore": score,
					"improvementBand":  band,
					"progressLevel":    followup.ProgressLevelFromScore(score),
				})
			}
			fmt.Fprintln(c.out, band)
			return nil
		},
	}
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseInt(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, s)
	}
	return n, nil
}
