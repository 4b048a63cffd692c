// Command prismctl analyzes a table or CSV file through the analysis backend
// and prints the weighted quality summary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/hermes"
	"github.com/MikeSquared-Agency/Prism/internal/monitor"
	"github.com/MikeSquared-Agency/Prism/internal/report"
	"github.com/MikeSquared-Agency/Prism/internal/scoring"
	"github.com/MikeSquared-Agency/Prism/internal/session"
)

const defaultAnalystURL = "http://localhost:5000"

var (
	analystURL   string
	analystToken string
	timeout      time.Duration
	forceColor   bool
	verbose      bool

	generateInsights bool
	editsPath        string
	sets             []string
	jsonOutput       bool

	exportOut    string
	exportEntity string

	natsURL      string
	watchSubject string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "prismctl",
		Short:        "Weighted data-quality scores from the terminal",
		SilenceUsage: true,
	}

	defURL := os.Getenv("PRISM_ANALYST_URL")
	if defURL == "" {
		defURL = defaultAnalystURL
	}
	rootCmd.PersistentFlags().StringVar(&analystURL, "analyst-url", defURL, "analysis backend base URL")
	rootCmd.PersistentFlags().StringVar(&analystToken, "token", os.Getenv("PRISM_ANALYST_TOKEN"), "bearer token for the backend")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "backend request timeout")
	rootCmd.PersistentFlags().BoolVar(&forceColor, "color", false, "force colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend activity to stderr")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newDomainsCmd())
	rootCmd.AddCommand(newWatchCmd())

	return rootCmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a table or CSV file",
	}

	tableCmd := &cobra.Command{
		Use:   "table <name>",
		Short: "Analyze a database table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, func(ctx context.Context, c *session.Controller) (*session.State, error) {
				return c.AnalyzeTable(ctx, args[0], generateInsights)
			})
		},
	}

	csvCmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Upload and analyze a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open csv: %w", err)
			}
			defer f.Close()
			return runAnalyze(cmd, func(ctx context.Context, c *session.Controller) (*session.State, error) {
				return c.AnalyzeCSV(ctx, filepath.Base(args[0]), f, generateInsights)
			})
		},
	}

	for _, c := range []*cobra.Command{tableCmd, csvCmd} {
		c.Flags().BoolVar(&generateInsights, "insights", false, "ask the backend for AI insights")
		c.Flags().StringVar(&editsPath, "edits", "", "weight edits file (.toml or .yaml)")
		c.Flags().StringArrayVar(&sets, "set", nil, "weight edit field.metric=value (repeatable)")
		c.Flags().BoolVar(&jsonOutput, "json", false, "print weights and summary as JSON")
		cmd.AddCommand(c)
	}
	return cmd
}

type loadFunc func(ctx context.Context, c *session.Controller) (*session.State, error)

func runAnalyze(cmd *cobra.Command, load loadFunc) error {
	edits, err := collectEdits(editsPath, sets)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ctrl := session.New(newClient(), nil, nil, "", newLogger())
	st, err := load(ctx, ctrl)
	if err != nil {
		return err
	}
	if len(edits) > 0 {
		if st, err = ctrl.EditWeights(ctx, edits); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Weights *scoring.WeightConfig `json:"weights"`
			Summary *scoring.TableSummary `json:"summary"`
		}{st.Weights, st.Summary})
	}
	return report.Render(out, st.Summary, report.Options{Color: report.ShouldUseColor(out, forceColor)})
}

func collectEdits(path string, sets []string) ([]scoring.Edit, error) {
	var edits []scoring.Edit
	if path != "" {
		fromFile, err := loadEdits(path)
		if err != nil {
			return nil, err
		}
		edits = append(edits, fromFile...)
	}
	for _, s := range sets {
		e, err := parseSet(s)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check backend reachability and language model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mon := monitor.New(newClient(), nil, newLogger())
			s := mon.Probe(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend   %s  %s\n", analystURL, upDown(s.Reachable))
			if s.Reachable {
				model := s.Model
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(out, "llm       %s  %s\n", model, upDown(s.LLMConnected))
			}
			if s.Error != "" {
				fmt.Fprintf(out, "error     %s\n", s.Error)
			}
			if !s.Reachable {
				return fmt.Errorf("backend unreachable")
			}
			return nil
		},
	}
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Analyze a table and save the backend's PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ctrl := session.New(newClient(), nil, nil, "", newLogger())
			if _, err := ctrl.AnalyzeTable(ctx, args[0], false); err != nil {
				return err
			}
			rc, entity, err := ctrl.ExportPDF(ctx, exportEntity)
			if err != nil {
				return err
			}
			defer rc.Close()

			path := exportOut
			if path == "" {
				path = fmt.Sprintf("analysis_%s.pdf", entity)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			n, err := io.Copy(f, rc)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default analysis_<table>.pdf)")
	cmd.Flags().StringVar(&exportEntity, "entity", "", "entity name printed in the report")
	return cmd
}

func newDomainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List data domains known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			domains, err := newClient().ListDomains(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range domains {
				fmt.Fprintln(cmd.OutOrStdout(), d.Name)
			}
			return nil
		},
	}
}

func newClient() *analyst.HTTPClient {
	return analyst.NewHTTPClient(analystURL, analystToken, timeout)
}

func newLogger() *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newWatchCmd() *cobra.Command {
	defNATS := os.Getenv("PRISM_HERMES_URL")
	if defNATS == "" {
		defNATS = "nats://localhost:4222"
	}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow events published by a running Prism service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hc, err := hermes.NewNATSClient(ctx, natsURL, newLogger())
			if err != nil {
				return err
			}
			defer hc.Close()

			out := cmd.OutOrStdout()
			events := make(chan string, 64)
			err = hc.Subscribe(watchSubject, func(subject string, data []byte) {
				select {
				case events <- formatEvent(subject, data):
				default:
				}
			})
			if err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case line := <-events:
					fmt.Fprintln(out, line)
				}
			}
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", defNATS, "NATS server URL")
	cmd.Flags().StringVar(&watchSubject, "subject", hermes.SubjectAll, "subject to follow")
	return cmd
}

// formatEvent renders one message as "time subject data". Messages that are
// not envelopes are printed raw.
func formatEvent(subject string, data []byte) string {
	env, err := hermes.DecodeEnvelope(data)
	if err != nil || env.Timestamp.IsZero() {
		return fmt.Sprintf("%s  %s", subject, data)
	}
	return fmt.Sprintf("%s  %s  %s", env.Timestamp.Local().Format("15:04:05"), subject, env.Data)
}
