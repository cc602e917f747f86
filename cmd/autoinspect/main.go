// Package main provides the autoinspect binary entry point: an offline
// vehicle inspection record keeper and PDF report generator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autoinspect/config"
	"autoinspect/internal/blob"
	"autoinspect/internal/core"
	"autoinspect/pkg/domain"
)

const appName = "autoinspect"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	service *core.Service
	store   core.PersistentStore
	logger  *slog.Logger
	close   func() error
}

func (a *app) Close() error {
	if a.close != nil {
		return a.close()
	}
	return nil
}

func openApp(logLevel string) (*app, error) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	engine := domain.NewRulesEngine()
	engine.Register(core.NewVehiclePresenceRule())
	engine.Register(core.NewYearRangeRule(time.Now))
	engine.Register(core.NewPhotoPayloadCapRule(cfg.Photos.MaxPayloadBytes))

	store, err := core.OpenPersistentStore(core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, engine)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}

	artifacts, err := openArtifacts(cfg)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	service := core.NewService(store,
		core.WithLogger(logger),
		core.WithArtifactStore(artifacts),
	)

	closeFn := func() error {
		if closer, ok := store.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
	return &app{cfg: cfg, service: service, store: store, logger: logger, close: closeFn}, nil
}

func openArtifacts(cfg *config.Config) (blob.Store, error) {
	switch blob.Driver(cfg.Archive.Driver) {
	case blob.DriverFilesystem, "":
		return blob.NewFilesystem(cfg.Archive.Root)
	case blob.DriverS3:
		return blob.OpenFromEnv(context.Background())
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Archive.Driver)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Offline vehicle inspection records and PDF reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		listCmd(&logLevel),
		showCmd(&logLevel),
		newCmd(&logLevel),
		saveCmd(&logLevel),
		deleteCmd(&logLevel),
		purgeCmd(&logLevel),
		agentCmd(&logLevel),
		reportCmd(&logLevel),
		previewCmd(&logLevel),
		migrateCmd(&logLevel),
	)
	return cmd
}

// withApp wraps a command body with app construction and teardown.
func withApp(logLevel *string, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(*logLevel)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return fn(cmd.Context(), a, args)
	}
}

func listCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored inspections, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(logLevel, func(ctx context.Context, a *app, _ []string) error {
			recs, err := a.service.ListInspections(ctx)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("no inspections stored")
				return nil
			}
			for _, rec := range recs {
				vehicle := rec.PrimaryVehicle()
				status := " "
				if rec.PDFGenerated {
					status = "R"
				}
				fmt.Printf("%s  %-10s  %-20s  %s %s %s  vehicles=%d\n",
					status,
					rec.InspectionDate.Format("2006-01-02"),
					rec.AgentName,
					vehicle.Make, vehicle.Model, vehicle.Year,
					len(rec.Vehicles))
				fmt.Printf("   id: %s\n", rec.ID)
			}
			return nil
		}),
	}
}

func showCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one inspection as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logLevel, func(ctx context.Context, a *app, args []string) error {
			rec, ok, err := a.service.GetInspection(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("inspection %s not found", args[0])
			}
			return printJSON(rec)
		}),
	}
}

func newCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Print a blank inspection prefilled with the default agent name",
		Args:  cobra.NoArgs,
		RunE: withApp(logLevel, func(ctx context.Context, a *app, _ []string) error {
			insp, err := a.service.NewInspection(ctx)
			if err != nil {
				return err
			}
			return printJSON(insp)
		}),
	}
}

func saveCmd(logLevel *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save an inspection record from a JSON file",
		Args:  cobra.NoArgs,
		RunE: withApp(logLevel, func(ctx context.Context, a *app, _ []string) error {
			rec, err := readRecord(file)
			if err != nil {
				return err
			}
			if rec.ID == "" {
				return fmt.Errorf("record has no id; use %s report to save and generate in one step", appName)
			}
			res, err := a.service.SaveInspection(ctx, rec)
			if err != nil {
				if domain.IsQuotaExceeded(err) {
					return fmt.Errorf("storage is full; delete older inspections and retry: %w", err)
				}
				return err
			}
			printWarnings(res)
			fmt.Println("saved", rec.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the record (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func deleteCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logLevel, func(ctx context.Context, a *app, args []string) error {
			deleted, err := a.service.DeleteInspection(ctx, args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Println("nothing to delete")
				return nil
			}
			fmt.Println("deleted", args[0])
			return nil
		}),
	}
}

func purgeCmd(logLevel *string) *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all inspections older than a date",
		Args:  cobra.NoArgs,
		RunE: withApp(logLevel, func(ctx context.Context, a *app, _ []string) error {
			cutoff, err := time.Parse("2006-01-02", before)
			if err != nil {
				return fmt.Errorf("parse --before: %w", err)
			}
			recs, err := a.service.ListInspections(ctx)
			if err != nil {
				return err
			}
			kept := make([]domain.SavedInspection, 0, len(recs))
			for _, rec := range recs {
				if !rec.InspectionDate.Before(cutoff) {
					kept = append(kept, rec)
				}
			}
			removed := len(recs) - len(kept)
			if removed == 0 {
				fmt.Println("nothing to purge")
				return nil
			}
			if _, err := a.service.OverwriteAllInspections(ctx, kept); err != nil {
				return err
			}
			fmt.Printf("purged %d inspection(s)\n", removed)
			return nil
		}),
	}
	cmd.Flags().StringVar(&before, "before", "", "Cutoff date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}

func agentCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Read or set the default agent name",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the default agent name",
		Args:  cobra.NoArgs,
		RunE: withApp(logLevel, func(ctx context.Context, a *app, _ []string) error {
			name, err := a.service.DefaultAgentName(ctx)
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name>",
		Short: "Set the default agent name",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(logLevel, func(ctx context.Context, a *app, args []string) error {
			return a.service.SaveDefaultAgentName(ctx, args[0])
		}),
	})
	return cmd
}

func reportCmd(logLevel *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "report [id]",
		Short: "Save an inspection and generate its PDF report",
		Long: `Runs the save-and-generate workflow: the record is saved first, the PDF
is rendered and written to the report directory, then the record is marked
as generated. Pass a stored id, or --file with a working inspection JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(logLevel, func(ctx context.Context, a *app, args []string) error {
			insp, err := resolveInspection(ctx, a, args, file)
			if err != nil {
				return err
			}
			outcome, err := a.service.GenerateReport(ctx, insp)
			if err != nil {
				return reportError(err, outcome)
			}
			fmt.Println("report written:", outcome.Filename)
			fmt.Println("inspection id:", outcome.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with a working inspection (- for stdin)")
	return cmd
}

// reportError translates workflow failures into the distinct user-facing
// messages each step calls for.
func reportError(err error, outcome core.ReportOutcome) error {
	var wf *core.WorkflowError
	if !errors.As(err, &wf) {
		return err
	}
	switch wf.Step {
	case core.StepSave:
		if domain.IsQuotaExceeded(wf.Err) {
			return fmt.Errorf("save failed, storage is full; delete older inspections to free space: %w", wf.Err)
		}
		return fmt.Errorf("save failed, no report was generated: %w", wf.Err)
	case core.StepRender:
		return fmt.Errorf("report generation failed; the inspection data was saved and is safe: %w", wf.Err)
	case core.StepFlag:
		fmt.Println("report written:", outcome.Filename)
		return fmt.Errorf("report was produced but the generated flag could not be recorded; the stored record may look not-yet-generated: %w", wf.Err)
	default:
		return err
	}
}

func previewCmd(logLevel *string) *cobra.Command {
	var (
		file     string
		textOnly bool
		out      string
	)
	cmd := &cobra.Command{
		Use:   "preview [id]",
		Short: "Render an in-memory report preview",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(logLevel, func(ctx context.Context, a *app, args []string) error {
			insp, err := resolveInspection(ctx, a, args, file)
			if err != nil {
				return err
			}
			var url string
			if textOnly {
				url, err = a.service.GenerateReportPreviewTextOnly(ctx, insp)
			} else {
				url, err = a.service.GenerateReportPreview(ctx, insp)
			}
			if err != nil {
				return err
			}
			defer a.service.RevokePreview(ctx, url)
			data, ok := a.service.OpenPreview(ctx, url)
			if !ok {
				return fmt.Errorf("preview %s not available", url)
			}
			if out == "" {
				fmt.Printf("preview %s (%d bytes)\n", url, len(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Println("preview written:", out)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with a working inspection (- for stdin)")
	cmd.Flags().BoolVar(&textOnly, "text-only", false, "Skip image embedding for a fast check")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the preview PDF to this path")
	return cmd
}

func migrateCmd(logLevel *string) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import records from the legacy flat-list file (runs at most once)",
		Args:  cobra.NoArgs,
		RunE: withApp(logLevel, func(ctx context.Context, a *app, _ []string) error {
			if path == "" {
				path = a.cfg.Legacy.StorePath
			}
			n, err := a.service.MigrateLegacyStore(ctx, path)
			if err != nil {
				return err
			}
			fmt.Printf("migration complete, %d record(s) imported\n", n)
			return nil
		}),
	}
	cmd.Flags().StringVar(&path, "path", "", "Legacy store file (default from config)")
	return cmd
}

// resolveInspection loads the subject either from the store by id or from a
// JSON file holding a working inspection.
func resolveInspection(ctx context.Context, a *app, args []string, file string) (domain.Inspection, error) {
	switch {
	case len(args) == 1:
		rec, ok, err := a.service.GetInspection(ctx, args[0])
		if err != nil {
			return domain.Inspection{}, err
		}
		if !ok {
			return domain.Inspection{}, fmt.Errorf("inspection %s not found", args[0])
		}
		return rec.Inspection, nil
	case file != "":
		var insp domain.Inspection
		if err := readJSONFile(file, &insp); err != nil {
			return domain.Inspection{}, err
		}
		return insp, nil
	default:
		return domain.Inspection{}, fmt.Errorf("pass an inspection id or --file")
	}
}

func readRecord(file string) (domain.SavedInspection, error) {
	var rec domain.SavedInspection
	err := readJSONFile(file, &rec)
	return rec, err
}

func readJSONFile(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(res domain.Result) {
	for _, violation := range res.Violations {
		if violation.Severity != domain.SeverityBlock {
			fmt.Fprintf(os.Stderr, "warning [%s]: %s\n", violation.Rule, violation.Message)
		}
	}
}
