package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pavelanni/examscore/internal/bank"
	appI18n "github.com/pavelanni/examscore/internal/i18n"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/scoring"
	"github.com/pavelanni/examscore/internal/stats"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load questions and exams from a JSON file",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.StringSliceP("file", "f", nil, "Paths to question bank JSON files (repeatable)")
	addStoreFlags(f)
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of an exam as JSON",
		RunE:  runStats,
	}
	f := cmd.Flags()
	f.String("exam-id", "", "Exam identifier (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addStoreFlags(f)
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Print a student's result history as JSON",
		RunE:  runResults,
	}
	f := cmd.Flags()
	f.String("student-id", "", "Student identifier (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "en", "Language for placeholders (en, vi)")
	addStoreFlags(f)
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("student-id")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	for _, path := range v.GetStringSlice("file") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		sum, err := bank.Import(ctx, db, filepath.Clean(path), data)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if sum.Unchanged {
			slog.Info("bank file unchanged, skipping", "path", path)
			continue
		}
		slog.Info("imported bank file",
			"path", path,
			"questions_added", sum.QuestionsAdded,
			"questions_skipped", sum.QuestionsSkipped,
			"exams_added", sum.ExamsAdded,
			"exams_skipped", sum.ExamsSkipped,
		)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	st, err := stats.New(db).Compute(ctx, v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("compute statistics: %w", err)
	}
	return writeOutput(v.GetString("output"), stats.Display(*st))
}

func runResults(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	summaries, err := scoring.NewEngine(db, db, nil).ListResults(ctx, v.GetString("student-id"))
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	for i := range summaries {
		if summaries[i].Status == model.ResultDeleted {
			summaries[i].ExamName = appI18n.T(context.Background(), "ExamDeleted")
		}
	}
	return writeOutput(v.GetString("output"), summaries)
}

// writeOutput writes v as indented JSON to path, or stdout for "-".
func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
