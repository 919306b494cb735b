package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/grading"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/keyfile"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/store"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade [flags] SHEET.json...",
		Short: "Grade recognized answer sheets against an answer key",
		Long: `Grade one or more recognized sheets. Each sheet is a JSON object with
student_id, student_name and answers (question -> label, "" or "-" for blank).
The key comes from --key (a JSON or YAML file) or --key-id (a stored key).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGrade,
	}
	f := cmd.Flags()
	f.String("key", "", "Answer-key file")
	f.String("key-id", "", "Answer-key ID (selects a key inside --key, or a stored key)")
	f.Bool("save", false, "Store the results (and the key from --key) in the database")
	f.Int("workers", 4, "Sheets graded concurrently (0 = unbounded)")
	f.StringP("output", "o", "", "Write results as JSON to this file (- for stdout)")
	addStoreFlags(f)
	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [flags] IMAGE...",
		Short: "Recognize sheet images and grade them against a stored key",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScan,
	}
	f := cmd.Flags()
	f.String("key-id", "", "Stored answer-key ID (required)")
	f.String("class-id", "", "Class the scanned students belong to")
	f.Bool("save", true, "Store the results in the database")
	f.StringP("output", "o", "", "Write results as JSON to this file (- for stdout)")
	_ = cmd.MarkFlagRequired("key-id")
	addRecognizerFlags(f)
	addStoreFlags(f)
	return cmd
}

func importKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-keys FILE...",
		Short: "Import answer keys from JSON or YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			defaults, err := settingsFromConfig(v)
			if err != nil {
				return err
			}
			db, err := openStore(v)
			if err != nil {
				return err
			}
			defer db.Close()
			return importKeyFiles(db, args, defaults)
		},
	}
	addStoreFlags(cmd.Flags())
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print class statistics and question difficulty for a stored key",
		RunE:  runStats,
	}
	f := cmd.Flags()
	f.String("key-id", "", "Stored answer-key ID (required)")
	f.String("class-id", "", "Only include results of this class")
	f.Bool("json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("key-id")
	addStoreFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export keys, roster, results and settings as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "", "Output file path (default: stdout)")
	addStoreFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a JSON export produced by the export command",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	addStoreFlags(cmd.Flags())
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print a bcrypt hash for --admin-password-hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

// storedSettings returns the settings saved in the database, falling back
// to the configured defaults.
func storedSettings(db *store.Store, v *viper.Viper) (model.Settings, error) {
	defaults, err := settingsFromConfig(v)
	if err != nil {
		return defaults, err
	}
	return db.GetSettings(defaults)
}

// resolveKey picks the answer key for grade: from --key when given,
// otherwise from the database by --key-id.
func resolveKey(v *viper.Viper, db *store.Store) (model.AnswerKey, error) {
	id := v.GetString("key-id")
	path := v.GetString("key")
	if path == "" {
		if id == "" {
			return model.AnswerKey{}, errors.New("one of --key or --key-id is required")
		}
		return db.GetAnswerKey(id)
	}

	file, err := keyfile.Load(path)
	if err != nil {
		return model.AnswerKey{}, err
	}
	if id == "" {
		if len(file.Keys) > 1 {
			return model.AnswerKey{}, fmt.Errorf("%s holds %d keys, pick one with --key-id", path, len(file.Keys))
		}
		return file.Keys[0], nil
	}
	for _, k := range file.Keys {
		if k.ID == id {
			return k, nil
		}
	}
	return model.AnswerKey{}, fmt.Errorf("answer key %s not in %s: %w", id, path, store.ErrNotFound)
}

func runGrade(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	settings, err := storedSettings(db, v)
	if err != nil {
		return err
	}
	key, err := resolveKey(v, db)
	if err != nil {
		return err
	}
	if err := key.Validate(settings.OptionAlphabet); err != nil {
		return err
	}

	subs := make([]grading.Submission, 0, len(args))
	for _, path := range args {
		sub, err := keyfile.LoadSheet(path)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}

	eng, err := grading.NewEngine(settings)
	if err != nil {
		return err
	}
	results, err := grading.GradeBatch(cmd.Context(), eng, key, subs, v.GetInt("workers"))
	if err != nil {
		return err
	}

	if v.GetBool("save") {
		if v.GetString("key") != "" {
			if err := db.SaveAnswerKey(&key); err != nil {
				return fmt.Errorf("save answer key: %w", err)
			}
		}
		if err := saveResults(db, results); err != nil {
			return err
		}
	}
	return writeResults(cmd, v, eng, results)
}

func runScan(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	settings, err := storedSettings(db, v)
	if err != nil {
		return err
	}
	key, err := db.GetAnswerKey(v.GetString("key-id"))
	if err != nil {
		return err
	}
	eng, err := grading.NewEngine(settings)
	if err != nil {
		return err
	}

	rec := newRecognizer(v)
	ctx := cmd.Context()

	// Images are recognized one at a time; the recognizer is the bottleneck
	// and processes requests serially.
	results := make([]model.ExamResult, 0, len(args))
	for _, path := range args {
		image, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		recognized, err := rec.Process(ctx, filepath.Base(path), image)
		if err != nil {
			return fmt.Errorf("recognize %s: %w", path, err)
		}
		if recognized.MultiMarkedCount > 0 {
			slog.Warn("sheet has multi-marked questions", "file", path, "count", recognized.MultiMarkedCount)
		}
		res, err := eng.Evaluate(key, grading.Submission{
			StudentID:        stem(path),
			ClassID:          v.GetString("class-id"),
			Answers:          recognized.Answers,
			MultiMarkedCount: recognized.MultiMarkedCount,
			MarkedImage:      recognized.MarkedImage,
		})
		if err != nil {
			return fmt.Errorf("grade %s: %w", path, err)
		}
		results = append(results, res)
	}

	if v.GetBool("save") {
		if err := saveResults(db, results); err != nil {
			return err
		}
	}
	return writeResults(cmd, v, eng, results)
}

func saveResults(db *store.Store, results []model.ExamResult) error {
	if err := db.SaveResults(results); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	slog.Info("saved results", "count", len(results))
	return nil
}

// writeResults prints a summary table, or JSON when --output is set.
func writeResults(cmd *cobra.Command, v *viper.Viper, eng *grading.Engine, results []model.ExamResult) error {
	if out := v.GetString("output"); out != "" {
		return writeJSONFile(cmd, out, results)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tSCORE\tPERCENT\tGRADE\tRESULT\tPERFORMANCE")
	for _, res := range results {
		status := "FAIL"
		if res.Passed {
			status = "PASS"
		}
		fmt.Fprintf(w, "%s\t%.2f/%.2f\t%.2f%%\t%s\t%s\t%s\n",
			res.StudentID, res.Summary.TotalScore, res.Summary.MaxPossibleScore,
			res.Summary.Percentage, res.Grade, status, res.Performance.Category)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(results) > 1 {
		stats := eng.ClassStatistics(model.Summaries(results))
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d students, average %.2f%%, passed %d (%.2f%%)\n",
			stats.TotalStudents, stats.AveragePercentage, stats.PassCount, stats.PassPercentage)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	settings, err := storedSettings(db, v)
	if err != nil {
		return err
	}
	key, err := db.GetAnswerKey(v.GetString("key-id"))
	if err != nil {
		return err
	}
	classID := v.GetString("class-id")
	results, err := db.ListResultsByAnswerKey(key.ID, classID)
	if err != nil {
		return err
	}
	eng, err := grading.NewEngine(settings)
	if err != nil {
		return err
	}
	report := eng.Report(key, results)
	report.ClassID = classID

	if v.GetBool("json") {
		return writeJSONFile(cmd, "-", report)
	}

	out := cmd.OutOrStdout()
	s := report.Statistics
	fmt.Fprintf(out, "%s (%s)\n", report.ExamName, report.AnswerKeyID)
	fmt.Fprintf(out, "students: %d  average: %.2f (%.2f%%)  highest: %.2f  lowest: %.2f\n",
		s.TotalStudents, s.AverageScore, s.AveragePercentage, s.HighestScore, s.LowestScore)
	fmt.Fprintf(out, "passed: %d  failed: %d  pass rate: %.2f%%\n\n", s.PassCount, s.FailCount, s.PassPercentage)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUESTION\tCORRECT\tINCORRECT\tUNANSWERED\tDIFFICULTY")
	for _, q := range grading.SortedQuestions(key.Answers) {
		d, ok := report.Questions[q]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%.2f%%\t%s\n",
			q, d.CorrectPercentage, d.IncorrectPercentage, d.UnansweredPercentage, d.Difficulty)
	}
	return w.Flush()
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	defaults, err := settingsFromConfig(v)
	if err != nil {
		return err
	}
	data, err := db.ExportAll(defaults)
	if err != nil {
		return fmt.Errorf("export data: %w", err)
	}
	if err := writeJSONFile(cmd, v.GetString("output"), data); err != nil {
		return err
	}
	slog.Info("export complete", "answer_keys", len(data.AnswerKeys), "results", len(data.Results))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var data model.DataExport
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	defaults, err := settingsFromConfig(v)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.ImportAll(data, defaults)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	slog.Info("import complete", "answer_keys", len(data.AnswerKeys), "students", len(data.Students), "results", n)
	return nil
}

// importKeyFiles loads answer-key files into the store. A file whose hash
// matches the last import is skipped; a changed file is re-imported and
// its keys replaced.
func importKeyFiles(db *store.Store, paths []string, defaults model.Settings) error {
	if len(paths) == 0 {
		return nil
	}
	settings, err := db.GetSettings(defaults)
	if err != nil {
		return err
	}

	for _, path := range paths {
		file, err := keyfile.Load(path)
		if err != nil {
			return err
		}

		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == file.Hash {
			slog.Info("answer-key file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("answer-key file changed since last import, replacing keys", "path", path)
		}

		for i := range file.Keys {
			if err := file.Keys[i].Validate(settings.OptionAlphabet); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := db.SaveAnswerKey(&file.Keys[i]); err != nil {
				return fmt.Errorf("save answer key from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(path, file.Hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported answer keys", "path", path, "count", len(file.Keys))
	}
	return nil
}

// writeJSONFile writes v as indented JSON to path, or stdout for "" and "-".
func writeJSONFile(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = cmd.OutOrStdout()
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
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if path != "" && path != "-" {
		slog.Info("wrote output", "path", path)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
