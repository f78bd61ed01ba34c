// Command seqstats loads both splits of a student record store, reports their
// shapes and split fingerprints, evaluates the reference encoder and the KNN
// baseline on the test split and plots the target distributions.
//
// Usage:
//
//	go run ./cmd/seqstats -config config.yaml -out plots -out-csv output/test_predictions.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Noofbiz/studentSeq/baseline"
	"github.com/Noofbiz/studentSeq/config"
	"github.com/Noofbiz/studentSeq/datasets"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/Noofbiz/studentSeq/seqmodel"
	"github.com/Noofbiz/studentSeq/source"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (defaults apply when empty)")
	dbPath := flag.String("db", "", "override source.path (sqlite file or csv directory)")
	driver := flag.String("driver", "", "override source.driver: sqlite, postgres or csv")
	seqLen := flag.Int("seq-len", 0, "override dataset.seq_len")
	outDir := flag.String("out", "plots", "output directory for generated plots (empty disables plotting)")
	outCSV := flag.String("out-csv", "", "if set, write per-sample test predictions to this path")
	evaluate := flag.Bool("eval", true, "evaluate the reference encoder and the KNN baseline on the test split")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Source.Path = *dbPath
	}
	if *driver != "" {
		cfg.Source.Driver = *driver
	}
	if *seqLen > 0 {
		cfg.Dataset.SeqLen = *seqLen
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		// stderr sync fails on some terminals; nothing useful to do about it
		_ = logger.Sync()
	}()

	if err := run(context.Background(), cfg, logger, *outDir, *outCSV, *evaluate); err != nil {
		logger.Fatal("seqstats failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	if err := zc.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, outDir, outCSV string, evaluate bool) error {
	src, err := source.Open(cfg.Source)
	if err != nil {
		return err
	}

	splits := make(map[records.Split]*datasets.StudentDataset, 2)
	for _, split := range []records.Split{records.SplitTrain, records.SplitTest} {
		opts, err := datasets.OptionsFromConfig(cfg.Dataset, split)
		if err != nil {
			return err
		}
		ds, err := datasets.Load(ctx, src, opts, logger.With(zap.String("split", string(split))))
		if err != nil {
			return fmt.Errorf("load %s: %w", split, err)
		}
		splits[split] = ds
		if err := report(ds); err != nil {
			return err
		}
	}
	train, test := splits[records.SplitTrain], splits[records.SplitTest]

	if outDir != "" {
		path, err := plotTargets(outDir, train, test)
		if err != nil {
			return fmt.Errorf("plot targets: %w", err)
		}
		logger.Info("wrote target histogram", zap.String("path", path))
	}

	if !evaluate || train.Len() == 0 || test.Len() == 0 {
		return nil
	}
	return evaluateModels(cfg.Model, train, test, outCSV, logger)
}

// report prints the shape summary of one split.
func report(ds *datasets.StudentDataset) error {
	stats := ds.Stats()
	fmt.Printf("%s\n", ds.Name())
	fmt.Printf("  samples=%d groups=%d short_groups=%d missing_targets=%d\n",
		ds.Len(), stats.Groups, stats.ShortGroups, stats.MissingTargets)
	fmt.Printf("  students=%d fingerprint=%s\n",
		len(mustIDs(ds.Assignment(), ds.Split())), ds.Assignment().Fingerprint(ds.Split()))
	fmt.Printf("  numeric columns=%v\n", datasets.NumericColumns(ds.Schema()))

	if ds.Len() == 0 {
		return nil
	}
	_, inputs, labels, err := ds.Yield()
	ds.Reset()
	if err != nil {
		return fmt.Errorf("first batch of %s: %w", ds.Name(), err)
	}
	names := []string{"subject", "absence", "club", "event", "week", "numeric", "aux"}
	for i, t := range inputs {
		fmt.Printf("  %-8s %v\n", names[i], t.Shape().Dimensions)
	}
	fmt.Printf("  %-8s %v\n", "target", labels[0].Shape().Dimensions)
	return nil
}

func mustIDs(a *records.Assignment, s records.Split) []int64 {
	ids, err := a.IDs(s)
	if err != nil {
		return nil
	}
	return ids
}

func modelConfig(mc config.ModelConf, ds *datasets.StudentDataset) (seqmodel.Config, error) {
	cfg, err := seqmodel.ConfigForSchema(ds.Schema())
	if err != nil {
		return seqmodel.Config{}, err
	}
	cfg.EmbedDim = mc.EmbedDim
	cfg.HiddenDim = mc.HiddenDim
	cfg.MaxSeqLen = mc.MaxSeqLen
	cfg.Pooling = seqmodel.Pooling(mc.Pooling)
	cfg.Seed = mc.Seed
	switch {
	case mc.PredType != "":
		cfg.PredType = seqmodel.PredType(mc.PredType)
	case ds.Mode() == datasets.TargetRiskFlag:
		cfg.PredType = seqmodel.PredBinary
	default:
		cfg.PredType = seqmodel.PredRegression
	}
	return cfg, nil
}

func evaluateModels(mc config.ModelConf, train, test *datasets.StudentDataset, outCSV string, logger *zap.Logger) error {
	batches, err := test.Batches()
	if err != nil {
		return err
	}

	modelCfg, err := modelConfig(mc, train)
	if err != nil {
		return err
	}
	encoder, err := seqmodel.NewEncoder(modelCfg)
	if err != nil {
		return err
	}
	knn, err := baseline.Fit(train.Samples(), mc.Neighbors)
	if err != nil {
		return err
	}

	predictors := []struct {
		name string
		p    seqmodel.Predictor
	}{
		{"encoder (untrained)", encoder},
		{fmt.Sprintf("knn k=%d", mc.Neighbors), knn},
	}
	for _, pr := range predictors {
		m, err := seqmodel.Evaluate(pr.p, batches)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", pr.name, err)
		}
		fmt.Printf("%-20s n=%d mse=%.4f mae=%.4f acc=%.3f\n", pr.name, m.N, m.MSE, m.MAE, m.Accuracy)
		logger.Debug("evaluated", zap.String("predictor", pr.name), zap.Float64("mse", m.MSE))
	}

	if outCSV == "" {
		return nil
	}
	return writePredictions(outCSV, test, batches, encoder, knn)
}

// writePredictions writes one row per test sample in Yield order.
func writePredictions(path string, test *datasets.StudentDataset, batches []*datasets.Batch, encoder, knn seqmodel.Predictor) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"idx", "student_id", "target", "encoder", "knn"})
	idx := 0
	for _, b := range batches {
		encPreds, err := encoder.Predict(b)
		if err != nil {
			return err
		}
		knnPreds, err := knn.Predict(b)
		if err != nil {
			return err
		}
		for i := 0; i < b.Size; i++ {
			s, err := test.Example(idx)
			if err != nil {
				return err
			}
			_ = w.Write([]string{
				strconv.Itoa(idx),
				strconv.FormatInt(s.StudentID, 10),
				strconv.FormatFloat(float64(b.Target[i]), 'f', 4, 32),
				strconv.FormatFloat(float64(encPreds[i]), 'f', 4, 32),
				strconv.FormatFloat(float64(knnPreds[i]), 'f', 4, 32),
			})
			idx++
		}
	}
	w.Flush()
	return w.Error()
}
