package main

// Example command that loads the training split of a student record store
// and converts the first few batches into gomlx tensors.
//
// Usage:
//   go run ./datasets/example -db student_data.db -batches 2
//
// The source driver and schema come from the config file when -config is
// set; otherwise the defaults (sqlite at student_data.db, auto-detected
// schema) are used.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/Noofbiz/studentSeq/config"
	"github.com/Noofbiz/studentSeq/datasets"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/Noofbiz/studentSeq/source"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	dbPath := flag.String("db", "", "override source.path")
	split := flag.String("split", "train", "split to load: train or test")
	maxBatches := flag.Int("batches", 2, "number of batches to print")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Source.Path = *dbPath
	}
	s, err := records.ParseSplit(*split)
	if err != nil {
		log.Fatal(err)
	}

	src, err := source.Open(cfg.Source)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	opts, err := datasets.OptionsFromConfig(cfg.Dataset, s)
	if err != nil {
		log.Fatal(err)
	}
	ds, err := datasets.Load(context.Background(), src, opts, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}

	fmt.Printf("Dataset %s: %d samples, schema %s, target %s\n", ds.Name(), ds.Len(), ds.Schema(), ds.Mode())
	fmt.Printf("Numeric columns: %v\n", datasets.NumericColumns(ds.Schema()))

	for i := 0; i < *maxBatches; i++ {
		b, err := ds.NextBatch()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("failed to build batch: %v", err)
		}
		bt, err := b.ToGomlxTensors()
		if err != nil {
			log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
		}
		fmt.Printf("Batch %d: size=%d seq_len=%d features=%d\n", i, b.Size, b.SeqLen, b.Features)
		fmt.Printf("  numeric tensor: %v\n", bt.Numeric.Shape().Dimensions)
		fmt.Printf("  target tensor:  %v\n", bt.Target.Shape().Dimensions)
		if bt.Aux != nil {
			fmt.Printf("  aux tensor:     %v\n", bt.Aux.Shape().Dimensions)
		}
		if b.Size > 0 {
			fmt.Printf("  first sample grades: %v target=%.2f\n", firstGrades(b), b.Target[0])
		}
	}
}

// firstGrades returns the grade column of sample 0.
func firstGrades(b *datasets.Batch) []float32 {
	out := make([]float32, b.SeqLen)
	for t := range out {
		out[t] = b.NumericAt(0, t)[0]
	}
	return out
}
