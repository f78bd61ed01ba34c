package datasets

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/Noofbiz/studentSeq/config"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/Noofbiz/studentSeq/source"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"go.uber.org/zap"
)

// Options controls Load.
type Options struct {
	SeqLen     int
	Split      records.Split
	TestRatio  float64
	Seed       int64
	Target     TargetMode // zero picks DefaultTargetMode for the schema read
	WeekPeriod int
	Risk       records.RiskRule
	BatchSize  int
}

// DefaultOptions loads the train split with windows of 8 steps.
func DefaultOptions() Options {
	return Options{
		SeqLen:     8,
		Split:      records.SplitTrain,
		TestRatio:  0.2,
		Seed:       42,
		WeekPeriod: 52,
		Risk:       records.DefaultRiskRule(),
		BatchSize:  32,
	}
}

// OptionsFromConfig builds Options for split from the dataset section of the
// configuration.
func OptionsFromConfig(c config.DatasetConf, split records.Split) (Options, error) {
	mode, err := ParseTargetMode(c.Target)
	if err != nil {
		return Options{}, err
	}
	return Options{
		SeqLen:     c.SeqLen,
		Split:      split,
		TestRatio:  c.TestRatio,
		Seed:       c.Seed,
		Target:     mode,
		WeekPeriod: c.WeekPeriod,
		Risk:       c.Risk,
		BatchSize:  c.BatchSize,
	}, nil
}

func (o Options) validate() error {
	if o.SeqLen < 1 {
		return fmt.Errorf("sequence length must be positive, got %d", o.SeqLen)
	}
	if _, err := records.ParseSplit(string(o.Split)); err != nil {
		return err
	}
	if o.TestRatio < 0 || o.TestRatio > 1 {
		return fmt.Errorf("test ratio must be in [0, 1], got %g", o.TestRatio)
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	return nil
}

// Load reads the tables from src, joins them, assigns students to splits,
// keeps the requested split and encodes every window. Any fatal error returns
// a nil dataset; dropped groups and windows are only counted.
func Load(ctx context.Context, src source.Source, opts Options, logger *zap.Logger) (*StudentDataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	tables, err := src.ReadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	schema := tables.Schema
	mode := opts.Target
	if mode == 0 {
		mode = DefaultTargetMode(schema)
	}
	logger.Info("tables read",
		zap.Stringer("schema", schema),
		zap.Int("rows", tables.Rows()),
		zap.Stringer("target", mode))

	events, err := records.Join(tables)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	if mode == TargetRiskFlag && (schema != records.SchemaLegacy || !tables.HasTarget) {
		// risk spans count series steps: weeks for legacy, school days for current
		steps := "weeks"
		if schema == records.SchemaCurrent {
			steps = "days"
		}
		logger.Debug("deriving risk flags",
			zap.String("steps", steps),
			zap.Int("recent_weeks", opts.Risk.RecentWeeks),
			zap.Int("prior_weeks", opts.Risk.PriorWeeks),
			zap.Float64("threshold", opts.Risk.Threshold))
		if err := records.DeriveRiskTargets(events, opts.Risk); err != nil {
			return nil, err
		}
	}

	assignment, err := records.AssignSplit(records.StudentIDs(events), opts.TestRatio, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return nil, err
	}
	selected := records.Filter(events, assignment, opts.Split)
	logger.Info("split assigned",
		zap.Int("train_students", len(assignment.Train())),
		zap.Int("test_students", len(assignment.Test())),
		zap.String("split", string(opts.Split)),
		zap.Stringer("fingerprint", assignment.Fingerprint(opts.Split)),
		zap.Int("rows", len(selected)))

	windows, stats, err := BuildWindows(selected, opts.SeqLen, mode)
	if err != nil {
		return nil, err
	}
	logger.Debug("windows built",
		zap.Int("groups", stats.Groups),
		zap.Int("short_groups", stats.ShortGroups),
		zap.Int("missing_targets", stats.MissingTargets))

	enc, err := NewEncoder(schema, opts.SeqLen, opts.WeekPeriod)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, len(windows))
	for i, w := range windows {
		if samples[i], err = enc.Encode(w); err != nil {
			return nil, fmt.Errorf("encode window %d: %w", i, err)
		}
	}
	logger.Info("samples encoded", zap.Int("samples", len(samples)))

	return newStudentDataset(samples, schema, mode, opts, assignment, stats), nil
}

// Dataset is what training and evaluation code consume. Name, Yield and Reset
// follow gomlx's train.Dataset.
type Dataset interface {
	Len() int
	Example(i int) (Sample, error)
	Batch(indices []int) (*Batch, error)
	Shuffle(seed int64)

	Name() string
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Reset()
}

var _ Dataset = (*StudentDataset)(nil)

// StudentDataset holds the encoded samples of one split in memory.
type StudentDataset struct {
	// BatchSize is the number of samples per Yield.
	BatchSize int

	samples    []Sample
	order      []int
	pos        int
	schema     records.Schema
	mode       TargetMode
	split      records.Split
	assignment *records.Assignment
	stats      BuildStats
}

func newStudentDataset(samples []Sample, schema records.Schema, mode TargetMode, opts Options,
	a *records.Assignment, stats BuildStats) *StudentDataset {
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	return &StudentDataset{
		BatchSize:  opts.BatchSize,
		samples:    samples,
		order:      order,
		schema:     schema,
		mode:       mode,
		split:      opts.Split,
		assignment: a,
		stats:      stats,
	}
}

// Len returns the number of samples.
func (d *StudentDataset) Len() int { return len(d.samples) }

// Example returns sample i in load order.
func (d *StudentDataset) Example(i int) (Sample, error) {
	if i < 0 || i >= len(d.samples) {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", i, len(d.samples))
	}
	return d.samples[i], nil
}

// Samples returns the samples in load order. The slice is a copy; the
// samples inside it share their buffers with the dataset.
func (d *StudentDataset) Samples() []Sample {
	return append([]Sample(nil), d.samples...)
}

// Batch collates the samples at indices.
func (d *StudentDataset) Batch(indices []int) (*Batch, error) {
	picked := make([]Sample, len(indices))
	for k, i := range indices {
		s, err := d.Example(i)
		if err != nil {
			return nil, err
		}
		picked[k] = s
	}
	return Collate(picked)
}

// Shuffle permutes the Yield order. Example indices are unaffected.
func (d *StudentDataset) Shuffle(seed int64) {
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
	d.pos = 0
}

// NextBatch returns the next batch in Yield order, shorter at the end of the
// epoch, and io.EOF once every sample has been returned.
func (d *StudentDataset) NextBatch() (*Batch, error) {
	if d.pos >= len(d.order) {
		return nil, io.EOF
	}
	size := d.BatchSize
	if size < 1 {
		size = 1
	}
	end := min(d.pos+size, len(d.order))
	b, err := d.Batch(d.order[d.pos:end])
	if err != nil {
		return nil, err
	}
	d.pos = end
	return b, nil
}

// Batches collates one full epoch in Yield order and rewinds.
func (d *StudentDataset) Batches() ([]*Batch, error) {
	d.Reset()
	defer d.Reset()
	var out []*Batch
	for {
		b, err := d.NextBatch()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
}

// Name identifies the dataset by schema, split and target.
func (d *StudentDataset) Name() string {
	return fmt.Sprintf("students-%s-%s-%s", d.schema, d.split, d.mode)
}

// Yield returns the next batch as tensors: Inputs() of the batch and the
// target as the only label. It returns io.EOF at the end of an epoch.
func (d *StudentDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	b, err := d.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	bt, err := b.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return d, bt.Inputs(), []*tensors.Tensor{bt.Target}, nil
}

// Reset starts a new epoch.
func (d *StudentDataset) Reset() { d.pos = 0 }

// Schema is the schema version the samples were read from.
func (d *StudentDataset) Schema() records.Schema { return d.schema }

// Mode is the target semantics of the samples.
func (d *StudentDataset) Mode() TargetMode { return d.mode }

// Split is the split the samples belong to.
func (d *StudentDataset) Split() records.Split { return d.split }

// Assignment is the student split computed during Load.
func (d *StudentDataset) Assignment() *records.Assignment { return d.assignment }

// Stats are the window builder counters of the split.
func (d *StudentDataset) Stats() BuildStats { return d.stats }

// Features is the numeric matrix width of the samples.
func (d *StudentDataset) Features() int { return len(NumericColumns(d.schema)) }
