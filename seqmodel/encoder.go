package seqmodel

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Noofbiz/studentSeq/datasets"
)

const layerNormEps = 1e-5

// dense is a fully connected layer; weights are [out][in].
type dense struct {
	weights [][]float32
	biases  []float32
}

func newDense(rng *rand.Rand, in, out int) dense {
	limit := float32(math.Sqrt(6.0 / float64(in+out)))
	d := dense{weights: make([][]float32, out), biases: make([]float32, out)}
	for j := range d.weights {
		row := make([]float32, in)
		for i := range row {
			// Xavier/Glorot uniform initialization heuristic
			row[i] = (rng.Float32()*2.0 - 1.0) * limit * 0.5
		}
		d.weights[j] = row
	}
	return d
}

func (d dense) apply(in []float32) []float32 {
	out := make([]float32, len(d.biases))
	for j, row := range d.weights {
		sum := d.biases[j]
		for i, w := range row {
			sum += w * in[i]
		}
		out[j] = sum
	}
	return out
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// layerNorm normalises x in place to zero mean and unit variance, then scales
// by gamma and shifts by beta.
func layerNorm(x, gamma, beta []float32) {
	var mean float64
	for _, v := range x {
		mean += float64(v)
	}
	mean /= float64(len(x))
	var variance float64
	for _, v := range x {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(x))
	inv := 1 / math.Sqrt(variance+layerNormEps)
	for i, v := range x {
		x[i] = float32((float64(v)-mean)*inv)*gamma[i] + beta[i]
	}
}

// positionalEncoding returns the sinusoidal table [maxLen][dim]: sine on even
// columns, cosine on odd ones.
func positionalEncoding(maxLen, dim int) [][]float32 {
	pe := make([][]float32, maxLen)
	for pos := range pe {
		pe[pos] = make([]float32, dim)
		for i := 0; i < dim; i += 2 {
			angle := float64(pos) * math.Exp(float64(i)*(-math.Log(10000.0)/float64(dim)))
			pe[pos][i] = float32(math.Sin(angle))
			if i+1 < dim {
				pe[pos][i+1] = float32(math.Cos(angle))
			}
		}
	}
	return pe
}

func embeddingTable(rng *rand.Rand, rows, dim int) [][]float32 {
	t := make([][]float32, rows)
	for r := range t {
		t[r] = make([]float32, dim)
		for i := range t[r] {
			t[r][i] = float32(rng.NormFloat64()) * 0.1
		}
	}
	return t
}

// Encoder is a forward-only sequence encoder. Each step state is the sum of
// the categorical embeddings, the layer-normalised numeric projection and the
// positional encoding. A position-wise feed-forward block with a residual
// connection stands in for the attention stack. Step states are then pooled,
// joined with the aux scalars and fed to a ReLU MLP head.
type Encoder struct {
	Config Config

	subject [][]float32
	absence [][]float32
	club    [][]float32
	event   [][]float32

	numeric   dense
	normGamma []float32
	normBeta  []float32
	positions [][]float32

	ffIn  dense
	ffOut dense

	head []dense // hidden then output
}

var _ Predictor = (*Encoder)(nil)

// NewEncoder creates an Encoder with randomly initialised weights.
func NewEncoder(cfg Config) (*Encoder, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	e := &Encoder{
		Config:    cfg,
		subject:   embeddingTable(rng, cfg.SubjectVocab, cfg.EmbedDim),
		absence:   embeddingTable(rng, cfg.AbsenceVocab, cfg.EmbedDim),
		club:      embeddingTable(rng, cfg.ClubVocab, cfg.EmbedDim),
		event:     embeddingTable(rng, cfg.EventVocab, cfg.EmbedDim),
		numeric:   newDense(rng, cfg.NumFeatures, cfg.EmbedDim),
		normGamma: make([]float32, cfg.EmbedDim),
		normBeta:  make([]float32, cfg.EmbedDim),
		positions: positionalEncoding(cfg.MaxSeqLen, cfg.EmbedDim),
		ffIn:      newDense(rng, cfg.EmbedDim, cfg.HiddenDim),
		ffOut:     newDense(rng, cfg.HiddenDim, cfg.EmbedDim),
		head: []dense{
			newDense(rng, cfg.EmbedDim+cfg.AuxFeatures, cfg.HiddenDim),
			newDense(rng, cfg.HiddenDim, 1),
		},
	}
	for i := range e.normGamma {
		e.normGamma[i] = 1
	}
	return e, nil
}

func checkCodes(name string, codes []int32, size int) error {
	for i, c := range codes {
		if c < 0 || int(c) >= size {
			return fmt.Errorf("%w: %s code %d at %d outside [0, %d)", ErrInputShape, name, c, i, size)
		}
	}
	return nil
}

func (e *Encoder) checkBatch(b *datasets.Batch) error {
	cfg := e.Config
	if b.SeqLen < 1 || b.SeqLen > cfg.MaxSeqLen {
		return fmt.Errorf("%w: sequence length %d outside [1, %d]", ErrInputShape, b.SeqLen, cfg.MaxSeqLen)
	}
	if b.Features != cfg.NumFeatures {
		return fmt.Errorf("%w: %d numeric features, model expects %d", ErrInputShape, b.Features, cfg.NumFeatures)
	}
	if (b.Aux != nil) != (cfg.AuxFeatures > 0) {
		return fmt.Errorf("%w: aux scalars present=%t, model expects %d", ErrInputShape, b.Aux != nil, cfg.AuxFeatures)
	}
	if b.Aux != nil && cfg.AuxFeatures != datasets.AuxFeatures {
		return fmt.Errorf("%w: model expects %d aux scalars, batches carry %d", ErrInputShape, cfg.AuxFeatures, datasets.AuxFeatures)
	}
	if err := checkCodes("subject", b.Subject, cfg.SubjectVocab); err != nil {
		return err
	}
	if err := checkCodes("absence", b.Absence, cfg.AbsenceVocab); err != nil {
		return err
	}
	if err := checkCodes("club", b.Club, cfg.ClubVocab); err != nil {
		return err
	}
	if cfg.EventVocab > 0 {
		return checkCodes("event", b.Event, cfg.EventVocab)
	}
	return nil
}

// forwardSingle encodes sample i of b and returns the head output before the
// final squashing.
func (e *Encoder) forwardSingle(b *datasets.Batch, i int) float32 {
	dim := e.Config.EmbedDim
	pooled := make([]float32, dim)
	subj := e.subject[b.Subject[i]]

	for t := 0; t < b.SeqLen; t++ {
		k := i*b.SeqLen + t
		state := e.numeric.apply(b.NumericAt(i, t))
		layerNorm(state, e.normGamma, e.normBeta)
		abs, club := e.absence[b.Absence[k]], e.club[b.Club[k]]
		for d := 0; d < dim; d++ {
			state[d] += subj[d] + abs[d] + club[d] + e.positions[t][d]
		}
		if e.Config.EventVocab > 0 {
			ev := e.event[b.Event[k]]
			for d := range state {
				state[d] += ev[d]
			}
		}

		hidden := e.ffIn.apply(state)
		activationReLU(hidden)
		for d, v := range e.ffOut.apply(hidden) {
			state[d] += v
		}

		switch e.Config.Pooling {
		case PoolMean:
			for d, v := range state {
				pooled[d] += v / float32(b.SeqLen)
			}
		default:
			if t == b.SeqLen-1 {
				copy(pooled, state)
			}
		}
	}

	act := append(pooled, b.AuxAt(i)...)
	for l, layer := range e.head {
		act = layer.apply(act)
		if l < len(e.head)-1 {
			activationReLU(act)
		}
	}
	return act[0]
}

// Predict returns one value per sequence; probabilities for binary models.
func (e *Encoder) Predict(b *datasets.Batch) ([]float32, error) {
	if b == nil || b.Size == 0 {
		return nil, nil
	}
	if err := e.checkBatch(b); err != nil {
		return nil, err
	}
	out := make([]float32, b.Size)
	for i := range out {
		v := e.forwardSingle(b, i)
		if e.Config.PredType == PredBinary {
			v = sigmoid(v)
		}
		out[i] = v
	}
	return out, nil
}
