// Package baseline provides a k-nearest-neighbour predictor over encoded
// samples, used as a reference point for sequence models.
package baseline

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/Noofbiz/studentSeq/datasets"
	"github.com/Noofbiz/studentSeq/seqmodel"
)

// KNN predicts the inverse-distance weighted mean target of the K training
// samples closest in numeric and aux feature space.
type KNN struct {
	K int

	features [][]float32
	targets  []float32
}

var _ seqmodel.Predictor = (*KNN)(nil)

type neighbor struct {
	idx      int
	distance float32
}

// sampleFeatures flattens the numeric matrix and appends the aux scalars.
func sampleFeatures(s *datasets.Sample) []float32 {
	var out []float32
	for _, row := range s.Numeric {
		out = append(out, row...)
	}
	if s.Aux != nil {
		out = append(out, s.Aux.TotalClubHours, s.Aux.ClubIntensity)
	}
	return out
}

func batchFeatures(b *datasets.Batch, i int) []float32 {
	width := b.SeqLen * b.Features
	out := make([]float32, 0, width+datasets.AuxFeatures)
	out = append(out, b.Numeric[i*width:(i+1)*width]...)
	return append(out, b.AuxAt(i)...)
}

// Fit stores the training samples. k must be >= 1 and every sample must have
// the same feature layout.
func Fit(samples []datasets.Sample, k int) (*KNN, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}
	m := &KNN{
		K:        k,
		features: make([][]float32, len(samples)),
		targets:  make([]float32, len(samples)),
	}
	for i := range samples {
		m.features[i] = sampleFeatures(&samples[i])
		if len(m.features[i]) != len(m.features[0]) {
			return nil, fmt.Errorf("%w: sample %d has %d features, sample 0 has %d",
				seqmodel.ErrInputShape, i, len(m.features[i]), len(m.features[0]))
		}
		m.targets[i] = samples[i].Target
	}
	return m, nil
}

// Predict implements seqmodel.Predictor.
func (m *KNN) Predict(b *datasets.Batch) ([]float32, error) {
	if b == nil || b.Size == 0 {
		return nil, nil
	}
	out := make([]float32, b.Size)
	for i := range out {
		query := batchFeatures(b, i)
		if len(query) != len(m.features[0]) {
			return nil, fmt.Errorf("%w: query has %d features, model was fit on %d",
				seqmodel.ErrInputShape, len(query), len(m.features[0]))
		}
		neighbors := m.knnNeighbors(query, m.K)

		// Prepare weights inverse to distance (with epsilon)
		const eps = 1e-6
		var sum, totalWeight float64
		for _, nb := range neighbors {
			w := 1.0 / (float64(nb.distance) + eps)
			sum += w * float64(m.targets[nb.idx])
			totalWeight += w
		}
		out[i] = float32(sum / totalWeight)
	}
	return out, nil
}

// knnNeighbors returns the k closest training samples, nearest first. Ties
// keep training order so results do not depend on worker scheduling.
func (m *KNN) knnNeighbors(query []float32, k int) []neighbor {
	n := len(m.features)

	// Use a worker pool to compute distances concurrently.
	jobs := make(chan int, n)
	candidates := make([]neighbor, n)

	workerCount := min(runtime.NumCPU(), n)
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				dist := euclideanDistanceSquared(query, m.features[i])
				candidates[i] = neighbor{idx: i, distance: float32(math.Sqrt(dist))}
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	return candidates[:min(k, n)]
}

// euclideanDistanceSquared computes squared Euclidean distance between two equal-length float32 slices.
func euclideanDistanceSquared(a, b []float32) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
