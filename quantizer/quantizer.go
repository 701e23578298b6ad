// Package quantizer implements product quantization (PQ) for compact storage
// and fast approximate scoring of embedding vectors.
//
// A vector of dimension D is split into M contiguous subvectors. Each
// subvector is replaced by the index of its nearest trained centroid, so a
// full-precision embedding compresses to M bytes. At query time a per-query
// distance table turns per-vector scoring into M table lookups (asymmetric
// distance computation: the query stays full precision, database vectors
// stay quantized).
package quantizer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

const (
	// MinTrainingSamples is the minimum number of vectors required by Train.
	MinTrainingSamples = 64

	maxKMeansIterations  = 25
	convergenceThreshold = 1e-4
)

// ErrNotTrained is returned by operations that require trained centroids.
var ErrNotTrained = errors.New("quantizer not trained")

// ProductQuantizer trains and applies product quantization over
// fixed-dimension embeddings.
//
// Readers (Trained, Encode, Decode, DistanceTable, ExportCentroids) may run
// concurrently with Train: the centroid set is built off to the side and
// published under the write lock. Mutating calls themselves must not overlap;
// the daemon trains from a single maintenance goroutine.
type ProductQuantizer struct {
	dim          int // D: full vector dimension
	numSubspaces int // M: number of subspaces
	numCentroids int // K: centroids per subspace
	subDim       int // D/M
	rng          *rand.Rand

	mu sync.RWMutex
	// centroids[m][k] is the k-th centroid of subspace m (subDim values).
	centroids [][][]float32
	trained   bool
}

// Code is the compressed form of one embedding: M subspace codes.
type Code []byte

// DistanceTable holds precomputed squared distances from one query to every
// centroid, scoped to that query's lifetime.
type DistanceTable struct {
	numSubspaces int
	numCentroids int
	// table[m*K+k] is the squared distance from query subvector m to centroid k.
	table []float32
}

// New creates an untrained product quantizer for vectors of the given
// dimension, split into numSubspaces subspaces with numCentroids centroids
// each.
func New(dim, numSubspaces, numCentroids int) (*ProductQuantizer, error) {
	if dim <= 0 || numSubspaces <= 0 {
		return nil, fmt.Errorf("invalid quantizer shape: dim=%d subspaces=%d", dim, numSubspaces)
	}
	if dim%numSubspaces != 0 {
		return nil, fmt.Errorf("dimension %d not divisible by %d subspaces", dim, numSubspaces)
	}
	if numCentroids < 1 || numCentroids > 256 {
		return nil, fmt.Errorf("centroid count %d out of range [1,256]", numCentroids)
	}

	return &ProductQuantizer{
		dim:          dim,
		numSubspaces: numSubspaces,
		numCentroids: numCentroids,
		subDim:       dim / numSubspaces,
		rng:          rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Dimension returns the full vector dimension D.
func (pq *ProductQuantizer) Dimension() int { return pq.dim }

// NumSubspaces returns M.
func (pq *ProductQuantizer) NumSubspaces() int { return pq.numSubspaces }

// NumCentroids returns K.
func (pq *ProductQuantizer) NumCentroids() int { return pq.numCentroids }

// Trained reports whether centroids are available.
func (pq *ProductQuantizer) Trained() bool {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	return pq.trained
}

// Train learns one centroid set per subspace by k-means over the samples.
// It requires at least MinTrainingSamples vectors of uniform dimensionality.
// Training replaces any previously trained or imported centroids.
func (pq *ProductQuantizer) Train(samples [][]float32) error {
	if len(samples) < MinTrainingSamples {
		return fmt.Errorf("need at least %d training samples, got %d", MinTrainingSamples, len(samples))
	}
	for i, s := range samples {
		if len(s) != pq.dim {
			return fmt.Errorf("training sample %d has dimension %d, want %d", i, len(s), pq.dim)
		}
	}

	centroids := make([][][]float32, pq.numSubspaces)
	for m := 0; m < pq.numSubspaces; m++ {
		subvectors := make([][]float32, len(samples))
		start := m * pq.subDim
		end := start + pq.subDim
		for i, s := range samples {
			subvectors[i] = s[start:end]
		}
		centroids[m] = pq.kmeans(subvectors)
	}

	pq.mu.Lock()
	pq.centroids = centroids
	pq.trained = true
	pq.mu.Unlock()
	return nil
}

// Encode quantizes a full-precision vector into M subspace codes. Ties are
// broken by the first minimum, so encoding is deterministic for fixed
// centroids.
func (pq *ProductQuantizer) Encode(vec []float32) (Code, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return nil, ErrNotTrained
	}
	if len(vec) != pq.dim {
		return nil, fmt.Errorf("vector dimension %d, want %d", len(vec), pq.dim)
	}

	code := make(Code, pq.numSubspaces)
	for m := 0; m < pq.numSubspaces; m++ {
		start := m * pq.subDim
		sub := vec[start : start+pq.subDim]
		code[m] = byte(nearestCentroid(sub, pq.centroids[m]))
	}
	return code, nil
}

// Decode reconstructs an approximate vector by concatenating the selected
// centroids. The reconstruction is lossy; it is meant for diagnostics and
// reconstruction-error checks, not for exact recovery.
func (pq *ProductQuantizer) Decode(code Code) ([]float32, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return nil, ErrNotTrained
	}
	if len(code) != pq.numSubspaces {
		return nil, fmt.Errorf("code length %d, want %d", len(code), pq.numSubspaces)
	}

	vec := make([]float32, pq.dim)
	for m, c := range code {
		if int(c) >= pq.numCentroids {
			return nil, fmt.Errorf("code %d out of range in subspace %d", c, m)
		}
		copy(vec[m*pq.subDim:(m+1)*pq.subDim], pq.centroids[m][c])
	}
	return vec, nil
}

// DistanceTable precomputes, per subspace, the squared distance from the
// query's subvector to every centroid. Scoring a quantized vector then costs
// M lookups instead of a D-dimensional distance computation.
func (pq *ProductQuantizer) DistanceTable(query []float32) (*DistanceTable, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return nil, ErrNotTrained
	}
	if len(query) != pq.dim {
		return nil, fmt.Errorf("query dimension %d, want %d", len(query), pq.dim)
	}

	table := make([]float32, pq.numSubspaces*pq.numCentroids)
	for m := 0; m < pq.numSubspaces; m++ {
		start := m * pq.subDim
		sub := query[start : start+pq.subDim]
		for k := 0; k < pq.numCentroids; k++ {
			table[m*pq.numCentroids+k] = squaredL2(sub, pq.centroids[m][k])
		}
	}
	return &DistanceTable{
		numSubspaces: pq.numSubspaces,
		numCentroids: pq.numCentroids,
		table:        table,
	}, nil
}

// Distance returns the asymmetric squared distance between the table's query
// and a quantized vector.
func (dt *DistanceTable) Distance(code Code) float32 {
	var d float32
	for m := 0; m < dt.numSubspaces && m < len(code); m++ {
		d += dt.table[m*dt.numCentroids+int(code[m])]
	}
	return d
}

// CosineFromSquaredDistance converts a squared L2 distance into a cosine
// similarity. Valid only when both query and database vectors are
// L2-normalized; callers are responsible for that precondition.
func CosineFromSquaredDistance(d2 float32) float32 {
	return 1 - d2/2
}

// ExportCentroids returns the trained centroid set as a flat buffer laid out
// subspace-major: M * K * (D/M) values.
func (pq *ProductQuantizer) ExportCentroids() ([]float32, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	if !pq.trained {
		return nil, ErrNotTrained
	}
	out := make([]float32, 0, pq.numSubspaces*pq.numCentroids*pq.subDim)
	for m := 0; m < pq.numSubspaces; m++ {
		for k := 0; k < pq.numCentroids; k++ {
			out = append(out, pq.centroids[m][k]...)
		}
	}
	return out, nil
}

// ImportCentroids replaces the centroid set with a previously exported
// buffer and marks the quantizer trained.
func (pq *ProductQuantizer) ImportCentroids(buf []float32) error {
	want := pq.numSubspaces * pq.numCentroids * pq.subDim
	if len(buf) != want {
		return fmt.Errorf("centroid buffer length %d, want %d", len(buf), want)
	}

	centroids := make([][][]float32, pq.numSubspaces)
	off := 0
	for m := 0; m < pq.numSubspaces; m++ {
		centroids[m] = make([][]float32, pq.numCentroids)
		for k := 0; k < pq.numCentroids; k++ {
			c := make([]float32, pq.subDim)
			copy(c, buf[off:off+pq.subDim])
			centroids[m][k] = c
			off += pq.subDim
		}
	}
	pq.mu.Lock()
	pq.centroids = centroids
	pq.trained = true
	pq.mu.Unlock()
	return nil
}

// RandomCentroids initializes the quantizer with centroids drawn uniformly
// from [-1,1) without training. Used as a baseline in reconstruction checks.
func (pq *ProductQuantizer) RandomCentroids() {
	centroids := make([][][]float32, pq.numSubspaces)
	for m := range centroids {
		centroids[m] = make([][]float32, pq.numCentroids)
		for k := range centroids[m] {
			c := make([]float32, pq.subDim)
			for j := range c {
				c[j] = pq.rng.Float32()*2 - 1
			}
			centroids[m][k] = c
		}
	}
	pq.mu.Lock()
	pq.centroids = centroids
	pq.trained = true
	pq.mu.Unlock()
}

// kmeans clusters subvectors into numCentroids groups. Initialization is
// k-means++: the first centroid is uniform random, each subsequent centroid
// is sampled with probability proportional to the squared distance to its
// nearest already-chosen centroid. Iterations stop when the relative inertia
// change drops below convergenceThreshold or after maxKMeansIterations.
// Empty clusters are reseeded to a random training point.
func (pq *ProductQuantizer) kmeans(vectors [][]float32) [][]float32 {
	k := pq.numCentroids
	dim := pq.subDim

	if len(vectors) <= k {
		// Degenerate case: every point becomes a centroid, cycling if short.
		centroids := make([][]float32, k)
		for i := range centroids {
			centroids[i] = make([]float32, dim)
			copy(centroids[i], vectors[i%len(vectors)])
		}
		return centroids
	}

	centroids := make([][]float32, k)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
	}

	// k-means++ seeding.
	copy(centroids[0], vectors[pq.rng.Intn(len(vectors))])

	minDistSq := make([]float32, len(vectors))
	var sum float32
	for i, v := range vectors {
		d := squaredL2(v, centroids[0])
		minDistSq[i] = d
		sum += d
	}

	for c := 1; c < k; c++ {
		if sum <= 0 {
			copy(centroids[c], vectors[pq.rng.Intn(len(vectors))])
			continue
		}
		target := pq.rng.Float32() * sum
		var cumsum float32
		chosen := 0
		for i, d := range minDistSq {
			cumsum += d
			if cumsum >= target {
				chosen = i
				break
			}
		}
		copy(centroids[c], vectors[chosen])

		sum = 0
		for i, v := range vectors {
			if d := squaredL2(v, centroids[c]); d < minDistSq[i] {
				minDistSq[i] = d
			}
			sum += minDistSq[i]
		}
	}

	// Lloyd iterations.
	assignments := make([]int, len(vectors))
	prevInertia := float32(math.MaxFloat32)

	for iter := 0; iter < maxKMeansIterations; iter++ {
		var inertia float32
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			assignments[i] = best
			inertia += squaredL2(v, centroids[best])
		}

		if prevInertia > 0 {
			if rel := (prevInertia - inertia) / prevInertia; rel >= 0 && rel < convergenceThreshold {
				break
			}
		}
		prevInertia = inertia

		counts := make([]int, k)
		sums := make([][]float32, k)
		for i := range sums {
			sums[i] = make([]float32, dim)
		}
		for i, v := range vectors {
			cl := assignments[i]
			counts[cl]++
			for j, val := range v {
				sums[cl][j] += val
			}
		}

		for i := range centroids {
			if counts[i] == 0 {
				// Reseed empty cluster to a random training point.
				copy(centroids[i], vectors[pq.rng.Intn(len(vectors))])
				continue
			}
			for j := range centroids[i] {
				centroids[i][j] = sums[i][j] / float32(counts[i])
			}
		}
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid, first minimum
// winning ties.
func nearestCentroid(vec []float32, centroids [][]float32) int {
	best := 0
	bestDist := float32(math.MaxFloat32)
	for i, c := range centroids {
		if d := squaredL2(vec, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
