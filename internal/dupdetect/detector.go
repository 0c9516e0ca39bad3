package dupdetect

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/invoicelens/invoicelens/internal/entity"
)

const (
	// DefaultThreshold is the standardized distance below which a
	// neighbor counts as a duplicate.
	DefaultThreshold = 0.1

	// DefaultWindowDays limits how far back history is considered.
	DefaultWindowDays = 90

	maxNeighbors = 3

	// minHistory is the smallest history size duplicate detection can
	// say anything meaningful about.
	minHistory = 2
)

// HistorySource supplies previously analyzed invoices. Implemented by
// the archive store.
type HistorySource interface {
	ListSince(ctx context.Context, since time.Time) ([]entity.AnalysisRecord, error)
}

// Config tunes the detector.
type Config struct {
	Threshold  float64
	WindowDays int
}

func (c *Config) normalize() {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
}

// index is an immutable snapshot of the standardized history. Rebuilt
// whole and swapped in; readers never see a partial state.
type index struct {
	records []entity.AnalysisRecord
	vectors []featureVector
	mean    featureVector
	std     featureVector
	builtAt time.Time
}

// Detector flags likely duplicate invoices by nearest-neighbor search
// over a small standardized feature space.
type Detector struct {
	cfg    Config
	source HistorySource
	logger *slog.Logger
	now    func() time.Time

	idx atomic.Pointer[index]
}

func NewDetector(cfg Config, source HistorySource, logger *slog.Logger) *Detector {
	cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:    cfg,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Invalidate drops the current index. The next Check rebuilds from the
// history source, so freshly archived records become visible.
func (d *Detector) Invalidate() {
	d.idx.Store(nil)
}

// Check reports whether rec looks like a duplicate of a recent invoice.
// With fewer than two history records it reports no duplicate rather
// than failing.
func (d *Detector) Check(ctx context.Context, rec entity.InvoiceRecord) (entity.DuplicateVerdict, error) {
	idx := d.idx.Load()
	if idx == nil {
		var err error
		idx, err = d.rebuild(ctx)
		if err != nil {
			return entity.DuplicateVerdict{}, err
		}
		d.idx.Store(idx)
	}

	if len(idx.records) < minHistory {
		d.logger.Debug("dupdetect.skip", "reason", "insufficient_history", "records", len(idx.records))
		return entity.DuplicateVerdict{}, nil
	}

	q := idx.standardize(queryFeatures(rec, d.now()))

	type scored struct {
		i    int
		dist float64
	}
	all := make([]scored, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		all = append(all, scored{i: i, dist: euclidean(q, v)})
	}
	sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })

	k := maxNeighbors
	if len(all) < k {
		k = len(all)
	}

	// The score reflects the nearest record whether or not it crosses
	// the duplicate threshold; only the neighbor list is filtered.
	verdict := entity.DuplicateVerdict{
		SimilarityScore: math.Max(0, (1-all[0].dist)*100),
	}
	for _, s := range all[:k] {
		if s.dist >= d.cfg.Threshold {
			continue
		}
		verdict.IsDuplicate = true
		verdict.Neighbors = append(verdict.Neighbors, entity.Neighbor{
			Record:   idx.records[s.i],
			Distance: s.dist,
		})
	}

	if verdict.IsDuplicate {
		d.logger.Info("dupdetect.hit",
			"invoice_number", rec.InvoiceNumber,
			"similarity", verdict.SimilarityScore,
			"neighbors", len(verdict.Neighbors))
	}
	return verdict, nil
}

func (d *Detector) rebuild(ctx context.Context) (*index, error) {
	now := d.now()
	since := now.AddDate(0, 0, -d.cfg.WindowDays)
	records, err := d.source.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	idx := &index{records: records, builtAt: now}
	idx.vectors = make([]featureVector, len(records))
	for i, r := range records {
		idx.vectors[i] = historyFeatures(r, now)
	}
	idx.fit()
	for i := range idx.vectors {
		idx.vectors[i] = idx.standardize(idx.vectors[i])
	}

	d.logger.Debug("dupdetect.index.rebuild", "records", len(records), "window_days", d.cfg.WindowDays)
	return idx, nil
}

// fit computes per-dimension mean and standard deviation. A zero
// deviation is clamped to 1 so constant dimensions do not divide by
// zero and contribute nothing to distance.
func (idx *index) fit() {
	n := float64(len(idx.vectors))
	if n == 0 {
		for i := range idx.std {
			idx.std[i] = 1
		}
		return
	}
	for _, v := range idx.vectors {
		for i := 0; i < featureDim; i++ {
			idx.mean[i] += v[i]
		}
	}
	for i := 0; i < featureDim; i++ {
		idx.mean[i] /= n
	}
	for _, v := range idx.vectors {
		for i := 0; i < featureDim; i++ {
			d := v[i] - idx.mean[i]
			idx.std[i] += d * d
		}
	}
	for i := 0; i < featureDim; i++ {
		idx.std[i] = math.Sqrt(idx.std[i] / n)
		if idx.std[i] == 0 {
			idx.std[i] = 1
		}
	}
}

func (idx *index) standardize(v featureVector) featureVector {
	var out featureVector
	for i := 0; i < featureDim; i++ {
		out[i] = (v[i] - idx.mean[i]) / idx.std[i]
	}
	return out
}

func euclidean(a, b featureVector) float64 {
	var sum float64
	for i := 0; i < featureDim; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
