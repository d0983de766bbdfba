package core

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/store"
)

// ColumnAggregation summarizes a numeric column over the whole dataset.
type ColumnAggregation struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Aggregations maps column names to their aggregation results.
type Aggregations map[string]*ColumnAggregation

// PreviewData is the first rows of a stored version plus column totals.
type PreviewData struct {
	FileID       string        `json:"file_id"`
	Columns      []string      `json:"columns"`
	Data         []dataset.Row `json:"data"`
	TotalRows    int           `json:"total_rows"`
	PreviewRows  int           `json:"preview_rows"`
	Aggregations Aggregations  `json:"aggregations,omitempty"`
}

// Preview returns up to maxRows rows of a stored version. Zero selects the
// configured default.
func (s *Service) Preview(ctx context.Context, fileID string, maxRows int) (*PreviewData, error) {
	if maxRows == 0 {
		maxRows = s.opts.PreviewDefaultRows
	}
	if maxRows < 1 || maxRows > s.opts.PreviewMaxRows {
		return nil, dataset.Validationf("preview", "max_rows must be between 1 and %d, got %d",
			s.opts.PreviewMaxRows, maxRows)
	}

	var out *PreviewData
	err := s.limiter.Run(ctx, func() error {
		ds, err := s.load(fileID)
		if err != nil {
			return err
		}
		head := ds.Slice(0, min(maxRows, ds.NumRows()))
		out = &PreviewData{
			FileID:       fileID,
			Columns:      ds.Columns(),
			Data:         head.Rows(),
			TotalRows:    ds.NumRows(),
			PreviewRows:  head.NumRows(),
			Aggregations: aggregate(ds),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// aggregate computes totals for every column whose non-empty cells all have
// a numeric reading. Columns whose sum leaves the float64 range are left out.
func aggregate(ds *dataset.Dataset) Aggregations {
	aggs := make(Aggregations)
	for _, col := range ds.Columns() {
		values, _ := ds.Column(col)
		data, ok := numericData(values)
		if !ok {
			continue
		}

		agg := &ColumnAggregation{Column: col, Count: len(data)}
		agg.Sum, _ = stats.Sum(data)
		agg.Mean, _ = stats.Mean(data)
		agg.Min, _ = stats.Min(data)
		agg.Max, _ = stats.Max(data)
		if !finite(agg.Sum) || !finite(agg.Mean) {
			continue
		}
		aggs[col] = agg
	}
	if len(aggs) == 0 {
		return nil
	}
	return aggs
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func numericData(values []dataset.Value) (stats.Float64Data, bool) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		f, err := coerce.AsNumber(v)
		if err != nil {
			return nil, false
		}
		data = append(data, f)
	}
	return data, len(data) > 0
}

// VersionInfo describes a stored version and its shape.
type VersionInfo struct {
	store.Version
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Version returns lineage and shape metadata for a stored version.
func (s *Service) Version(fileID string) (*VersionInfo, error) {
	v, err := s.store.Version(fileID)
	if err != nil {
		return nil, err
	}
	return &VersionInfo{
		Version: v,
		Rows:    v.Dataset.NumRows(),
		Columns: v.Dataset.Columns(),
	}, nil
}

// Versions lists stored versions newest first. A positive limit caps the
// result.
func (s *Service) Versions(limit int) []VersionInfo {
	list := s.store.List()
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]VersionInfo, 0, len(list))
	for _, v := range list {
		out = append(out, VersionInfo{
			Version: v,
			Rows:    v.Dataset.NumRows(),
			Columns: v.Dataset.Columns(),
		})
	}
	return out
}
