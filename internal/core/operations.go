package core

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/store"
	"github.com/USFAkbari/Excel-Tools/internal/transform"
)

// Merge concatenates two or more stored datasets into a new version.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*Result, error) {
	if len(req.FileIDs) < 2 {
		return nil, dataset.Validationf("merge", "at least 2 files are required, got %d", len(req.FileIDs))
	}
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		inputs, err := s.loadAll(ctx, req.FileIDs)
		if err != nil {
			return nil, err
		}
		merged, err := transform.Merge(inputs...)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, merged, ActionMerge, "", req.FileIDs...)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{
			"files_merged": len(req.FileIDs),
			"total_rows":   merged.NumRows(),
		}
		s.record(ctx, ActionMerge, req.FileIDs, []string{id}, merged.NumRows(), meta)
		return &Result{FileID: id, Message: "Files merged successfully", Metadata: meta}, nil
	})
}

// loadAll resolves ids concurrently. The error reported is the one for the
// first failing id in request order.
func (s *Service) loadAll(ctx context.Context, ids []string) ([]*dataset.Dataset, error) {
	out := make([]*dataset.Dataset, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		g.Go(func() error {
			out[i], errs[i] = s.load(id)
			return errs[i]
		})
	}
	if g.Wait() != nil {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeduplicateMerge collapses rows sharing the key columns.
func (s *Service) DeduplicateMerge(ctx context.Context, req DeduplicateMergeRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, err := transform.DeduplicateMerge(ds, req.DuplicateColumns)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, ActionDeduplicateMerge, "", req.FileID)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{
			"original_rows":      ds.NumRows(),
			"deduplicated_rows":  out.NumRows(),
			"duplicates_removed": ds.NumRows() - out.NumRows(),
		}
		s.record(ctx, ActionDeduplicateMerge, []string{req.FileID}, []string{id}, ds.NumRows()-out.NumRows(), meta)
		return &Result{FileID: id, Message: "Deduplication completed successfully", Metadata: meta}, nil
	})
}

// Sort orders the rows of a stored dataset by one column.
func (s *Service) Sort(ctx context.Context, req SortRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, err := transform.Sort(ds, req.Column, req.Order)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, ActionSort, "", req.FileID)
		if err != nil {
			return nil, err
		}

		order := req.Order
		if order == "" {
			order = transform.Ascending
		}
		meta := map[string]any{
			"sorted_by": req.Column,
			"order":     string(order),
		}
		s.record(ctx, ActionSort, []string{req.FileID}, []string{id}, out.NumRows(), meta)
		return &Result{FileID: id, Message: "Data sorted successfully", Metadata: meta}, nil
	})
}

// NormalizeNumbers rewrites Persian and ASCII digits in text cells.
func (s *Service) NormalizeNumbers(ctx context.Context, req NormalizeRequest) (*Result, error) {
	if !req.Direction.Valid() {
		return nil, dataset.Validationf("normalize_numbers",
			"direction must be persian_to_english or english_to_persian, got %q", req.Direction)
	}
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, processed := transform.NormalizeDigits(ds, req.Direction, req.Columns)
		id, err := s.commit(ctx, out, ActionNormalizeNumbers, "", req.FileID)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{
			"direction":         string(req.Direction),
			"columns_processed": nonNil(processed),
		}
		s.record(ctx, ActionNormalizeNumbers, []string{req.FileID}, []string{id}, out.NumRows(), meta)
		return &Result{FileID: id, Message: "Number normalization completed successfully", Metadata: meta}, nil
	})
}

// Filter keeps the rows matching the request's conditions.
func (s *Service) Filter(ctx context.Context, req FilterRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, err := transform.Filter(ds, req.Conditions, req.matchAll())
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, ActionFilter, "", req.FileID)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{
			"original_rows": ds.NumRows(),
			"filtered_rows": out.NumRows(),
		}
		s.record(ctx, ActionFilter, []string{req.FileID}, []string{id}, ds.NumRows()-out.NumRows(), meta)
		return &Result{FileID: id, Message: "Data filtered successfully", Metadata: meta}, nil
	})
}

// RenameColumns renames columns in place, keeping their positions.
func (s *Service) RenameColumns(ctx context.Context, req RenameColumnsRequest) (*Result, error) {
	return s.columnOp(ctx, req.FileID, ActionRenameColumns, "Columns renamed successfully",
		func(ds *dataset.Dataset) (*dataset.Dataset, error) {
			return transform.RenameColumns(ds, req.RenameMap)
		})
}

// DeleteColumns drops columns.
func (s *Service) DeleteColumns(ctx context.Context, req DeleteColumnsRequest) (*Result, error) {
	return s.columnOp(ctx, req.FileID, ActionDeleteColumns, "Columns deleted successfully",
		func(ds *dataset.Dataset) (*dataset.Dataset, error) {
			return transform.DeleteColumns(ds, req.Columns)
		})
}

// ReorderColumns rearranges columns into the given permutation.
func (s *Service) ReorderColumns(ctx context.Context, req ReorderColumnsRequest) (*Result, error) {
	return s.columnOp(ctx, req.FileID, ActionReorderColumns, "Columns reordered successfully",
		func(ds *dataset.Dataset) (*dataset.Dataset, error) {
			return transform.ReorderColumns(ds, req.ColumnOrder)
		})
}

func (s *Service) columnOp(ctx context.Context, fileID string, action AuditAction, message string,
	fn func(*dataset.Dataset) (*dataset.Dataset, error)) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(fileID)
		if err != nil {
			return nil, err
		}
		out, err := fn(ds)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, action, "", fileID)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{"columns": out.Columns()}
		s.record(ctx, action, []string{fileID}, []string{id}, 0, meta)
		return &Result{FileID: id, Message: message, Metadata: meta}, nil
	})
}

// SearchReplace replaces text occurrences inside text cells.
func (s *Service) SearchReplace(ctx context.Context, req SearchReplaceRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, count, err := transform.SearchReplace(ds, transform.SearchReplaceParams{
			Search:        req.SearchText,
			Replace:       req.ReplaceText,
			Columns:       req.Columns,
			CaseSensitive: req.CaseSensitive,
		})
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, ActionSearchReplace, "", req.FileID)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{"replacements_made": count}
		s.record(ctx, ActionSearchReplace, []string{req.FileID}, []string{id}, count, meta)
		return &Result{
			FileID:   id,
			Message:  fmt.Sprintf("Search and replace completed (%d replacements)", count),
			Metadata: meta,
		}, nil
	})
}

// ConvertTypes casts whole columns to text, integer or float.
func (s *Service) ConvertTypes(ctx context.Context, req ConvertTypesRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, converted, err := transform.ConvertTypes(ds, req.Conversions)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, ActionConvertTypes, "", req.FileID)
		if err != nil {
			return nil, err
		}

		meta := map[string]any{"columns_converted": converted}
		s.record(ctx, ActionConvertTypes, []string{req.FileID}, []string{id}, out.NumRows(), meta)
		return &Result{FileID: id, Message: "Type conversion completed successfully", Metadata: meta}, nil
	})
}

// CalculatedColumn appends a column computed from a formula.
func (s *Service) CalculatedColumn(ctx context.Context, req CalculatedColumnRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		out, expr, err := transform.AddCalculatedColumn(ds, req.NewColumnName, req.Formula)
		if err != nil {
			return nil, err
		}
		id, err := s.commit(ctx, out, ActionCalculatedColumn, "", req.FileID)
		if err != nil {
			return nil, err
		}

		cols := out.Columns()
		meta := map[string]any{
			"new_column":         cols[len(cols)-1],
			"formula":            expr.String(),
			"referenced_columns": expr.Columns(),
		}
		s.record(ctx, ActionCalculatedColumn, []string{req.FileID}, []string{id}, out.NumRows(), meta)
		return &Result{FileID: id, Message: "Calculated column created successfully", Metadata: meta}, nil
	})
}

// Split partitions a dataset into several new versions. Either every part is
// stored or none is.
func (s *Service) Split(ctx context.Context, req SplitRequest) (*Result, error) {
	return s.run(ctx, func(ctx context.Context) (*Result, error) {
		ds, err := s.load(req.FileID)
		if err != nil {
			return nil, err
		}
		parts, err := transform.Split(ds, req.Method, req.Column, req.RowCount)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ids := make([]string, len(parts))
		for i, p := range parts {
			ids[i] = s.store.Put(p.Dataset, store.PutOptions{
				Operation: string(ActionSplit),
				Label:     p.Label,
				Parents:   []string{req.FileID},
			})
		}

		meta := map[string]any{
			"method":        string(req.Method),
			"files_created": len(ids),
		}
		s.record(ctx, ActionSplit, []string{req.FileID}, ids, ds.NumRows(), meta)
		return &Result{
			FileIDs:  ids,
			Message:  fmt.Sprintf("Data split into %d files", len(ids)),
			Metadata: meta,
		}, nil
	})
}
