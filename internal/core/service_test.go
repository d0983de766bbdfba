package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USFAkbari/Excel-Tools/internal/codec"
	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/digits"
	"github.com/USFAkbari/Excel-Tools/internal/transform"
)

const salesCSV = "name,amount,region\nA,10,north\nB,5,south\nA,3,north\nC,7,south\nB,1,east\n"

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Options{MaxConcurrent: 4, MaxWait: time.Second})
}

func uploadCSV(t *testing.T, svc *Service, body string) string {
	t.Helper()
	res, err := svc.Upload(context.Background(), "data.csv", strings.NewReader(body))
	require.NoError(t, err)
	require.NotEmpty(t, res.FileID)
	return res.FileID
}

func stored(t *testing.T, svc *Service, id string) *dataset.Dataset {
	t.Helper()
	ds, err := svc.Store().Get(id)
	require.NoError(t, err)
	return ds
}

func requireKind(t *testing.T, err error, want dataset.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, dataset.KindOf(err), "error: %v", err)
}

func TestUpload(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Upload(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", res.Filename)
	assert.Equal(t, "File uploaded successfully", res.Message)
	assert.Equal(t, 5, res.Metadata["rows"])

	v, err := svc.Version(res.FileID)
	require.NoError(t, err)
	assert.Equal(t, string(ActionUpload), v.Operation)
	assert.Equal(t, "sales.csv", v.Label)
	assert.Empty(t, v.ParentID)
	assert.Equal(t, []string{"name", "amount", "region"}, v.Columns)
	assert.True(t, stored(t, svc, res.FileID).Cell(0, "amount").Equal(dataset.Number(10)))
}

func TestUploadXLSX(t *testing.T) {
	svc := newTestService(t)
	src := dataset.MustNew([]string{"id", "name"}, [][]dataset.Value{
		{dataset.Number(1), dataset.Text("علی")},
	})
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, src, codec.XLSX))

	res, err := svc.Upload(context.Background(), "people.XLSX", &buf)
	require.NoError(t, err)
	assert.True(t, stored(t, svc, res.FileID).Equal(src))
}

func TestUploadRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		maxSize  int64
		wantCode string
	}{
		{"no filename", "", salesCSV, 0, "FILE003"},
		{"legacy xls", "old.xls", salesCSV, 0, "FILE002"},
		{"too large", "big.csv", salesCSV, 10, "FILE001"},
		{"empty body", "empty.csv", "", 0, "FILE003"},
		{"broken xlsx", "broken.xlsx", "not a zip", 0, "FILE003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Options{MaxFileSize: tt.maxSize})
			_, err := svc.Upload(context.Background(), tt.filename, strings.NewReader(tt.body))
			requireKind(t, err, dataset.Validation)
			assert.Equal(t, tt.wantCode, MapError(err).Code)
			assert.Zero(t, svc.Store().Len())
		})
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, salesCSV)

	for _, format := range []string{"", "xlsx", "csv"} {
		t.Run("format="+format, func(t *testing.T) {
			exp, err := svc.Download(context.Background(), id, format)
			require.NoError(t, err)

			f, err := codec.ParseFormat(format)
			require.NoError(t, err)
			assert.Equal(t, id+f.Extension(), exp.Filename)
			assert.Equal(t, f.ContentType(), exp.ContentType)

			back, err := codec.Decode(bytes.NewReader(exp.Data), f)
			require.NoError(t, err)
			assert.True(t, back.Equal(stored(t, svc, id)))
		})
	}

	_, err := svc.Download(context.Background(), id, "pdf")
	requireKind(t, err, dataset.Validation)
	_, err = svc.Download(context.Background(), "missing", "csv")
	requireKind(t, err, dataset.NotFound)
}

func TestMerge(t *testing.T) {
	svc := newTestService(t)
	a := uploadCSV(t, svc, "id,x\n1,a\n2,b\n")
	b := uploadCSV(t, svc, "id,y\n3,c\n")

	res, err := svc.Merge(context.Background(), MergeRequest{FileIDs: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metadata["files_merged"])
	assert.Equal(t, 3, res.Metadata["total_rows"])

	merged := stored(t, svc, res.FileID)
	assert.Equal(t, []string{"id", "x", "y"}, merged.Columns())
	assert.True(t, merged.Cell(2, "x").IsNull())

	v, err := svc.Version(res.FileID)
	require.NoError(t, err)
	assert.Equal(t, a, v.ParentID)
	assert.Equal(t, []string{b}, v.Ancestors)
}

func TestMergeErrors(t *testing.T) {
	svc := newTestService(t)
	a := uploadCSV(t, svc, "id\n1\n")

	_, err := svc.Merge(context.Background(), MergeRequest{FileIDs: []string{a}})
	requireKind(t, err, dataset.Validation)

	_, err = svc.Merge(context.Background(), MergeRequest{FileIDs: []string{a, "missing-1", "missing-2"}})
	requireKind(t, err, dataset.NotFound)
	assert.Contains(t, err.Error(), "missing-1")
	assert.Equal(t, 1, svc.Store().Len())
}

func TestDeduplicateMerge(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, salesCSV)

	res, err := svc.DeduplicateMerge(context.Background(), DeduplicateMergeRequest{
		FileID:           id,
		DuplicateColumns: []string{"name"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Metadata["original_rows"])
	assert.Equal(t, 3, res.Metadata["deduplicated_rows"])
	assert.Equal(t, 2, res.Metadata["duplicates_removed"])

	out := stored(t, svc, res.FileID)
	assert.True(t, out.Cell(0, "amount").Equal(dataset.Number(13)))
	assert.True(t, out.Cell(1, "amount").Equal(dataset.Number(6)))
	assert.True(t, out.Cell(1, "region").Equal(dataset.Text("south")))

	_, err = svc.DeduplicateMerge(context.Background(), DeduplicateMergeRequest{FileID: id})
	requireKind(t, err, dataset.Validation)
}

func TestDeduplicateMergeOverflowStoresNothing(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, "k,v\nx,1e308\nx,1e308\n")

	_, err := svc.DeduplicateMerge(context.Background(), DeduplicateMergeRequest{
		FileID:           id,
		DuplicateColumns: []string{"k"},
	})
	requireKind(t, err, dataset.Eval)
	assert.Equal(t, 1, svc.Store().Len())
}

func TestSortDefaultsToAscending(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, salesCSV)

	res, err := svc.Sort(context.Background(), SortRequest{FileID: id, Column: "amount"})
	require.NoError(t, err)
	assert.Equal(t, "asc", res.Metadata["order"])
	assert.Equal(t, "amount", res.Metadata["sorted_by"])

	col, _ := stored(t, svc, res.FileID).Column("amount")
	var got []string
	for _, v := range col {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{"1", "3", "5", "7", "10"}, got)
}

func TestNormalizeNumbers(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, "code,note\n۱۲,a۳\n45,b\n")

	res, err := svc.NormalizeNumbers(context.Background(), NormalizeRequest{
		FileID:    id,
		Direction: digits.PersianToEnglish,
		Columns:   []string{"code", "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, res.Metadata["columns_processed"])
	out := stored(t, svc, res.FileID)
	assert.True(t, out.Cell(0, "code").Equal(dataset.Text("12")))
	assert.True(t, out.Cell(0, "note").Equal(dataset.Text("a۳")))

	_, err = svc.NormalizeNumbers(context.Background(), NormalizeRequest{FileID: id, Direction: "sideways"})
	requireKind(t, err, dataset.Validation)
}

func TestFilterMatchAllDefault(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, salesCSV)
	conds := []transform.Condition{
		{Column: "name", Operator: coerce.Equals, Value: dataset.Text("A")},
		{Column: "region", Operator: coerce.Equals, Value: dataset.Text("south")},
	}

	res, err := svc.Filter(context.Background(), FilterRequest{FileID: id, Conditions: conds})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Metadata["filtered_rows"])

	matchAny := false
	res, err = svc.Filter(context.Background(), FilterRequest{FileID: id, Conditions: conds, MatchAll: &matchAny})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Metadata["filtered_rows"])
	assert.Equal(t, 5, res.Metadata["original_rows"])
}

func TestColumnOperations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := uploadCSV(t, svc, salesCSV)

	renamed, err := svc.RenameColumns(ctx, RenameColumnsRequest{FileID: id, RenameMap: map[string]string{"amount": "total"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "total", "region"}, stored(t, svc, renamed.FileID).Columns())

	deleted, err := svc.DeleteColumns(ctx, DeleteColumnsRequest{FileID: renamed.FileID, Columns: []string{"region"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "total"}, stored(t, svc, deleted.FileID).Columns())

	reordered, err := svc.ReorderColumns(ctx, ReorderColumnsRequest{FileID: deleted.FileID, ColumnOrder: []string{"total", "name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"total", "name"}, stored(t, svc, reordered.FileID).Columns())
	assert.Equal(t, "Columns reordered successfully", reordered.Message)

	// every earlier version is untouched
	assert.Equal(t, []string{"name", "amount", "region"}, stored(t, svc, id).Columns())

	_, err = svc.ReorderColumns(ctx, ReorderColumnsRequest{FileID: id, ColumnOrder: []string{"name"}})
	requireKind(t, err, dataset.Validation)
}

func TestSearchReplace(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, "city\nNorth Bay\nnorth end\nSouth\n")

	res, err := svc.SearchReplace(context.Background(), SearchReplaceRequest{
		FileID:      id,
		SearchText:  "north",
		ReplaceText: "N.",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metadata["replacements_made"])
	assert.Equal(t, "Search and replace completed (2 replacements)", res.Message)
	assert.True(t, stored(t, svc, res.FileID).Cell(0, "city").Equal(dataset.Text("N. Bay")))
}

func TestConvertTypesAndCalculatedColumn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := uploadCSV(t, svc, "price,qty\n10,3\n2.5,4\n")

	conv, err := svc.ConvertTypes(ctx, ConvertTypesRequest{FileID: id, Conversions: map[string]string{"price": "integer"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, conv.Metadata["columns_converted"])
	assert.True(t, stored(t, svc, conv.FileID).Cell(1, "price").Equal(dataset.Number(2)))

	calc, err := svc.CalculatedColumn(ctx, CalculatedColumnRequest{FileID: id, NewColumnName: "total", Formula: "  price * qty "})
	require.NoError(t, err)
	assert.Equal(t, "total", calc.Metadata["new_column"])
	assert.Equal(t, "price * qty", calc.Metadata["formula"])
	assert.Equal(t, []string{"price", "qty"}, calc.Metadata["referenced_columns"])
	out := stored(t, svc, calc.FileID)
	assert.True(t, out.Cell(0, "total").Equal(dataset.Number(30)))
	assert.True(t, out.Cell(1, "total").Equal(dataset.Number(10)))

	_, err = svc.CalculatedColumn(ctx, CalculatedColumnRequest{FileID: id, NewColumnName: "bad", Formula: "price / (qty - qty)"})
	requireKind(t, err, dataset.Eval)
	assert.Equal(t, "FML002", MapError(err).Code)

	_, err = svc.CalculatedColumn(ctx, CalculatedColumnRequest{FileID: id, NewColumnName: "bad", Formula: "price +"})
	requireKind(t, err, dataset.Parse)
}

func TestSplit(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, salesCSV)

	res, err := svc.Split(context.Background(), SplitRequest{FileID: id, Method: transform.ByRowCount, RowCount: 2})
	require.NoError(t, err)
	require.Len(t, res.FileIDs, 3)
	assert.Equal(t, 3, res.Metadata["files_created"])
	assert.Equal(t, "Data split into 3 files", res.Message)

	var sizes []int
	for _, pid := range res.FileIDs {
		sizes = append(sizes, stored(t, svc, pid).NumRows())
		v, err := svc.Version(pid)
		require.NoError(t, err)
		assert.Equal(t, id, v.ParentID)
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	byRegion, err := svc.Split(context.Background(), SplitRequest{FileID: id, Method: transform.ByColumn, Column: "region"})
	require.NoError(t, err)
	assert.Len(t, byRegion.FileIDs, 3)

	_, err = svc.Split(context.Background(), SplitRequest{FileID: id, Method: transform.ByRowCount})
	requireKind(t, err, dataset.Validation)
}

func TestCancelledContextWritesNothing(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, salesCSV)
	before := svc.Store().Len()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Sort(ctx, SortRequest{FileID: id, Column: "amount"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, svc.Store().Len())
}

func TestBusyLimiter(t *testing.T) {
	svc := NewService(Options{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	id := uploadCSV(t, svc, salesCSV)

	require.True(t, svc.Limiter().TryAcquire())
	defer svc.Limiter().Release()

	_, err := svc.Sort(context.Background(), SortRequest{FileID: id, Column: "amount"})
	require.True(t, errors.Is(err, ErrTooManyOperations))
	assert.Equal(t, "OPS001", MapError(err).Code)
}

func TestUnknownFileID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Sort(context.Background(), SortRequest{FileID: "nope", Column: "x"})
	requireKind(t, err, dataset.NotFound)
	_, err = svc.Version("nope")
	requireKind(t, err, dataset.NotFound)
}

func TestVersions(t *testing.T) {
	svc := newTestService(t)
	assert.Empty(t, svc.Versions(0))

	id := uploadCSV(t, svc, salesCSV)
	res, err := svc.Sort(context.Background(), SortRequest{FileID: id, Column: "amount"})
	require.NoError(t, err)

	list := svc.Versions(0)
	require.Len(t, list, 2)
	byID := map[string]VersionInfo{}
	for _, v := range list {
		byID[v.ID] = v
	}
	require.Contains(t, byID, res.FileID)
	assert.Equal(t, id, byID[res.FileID].ParentID)
	assert.Equal(t, 5, byID[res.FileID].Rows)
	assert.Equal(t, []string{"name", "amount", "region"}, byID[id].Columns)

	assert.Len(t, svc.Versions(1), 1)
}

func TestPreview(t *testing.T) {
	svc := NewService(Options{PreviewDefaultRows: 2, PreviewMaxRows: 4})
	id := uploadCSV(t, svc, salesCSV)
	ctx := context.Background()

	p, err := svc.Preview(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, p.TotalRows)
	assert.Equal(t, 2, p.PreviewRows)
	require.Len(t, p.Data, 2)
	assert.True(t, p.Data[1]["name"].Equal(dataset.Text("B")))

	agg := p.Aggregations["amount"]
	require.NotNil(t, agg)
	assert.Equal(t, 5, agg.Count)
	assert.InDelta(t, 26, agg.Sum, 1e-9)
	assert.InDelta(t, 5.2, agg.Mean, 1e-9)
	assert.InDelta(t, 1, agg.Min, 1e-9)
	assert.InDelta(t, 10, agg.Max, 1e-9)
	assert.NotContains(t, p.Aggregations, "name")

	p, err = svc.Preview(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.PreviewRows)

	_, err = svc.Preview(ctx, id, 5)
	requireKind(t, err, dataset.Validation)
	_, err = svc.Preview(ctx, id, -1)
	requireKind(t, err, dataset.Validation)
}

func TestPreviewSkipsOverflowingAggregation(t *testing.T) {
	svc := newTestService(t)
	id := uploadCSV(t, svc, "v,w\n1e308,1\n1e308,2\n")

	p, err := svc.Preview(context.Background(), id, 0)
	require.NoError(t, err)
	assert.NotContains(t, p.Aggregations, "v")
	require.Contains(t, p.Aggregations, "w")
	assert.InDelta(t, 3, p.Aggregations["w"].Sum, 1e-9)

	_, err = json.Marshal(p)
	require.NoError(t, err)
}

func TestAuditTrail(t *testing.T) {
	svc := newTestService(t)
	ctx := WithClientInfo(context.Background(), ClientInfo{IPAddress: "10.0.0.7", UserAgent: "test"})

	res, err := svc.Upload(ctx, "a.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	sorted, err := svc.Sort(ctx, SortRequest{FileID: res.FileID, Column: "name"})
	require.NoError(t, err)

	entries, err := svc.AuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionSort, entries[0].Action)
	assert.Equal(t, []string{res.FileID}, entries[0].SourceIDs)
	assert.Equal(t, []string{sorted.FileID}, entries[0].ResultIDs)
	assert.Equal(t, "10.0.0.7", entries[0].IPAddress)
	assert.Equal(t, ActionUpload, entries[1].Action)

	// failed operations are not audited
	_, _ = svc.Sort(ctx, SortRequest{FileID: res.FileID, Column: "missing"})
	entries, err = svc.AuditLog(ctx, AuditFilter{Action: ActionSort})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunRetention(t *testing.T) {
	svc := newTestService(t)
	uploadCSV(t, svc, salesCSV)
	uploadCSV(t, svc, salesCSV)

	res := svc.RunRetention(context.Background(), RetentionConfig{FileRetention: time.Hour})
	assert.Zero(t, res.VersionsPurged)
	assert.Equal(t, 2, svc.Store().Len())

	time.Sleep(5 * time.Millisecond)
	res = svc.RunRetention(context.Background(), RetentionConfig{FileRetention: time.Millisecond})
	assert.Equal(t, 2, res.VersionsPurged)
	assert.Zero(t, svc.Store().Len())

	entries, err := svc.AuditLog(context.Background(), AuditFilter{Action: ActionRetentionPurge})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].RowsAffected)
}

func TestStartRetentionSchedulerStops(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartRetentionScheduler(ctx, RetentionConfig{CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestStatus(t *testing.T) {
	svc := newTestService(t)
	uploadCSV(t, svc, salesCSV)
	st := svc.Status()
	assert.Equal(t, 1, st.StoredVersions)
	assert.Equal(t, 4, st.Limiter.MaxConcurrent)
	assert.Equal(t, 0, st.Limiter.Active)
}
