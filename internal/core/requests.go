package core

import (
	"github.com/USFAkbari/Excel-Tools/internal/digits"
	"github.com/USFAkbari/Excel-Tools/internal/transform"
)

// Request bodies accepted by the operations. Field names follow the JSON API.

type MergeRequest struct {
	FileIDs []string `json:"file_ids"`
}

type DeduplicateMergeRequest struct {
	FileID           string   `json:"file_id"`
	DuplicateColumns []string `json:"duplicate_columns"`
}

type SortRequest struct {
	FileID string              `json:"file_id"`
	Column string              `json:"column"`
	Order  transform.SortOrder `json:"order"`
}

type NormalizeRequest struct {
	FileID    string           `json:"file_id"`
	Direction digits.Direction `json:"direction"`
	Columns   []string         `json:"columns,omitempty"`
}

// FilterRequest keeps rows matching all conditions unless MatchAll is
// explicitly false.
type FilterRequest struct {
	FileID     string                `json:"file_id"`
	Conditions []transform.Condition `json:"conditions"`
	MatchAll   *bool                 `json:"match_all,omitempty"`
}

func (r FilterRequest) matchAll() bool {
	return r.MatchAll == nil || *r.MatchAll
}

type RenameColumnsRequest struct {
	FileID    string            `json:"file_id"`
	RenameMap map[string]string `json:"rename_map"`
}

type DeleteColumnsRequest struct {
	FileID  string   `json:"file_id"`
	Columns []string `json:"columns"`
}

type ReorderColumnsRequest struct {
	FileID      string   `json:"file_id"`
	ColumnOrder []string `json:"column_order"`
}

type SearchReplaceRequest struct {
	FileID        string   `json:"file_id"`
	SearchText    string   `json:"search_text"`
	ReplaceText   string   `json:"replace_text"`
	Columns       []string `json:"columns,omitempty"`
	CaseSensitive bool     `json:"case_sensitive"`
}

// ConvertTypesRequest maps column names to a target type: text, integer or
// float.
type ConvertTypesRequest struct {
	FileID      string            `json:"file_id"`
	Conversions map[string]string `json:"conversions"`
}

type CalculatedColumnRequest struct {
	FileID        string `json:"file_id"`
	NewColumnName string `json:"new_column_name"`
	Formula       string `json:"formula"`
}

type SplitRequest struct {
	FileID   string                `json:"file_id"`
	Method   transform.SplitMethod `json:"method"`
	Column   string                `json:"column,omitempty"`
	RowCount int                   `json:"row_count,omitempty"`
}
