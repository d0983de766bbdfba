package transform

import (
	"regexp"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// SearchReplaceParams configures SearchReplace.
type SearchReplaceParams struct {
	Search        string
	Replace       string
	Columns       []string // all columns when empty
	CaseSensitive bool
}

// SearchReplace replaces every non-overlapping occurrence of Search in the
// Text cells of the targeted columns and returns how many were replaced.
// Numbers and empty cells are not touched.
func SearchReplace(ds *dataset.Dataset, p SearchReplaceParams) (*dataset.Dataset, int, error) {
	const op = "search_replace"
	if p.Search == "" {
		return nil, 0, dataset.Validationf(op, "search text is empty")
	}

	var pos []int
	if len(p.Columns) == 0 {
		for j := 0; j < ds.NumColumns(); j++ {
			pos = append(pos, j)
		}
	} else {
		var err error
		if pos, err = positions(op, ds, p.Columns); err != nil {
			return nil, 0, err
		}
	}

	var re *regexp.Regexp
	if !p.CaseSensitive {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(p.Search))
	}
	// Literal replacement: $ in Replace must not expand as a group reference.
	literal := func(string) string { return p.Replace }

	count := 0
	out, err := ds.MapColumns(pos, func(_ int, _ string, v dataset.Value) (dataset.Value, error) {
		s, ok := v.Str()
		if !ok {
			return v, nil
		}
		if p.CaseSensitive {
			n := strings.Count(s, p.Search)
			if n == 0 {
				return v, nil
			}
			count += n
			return dataset.Text(strings.ReplaceAll(s, p.Search, p.Replace)), nil
		}
		n := len(re.FindAllStringIndex(s, -1))
		if n == 0 {
			return v, nil
		}
		count += n
		return dataset.Text(re.ReplaceAllStringFunc(s, literal)), nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, count, nil
}
