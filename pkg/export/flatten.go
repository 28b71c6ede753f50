package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Table is a flattened record set: one header, one row per record.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Flatten promotes the leaf fields of nested objects to dotted column names.
// Columns are the sorted union over all records; a record without a column
// gets a nil cell. Arrays are kept as one cell holding compact JSON.
func Flatten(records []map[string]any) Table {
	flat := make([]map[string]any, len(records))
	seen := make(map[string]struct{})

	for i, r := range records {
		m := make(map[string]any)
		flattenInto(m, "", r)
		for k := range m {
			seen[k] = struct{}{}
		}
		flat[i] = m
	}

	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	rows := make([][]any, len(flat))
	for i, m := range flat {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = cellValue(m[col])
		}
		rows[i] = row
	}

	return Table{Columns: columns, Rows: rows}
}

// flattenInto walks keys in sorted order and writes nested objects before
// leaves, so a literal dotted key such as "a.b" always wins over the nested
// path a -> b that flattens to the same column.
func flattenInto(dst map[string]any, prefix string, src map[string]any) {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var leaves []string
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := src[k].(map[string]any); ok && len(nested) > 0 {
			flattenInto(dst, key, nested)
			continue
		}
		leaves = append(leaves, k)
	}
	for _, k := range leaves {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		dst[key] = src[k]
	}
}

// cellValue reduces v to a scalar a spreadsheet cell can hold.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, int, int64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		// only empty objects reach here
		return nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}

// cellString renders a cell for text formats.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
