package jq

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// Filter is a compiled jq program applied to every fetched record.
type Filter struct {
	source string
	code   *gojq.Code
}

// Compile parses and compiles query. An empty query is rejected so callers
// can treat a nil *Filter as "no filter".
func Compile(query string) (*Filter, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("jq query is empty")
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse jq query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compile jq query: %w", err)
	}
	return &Filter{source: query, code: code}, nil
}

func (f *Filter) String() string {
	return f.source
}

// Apply runs the program over each record and collects every object it
// emits, in order. Non-object results are wrapped as {"value": v}; null
// results are dropped so `select(...)` works as expected.
func (f *Filter) Apply(records []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for i, rec := range records {
		iter := f.code.Run(rec)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := v.(error); ok {
				var halt *gojq.HaltError
				if errors.As(err, &halt) && halt.Value() == nil {
					break
				}
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			switch t := v.(type) {
			case nil:
			case map[string]any:
				out = append(out, t)
			default:
				out = append(out, map[string]any{"value": t})
			}
		}
	}
	return out, nil
}
