package viewer

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/playtest/playtest/model"
)

// Query runs a jq expression over a raw artifact and returns every result.
func Query(file string, data []byte, expr string) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression %q: %w", expr, err)
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, &model.ParseError{File: file, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	var results []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if err, ok := err.(*gojq.HaltError); ok && err.Value() == nil {
				break
			}
			return nil, fmt.Errorf("jq expression %q failed: %w", expr, err)
		}
		results = append(results, v)
	}
	return results, nil
}
