package compare

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/lexicompare/internal/model"
	"github.com/tidwall/gjson"
)

// ErrInvalidInput marks a clause set that is not an object of string arrays
var ErrInvalidInput = errors.New("invalid input shape")

// DecodeClauseSet parses a JSON object mapping category keys to arrays of clause
// strings. A null list is treated the same as a missing key. Any other shape
// fails with ErrInvalidInput naming the offending path.
func DecodeClauseSet(data []byte) (model.ClauseSet, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidInput)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object of clause lists, got %s", ErrInvalidInput, describe(root))
	}

	set := make(model.ClauseSet)
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		category := model.CategoryKey(name)

		if _, dup := set[category]; dup {
			err = fmt.Errorf("%w: %s appears more than once", ErrInvalidInput, name)
			return false
		}

		switch {
		case value.Type == gjson.Null:
			return true
		case !value.IsArray():
			err = fmt.Errorf("%w: %s must be an array of strings, got %s", ErrInvalidInput, name, describe(value))
			return false
		}

		items := value.Array()
		clauses := make([]string, 0, len(items))
		for i, item := range items {
			if item.Type != gjson.String {
				err = fmt.Errorf("%w: %s[%d] must be a string, got %s", ErrInvalidInput, name, i, describe(item))
				return false
			}
			clauses = append(clauses, item.Str)
		}
		set[category] = clauses
		return true
	})
	if err != nil {
		return nil, err
	}

	return set, nil
}

// LoadClauseSet reads and decodes a clause set file
func LoadClauseSet(path string) (model.ClauseSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clause file: %w", err)
	}

	set, err := DecodeClauseSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

func describe(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	if r.IsArray() {
		return "array"
	}
	if r.IsObject() {
		return "object"
	}
	return strings.TrimSpace(r.Raw)
}
