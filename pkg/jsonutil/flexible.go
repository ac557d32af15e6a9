// Package jsonutil decodes loosely typed JSON submitted by lab and field clients.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting numbers
// and booleans where a string was expected. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return strconv.FormatInt(int64(numVal), 10)
		}
		return strconv.FormatFloat(numVal, 'g', -1, 64)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// FlexibleStrings is a string map whose JSON values may be strings, numbers
// or booleans. Lab reports send measurements like {"withanolides": 2.5}
// as often as {"withanolides": "2.5%"}.
type FlexibleStrings map[string]string

// UnmarshalJSON implements json.Unmarshaler. Null values become empty strings;
// nested objects and arrays are rejected.
func (f *FlexibleStrings) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected an object of values: %w", err)
	}

	out := make(FlexibleStrings, len(raw))
	for k, v := range raw {
		if len(v) > 0 && (v[0] == '{' || v[0] == '[') {
			return fmt.Errorf("value for %q must be a string, number or boolean", k)
		}
		out[k] = FlexibleStringValue(v)
	}
	*f = out
	return nil
}
