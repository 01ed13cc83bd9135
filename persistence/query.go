package persistence

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

// Query constrains object attributes by their serialized names. A condition
// is either a plain value the attribute must equal, or an operator document
// such as {"$in": [...]} requiring membership. Attributes the object does not
// carry are skipped with a warning, unknown operators are an error.
type Query map[string]any

// Match reports whether the object satisfies every condition of the query.
// Objects are matched through their JSON projection, so attribute names are
// the serialized ones (project_id, not ProjectID).
func Match(obj any, q Query) (bool, error) {
	if len(q) == 0 {
		return true, nil
	}

	fields, err := project(obj)
	if err != nil {
		return false, err
	}

	for attr, condition := range q {
		value, ok := fields[attr]
		if !ok {
			logrus.Warnf("object %T has no attribute %q", obj, attr)
			continue
		}

		doc, isDoc := condition.(map[string]any)
		if !isDoc {
			if !looseEqual(value, condition) {
				return false, nil
			}
			continue
		}

		if len(doc) != 1 {
			return false, fmt.Errorf("query condition %v was not understood", doc)
		}
		for op, arg := range doc {
			switch op {
			case "$in":
				ok, err := contains(arg, value)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			default:
				return false, fmt.Errorf("query operator %q is not understood", op)
			}
		}
	}
	return true, nil
}

func project(obj any) (map[string]any, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("project object %T: %w", obj, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("project object %T: %w", obj, err)
	}
	return fields, nil
}

func contains(choices, value any) (bool, error) {
	rv := reflect.ValueOf(choices)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false, fmt.Errorf("$in expects a list, got %T", choices)
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(value, rv.Index(i).Interface()) {
			return true, nil
		}
	}
	return false, nil
}

// looseEqual compares a JSON-projected value with a caller-supplied one.
// JSON numbers all come back as float64, so numeric values compare through
// float64 regardless of the Go type the caller used.
func looseEqual(a, b any) bool {
	af, aNum := asNumber(a)
	bf, bNum := asNumber(b)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
