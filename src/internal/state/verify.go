package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

// Verify checks that every record of desired is reflected in current.
// Fields left unset in desired are not compared. Records marked absent must
// be gone, except physical interfaces, which only have to be down.
// The error names the first differing entity and property.
func Verify(desired, current *NetworkState) error {
	cur := current.Clone()
	cur.Canonicalize()
	want := desired.Clone()
	want.Canonicalize()

	for _, kind := range SupportedKinds {
		if !want.Has(kind) {
			continue
		}
		for _, d := range want.Entities(kind) {
			c := cur.Lookup(kind, d.EntityID())
			if d.IsAbsent() {
				if c != nil && !absentSatisfied(c) {
					return errors.NewVerificationFailure(
						fmt.Sprintf("%s: desired absent, but it still exists", RefOf(d)), nil)
				}
				continue
			}
			if c == nil {
				return errors.NewVerificationFailure(
					fmt.Sprintf("%s: desired present, but it was not found", RefOf(d)), nil)
			}
			if diff := Difference(d, c); diff != "" {
				return errors.NewVerificationFailure(fmt.Sprintf("%s: %s", RefOf(d), diff), nil)
			}
		}
	}
	return nil
}

func absentSatisfied(current Entity) bool {
	iface, ok := current.(*Interface)
	if !ok || iface.Type.IsVirtual() {
		return false
	}
	return iface.State == StateDown
}

// Difference compares two records and describes the first property whose
// desired value is not matched, or returns "" when desired is covered.
func Difference(desired, current Entity) string {
	d, errD := toGeneric(desired)
	c, errC := toGeneric(current)
	if errD != nil || errC != nil {
		return "records cannot be compared"
	}
	return difference("", d, c)
}

func toGeneric(e Entity) (interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var v interface{}
	err = json.Unmarshal(data, &v)
	return v, err
}

func difference(path string, desired, current interface{}) string {
	if desired == nil {
		return ""
	}
	if current == nil && isZero(desired) {
		return ""
	}

	switch d := desired.(type) {
	case map[string]interface{}:
		c, _ := current.(map[string]interface{})
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var cv interface{}
			if c != nil {
				cv = c[k]
			}
			if diff := difference(join(path, k), d[k], cv); diff != "" {
				return diff
			}
		}
		return ""
	case []interface{}:
		c, ok := current.([]interface{})
		if !ok || len(c) != len(d) {
			return mismatch(path, desired, current)
		}
		for idx := range d {
			if diff := difference(fmt.Sprintf("%s[%d]", path, idx), d[idx], c[idx]); diff != "" {
				return diff
			}
		}
		return ""
	default:
		if !reflect.DeepEqual(desired, current) {
			return mismatch(path, desired, current)
		}
		return ""
	}
}

func isZero(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		for _, val := range t {
			if !isZero(val) {
				return false
			}
		}
		return true
	}
	return v == nil
}

func mismatch(path string, desired, current interface{}) string {
	return fmt.Sprintf("%s desired %s, current %s", path, render(desired), render(current))
}

func render(v interface{}) string {
	if v == nil {
		return "<none>"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return strings.Join([]string{path, key}, ".")
}
