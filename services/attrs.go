package services

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Attributes is a decoded request body keyed by JSON field name. It is
// what mass assignment reads from.
type Attributes = map[string]any

func present(attrs Attributes, key string) bool {
	v, ok := attrs[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// requirePresent flags every key that is missing, null or blank.
func requirePresent(verr *ValidationError, attrs Attributes, keys ...string) {
	for _, key := range keys {
		if !present(attrs, key) {
			verr.Add(key, "The "+strings.ReplaceAll(key, "_", " ")+" field is required.")
		}
	}
}

// idList reads a list of ids such as [1, "2"] from a JSON or form value.
// Duplicates are dropped, order is kept.
func idList(v any) ([]uint, error) {
	if v == nil {
		return nil, nil
	}
	var raw []uint
	if err := mapstructure.WeakDecode(v, &raw); err != nil {
		return nil, err
	}
	seen := make(map[uint]struct{}, len(raw))
	ids := make([]uint, 0, len(raw))
	for _, id := range raw {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
