// Package massassign copies request attribute maps onto model structs,
// gated by a per-model allow list (fillable) or deny list (guarded).
package massassign

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Guard describes which attributes of a model may be mass assigned.
// Attribute names are the model's JSON field names.
type Guard struct {
	Fillable []string
	Guarded  []string
}

// GuardAll rejects every attribute; only ForceFill can write to the model.
var GuardAll = Guard{Guarded: []string{"*"}}

func (g Guard) IsFillable(key string) bool {
	if slices.Contains(g.Guarded, key) || slices.Contains(g.Guarded, "*") {
		return false
	}
	if len(g.Fillable) > 0 {
		return slices.Contains(g.Fillable, key)
	}
	return true
}

// Filter splits attrs into the fillable subset and the sorted list of
// discarded keys.
func (g Guard) Filter(attrs map[string]any) (map[string]any, []string) {
	kept := make(map[string]any, len(attrs))
	var discarded []string
	for k, v := range attrs {
		if g.IsFillable(k) {
			kept[k] = v
		} else {
			discarded = append(discarded, k)
		}
	}
	sort.Strings(discarded)
	return kept, discarded
}

// Fill assigns the fillable attributes to dst, a pointer to a struct.
// Attributes the guard rejects are ignored and returned so callers can log
// them. Fields not present in attrs keep their current value.
func Fill(dst any, attrs map[string]any, g Guard) ([]string, error) {
	kept, discarded := g.Filter(attrs)
	if err := decode(dst, kept); err != nil {
		return discarded, err
	}
	return discarded, nil
}

// ForceFill assigns attrs to dst without consulting any guard. It is meant
// for values the application computes itself, never for request input.
func ForceFill(dst any, attrs map[string]any) error {
	return decode(dst, attrs)
}

func decode(dst any, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return fmt.Errorf("massassign: %w", err)
	}
	if err := dec.Decode(attrs); err != nil {
		return fmt.Errorf("massassign: %w", err)
	}
	return nil
}
