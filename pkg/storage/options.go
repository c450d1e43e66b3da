package storage

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// StorageOptions is the string key/value configuration passed to factories.
//
// Keys are interpreted by each backend; unknown keys are ignored. The map
// is treated as read-only by every consumer.
type StorageOptions map[string]string

// Get returns the value of key, matching the key case-insensitively.
func (o StorageOptions) Get(key string) (string, bool) {
	if v, ok := o[key]; ok {
		return v, true
	}
	for k, v := range o {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Bool reports whether key is set to a truthy value.
func (o StorageOptions) Bool(key string) bool {
	v, ok := o.Get(key)
	return ok && StrIsTruthy(v)
}

// Merge returns a new map holding o overlaid with every map in others.
// Later maps win.
func (o StorageOptions) Merge(others ...StorageOptions) StorageOptions {
	out := make(StorageOptions, len(o))
	for k, v := range o {
		out[k] = v
	}
	for _, other := range others {
		for k, v := range other {
			out[k] = v
		}
	}
	return out
}

// WithPrefix returns the entries whose key starts with one of prefixes.
func (o StorageOptions) WithPrefix(prefixes ...string) map[string]string {
	out := make(map[string]string)
	for k, v := range o {
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				out[k] = v
				break
			}
		}
	}
	return out
}

// Keys returns the sorted option keys.
func (o StorageOptions) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode fills target (a pointer to a struct with mapstructure tags) from o.
//
// Values are weakly typed: numeric strings decode into integers, durations
// like "30s" into time.Duration, and booleans accept every StrIsTruthy form.
// Keys without a matching field are ignored.
func (o StorageOptions) Decode(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			truthyHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(map[string]string(o)); err != nil {
		return fmt.Errorf("failed to decode storage options: %w", err)
	}
	return nil
}

func truthyHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
			return data, nil
		}
		return StrIsTruthy(data.(string)), nil
	}
}

// StrIsTruthy reports whether s is one of "1", "true", "on", "yes" or "y",
// compared case-insensitively.
func StrIsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes", "y":
		return true
	}
	return false
}
