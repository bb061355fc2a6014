package flow

import "sort"

// Value is the untyped, JSON-like tree every piece of config and every
// function argument travels as: nil, bool, a number (float64, int or
// json.Number depending on how it was decoded), string, []any, map[string]any,
// *Link, or an opaque foreign value that falls through to RewriteObject.
// Go has no tagged union, so -- exactly like the original Python
// implementation, which represents the same tree as nested dict/list/Any --
// this is simply `any`, discriminated with type switches at the few places
// that care (the rewrite views).
type Value = any

// DictLike is the duck-typed escape hatch for "pydantic model"-style
// foreign values: anything that can present itself as a map is rewritten as
// one instead of falling through to object-hashing/object-elision. This
// mirrors flowfish.conf.Rewrite.rewrite_object's `hasattr(v, 'dict')` check.
type DictLike interface {
	ToMap() map[string]any
}

// sortedKeys returns a map's keys sorted lexically, used everywhere the
// original relies on Python's sorted_dict()/sort_keys=True JSON dumping.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDict(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for _, k := range sortedKeys(m) {
		out[k] = m[k]
	}
	return out
}

func isComment(key string) bool {
	return len(key) > 0 && key[0] == '#'
}

func isHidden(key string) bool {
	return len(key) > 0 && key[0] == '_'
}

// deepCopyValue makes an independent copy of a decoded config tree, the Go
// analogue of copy.deepcopy(conf) used throughout flowfish to keep an
// "_init_conf" snapshot separate from the live, mutated conf.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyValue(vv)
		}
		return out
	default:
		return v
	}
}
