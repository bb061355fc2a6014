package flow

import "strings"

// copyProps copies keys from source into target, optionally restricted to a
// dotted-path prefix built from prefixes (["foo","bar"] -> "foo.bar.") and
// optionally not overwriting keys already present in target. This is the
// direct translation of flowfish.utils.copy_props, which backs every prop-
// merging wave in the config model (flow-global, scope-scoped, node-scoped).
func copyProps(source map[string]any, target map[string]any, prefixes []string, overwrite bool) {
	if source == nil {
		return
	}
	var prefix string
	if len(prefixes) > 0 {
		prefix = strings.Join(prefixes, ".") + "."
	}
	for k, v := range source {
		if prefix == "" {
			if overwrite {
				target[k] = v
			} else if _, ok := target[k]; !ok {
				target[k] = v
			}
			continue
		}
		if strings.HasPrefix(k, prefix) {
			key := k[len(prefix):]
			if overwrite {
				target[key] = v
			} else if _, ok := target[key]; !ok {
				target[key] = v
			}
		}
	}
}

// copyPropsAll is copyProps with no prefix restriction and overwrite=true,
// the common case (copy_props(source, target) with default arguments).
func copyPropsAll(source map[string]any, target map[string]any) {
	copyProps(source, target, nil, true)
}
