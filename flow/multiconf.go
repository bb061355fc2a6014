package flow

// MergeConfs deep-merges a sequence of decoded flow config trees into one,
// later documents overriding earlier ones key-by-key at every depth (dicts
// merge recursively, any other type simply replaces). Mirrors flowfish's
// multi-conf loading, where a flow may be assembled from a base file plus
// one or more overlay files (e.g. an environment-specific overrides file
// layered on a shared defaults file).
func MergeConfs(confs ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, c := range confs {
		mergeInto(out, c)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		existing, ok := dst[k]
		if !ok {
			dst[k] = deepCopyValue(v)
			continue
		}
		existingMap, eok := existing.(map[string]any)
		valueMap, vok := v.(map[string]any)
		if eok && vok {
			mergeInto(existingMap, valueMap)
			continue
		}
		dst[k] = deepCopyValue(v)
	}
}
