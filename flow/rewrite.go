package flow

import "errors"

// errStopRewrite, when returned by a Rewriter callback, elides the single
// item being rewritten (it is dropped from its parent dict/list) without
// aborting the rest of the walk -- the Go analogue of
// flowfish.conf.StopRewrite.
var errStopRewrite = errors.New("stop rewrite")

// Rewriter is the set of override points the generic depth-bounded tree
// walker (walk/walkDict/walkList below) calls back into. Only the methods
// flowfish's six concrete Rewrite subclasses actually override are
// exposed here: discard_item, rewrite_str, rewrite_dict and rewrite_object.
// Scalars (nil/bool/number) and lists pass through unchanged in every
// concrete view, so the walker handles them directly instead of routing
// them through the interface.
type Rewriter interface {
	// MaxDepth returns the depth at which the walk stops descending
	// (-1 means unbounded), mirroring Rewrite.__init__(max_depth).
	MaxDepth() int
	// DiscardItem decides whether to drop a dict entry before rewriting it.
	DiscardItem(key string, v any, depth int, parent map[string]any) bool
	// RewriteString transforms a string leaf.
	RewriteString(key string, v string, depth int) (any, error)
	// RewriteDict transforms a dict after all of its surviving children
	// have already been rewritten.
	RewriteDict(key string, v map[string]any, depth int) (any, error)
	// RewriteObject transforms anything that is not nil/bool/number/
	// string/list/dict -- a foreign/opaque value, or (in CallConf) a Link.
	RewriteObject(key string, v any, depth int) (any, error)
}

// baseRewriter supplies pass-through defaults for every Rewriter method, so
// concrete views only need to implement the handful they actually care
// about (the same role flowfish.conf.Rewrite's default method bodies play
// for its subclasses).
type baseRewriter struct{ maxDepth int }

func (b *baseRewriter) MaxDepth() int { return b.maxDepth }
func (b *baseRewriter) DiscardItem(string, any, int, map[string]any) bool {
	return false
}
func (b *baseRewriter) RewriteString(_ string, v string, _ int) (any, error) { return v, nil }
func (b *baseRewriter) RewriteDict(_ string, v map[string]any, _ int) (any, error) {
	return v, nil
}
// RewriteObject's default passes an opaque value through unchanged, except
// for a value that presents itself as a map (DictLike) -- it is rewritten
// as a dict instead, mirroring flowfish.conf.Rewrite.rewrite_object's
// `hasattr(v, 'dict')` check. Views that need different opaque-value
// handling (hashing, link rendering, ...) override RewriteObject and don't
// reach this default.
func (b *baseRewriter) RewriteObject(k string, v any, depth int) (any, error) {
	if dl, ok := v.(DictLike); ok {
		return b.RewriteDict(k, dl.ToMap(), depth)
	}
	return v, nil
}

// Rewrite runs rw over v from the root (depth 0), matching
// flowfish.conf.Rewrite.rewrite.
func Rewrite(rw Rewriter, v any) (any, error) {
	return walk(rw, "", v, 0)
}

func walk(rw Rewriter, k string, v any, depth int) (any, error) {
	if max := rw.MaxDepth(); max != -1 && depth > max {
		return v, nil
	}

	switch t := v.(type) {
	case string:
		return rw.RewriteString(k, t, depth)
	case map[string]any:
		rewritten, err := walkDict(rw, k, t, depth)
		if err != nil {
			if err == errStopRewrite {
				return nil, errStopRewrite
			}
			return nil, err
		}
		return rw.RewriteDict(k, rewritten, depth)
	case []any:
		return walkList(rw, k, t, depth)
	case nil, bool, int, int64, float64:
		return v, nil
	default:
		return rw.RewriteObject(k, v, depth)
	}
}

func walkDict(rw Rewriter, _ string, v map[string]any, depth int) (map[string]any, error) {
	out := make(map[string]any, len(v))
	for _, k := range sortedKeys(v) {
		vv := v[k]
		if rw.DiscardItem(k, vv, depth+1, v) {
			continue
		}
		if isComment(k) {
			out[k] = vv
			continue
		}
		rewritten, err := walk(rw, k, vv, depth+1)
		if err == errStopRewrite {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[k] = rewritten
	}
	return out, nil
}

func walkList(rw Rewriter, k string, v []any, depth int) ([]any, error) {
	out := make([]any, 0, len(v))
	for _, vv := range v {
		rewritten, err := walk(rw, k, vv, depth+1)
		if err == errStopRewrite {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rewritten)
	}
	return out, nil
}
