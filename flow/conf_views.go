package flow

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/flowkit/flowkit/eval"
)

// baseConfView creates links between nodes, turning every link-literal
// string value into a *Link and recording it. Mirrors
// flowfish.conf.RewriteBaseConf.
type baseConfView struct {
	baseRewriter
	target *Node
	links  *[]*Link
}

func newBaseConfView(target *Node, links *[]*Link) *baseConfView {
	return &baseConfView{baseRewriter{maxDepth: 2}, target, links}
}

func (b *baseConfView) DiscardItem(k string, _ any, depth int, parent map[string]any) bool {
	if depth == 1 && isComment(k) {
		if _, ok := parent[k[1:]]; ok {
			return true
		}
	}
	return false
}

func (b *baseConfView) RewriteString(k, v string, depth int) (any, error) {
	if depth > 2 || !isLinkLiteral(v) {
		return v, nil
	}
	m := linkGrammar.FindStringSubmatch(v)
	if m == nil {
		return nil, newFlowError("%s: %s=%q is invalid", b.target.Crumb(), k, v)
	}
	kind, link, suffix := m[1], m[2], m[3]

	var source *Node
	if link == "." {
		source = b.target
	} else {
		n, err := b.target.FindNode(link)
		if err != nil {
			return nil, wrapFlowError(err, "%s: %s=%q not found", b.target.Crumb(), k, v)
		}
		source = n
	}
	l := &Link{Source: source, Target: b.target, Param: k, Suffix: suffix, Kind: kind}
	*b.links = append(*b.links, l)
	return l, nil
}

// nodeConfView extends the depth-0 dict with the function's declared
// defaults for any missing parameter. Mirrors flowfish.conf.RewriteNodeConf.
type nodeConfView struct {
	baseRewriter
	defs map[string]any
}

func newNodeConfView(defs map[string]any) *nodeConfView {
	return &nodeConfView{baseRewriter{maxDepth: 2}, defs}
}

func (n *nodeConfView) DiscardItem(k string, _ any, depth int, _ map[string]any) bool {
	if depth == 1 && isComment(k) {
		if _, ok := n.defs[k[1:]]; ok {
			return true
		}
	}
	return false
}

func (n *nodeConfView) RewriteDict(_ string, v map[string]any, depth int) (any, error) {
	if depth != 0 {
		return v, nil
	}
	out := make(map[string]any, len(n.defs)+len(v))
	for k, vv := range n.defs {
		out[k] = vv
	}
	for k, vv := range v {
		out[k] = vv
	}
	return out, nil
}

// stopRewriteObjects elides every opaque object it encounters, used by
// argsConfView to JSON-coerce a value for default-equality comparison
// without choking on non-JSON-native values. Mirrors
// flowfish.conf.StopRewriteObjects.
type stopRewriteObjects struct{ baseRewriter }

func (stopRewriteObjects) RewriteObject(string, any, int) (any, error) {
	return nil, errStopRewrite
}

func jsonCoerce(v any) any {
	stripped, _ := Rewrite(&stopRewriteObjects{baseRewriter{maxDepth: -1}}, v)
	data, err := json.Marshal(stripped)
	if err != nil {
		return nil
	}
	var out any
	_ = json.Unmarshal(data, &out)
	return out
}

// argsConfView creates the displayable config: comments, internal (_) keys
// and default-valued args are dropped; dicts are sorted; Links render as
// their string form. Mirrors flowfish.conf.RewriteArgsConf.
type argsConfView struct {
	baseRewriter
	defs map[string]any
}

func newArgsConfView(defs map[string]any) *argsConfView {
	return &argsConfView{baseRewriter{maxDepth: 2}, defs}
}

func (a *argsConfView) DiscardItem(k string, v any, depth int, _ map[string]any) bool {
	if depth == 1 && (isComment(k) || isHidden(k)) {
		return true
	}
	if depth == 1 {
		if d, ok := a.defs[k]; ok {
			if valuesEqual(v, d) {
				return true
			}
			jv, jd := jsonCoerce(v), jsonCoerce(d)
			return valuesEqual(jv, jd)
		}
	}
	return false
}

func (a *argsConfView) RewriteDict(_ string, v map[string]any, _ int) (any, error) {
	return sortedDict(v), nil
}

func (a *argsConfView) RewriteObject(_ string, v any, depth int) (any, error) {
	if depth <= 2 {
		if l, ok := v.(*Link); ok {
			return l.String(), nil
		}
	}
	return v, nil
}

// hashConfView creates the canonical config used to compute a node's hash:
// comments and internal keys dropped at depth 1 only (recursion is
// otherwise unbounded), dicts sorted, links rendered with the source's
// slug, and opaque objects reduced to a content hash. Mirrors
// flowfish.conf.RewriteHashConf.
type hashConfView struct{ baseRewriter }

func newHashConfView() *hashConfView { return &hashConfView{baseRewriter{maxDepth: -1}} }

func (h *hashConfView) DiscardItem(k string, _ any, depth int, _ map[string]any) bool {
	return depth == 1 && (isComment(k) || isHidden(k))
}

func (h *hashConfView) RewriteDict(_ string, v map[string]any, _ int) (any, error) {
	return sortedDict(v), nil
}

func (h *hashConfView) RewriteObject(_ string, v any, depth int) (any, error) {
	if l, ok := v.(*Link); ok {
		if depth <= 2 {
			value := l.Kind
			if l.Source == l.Target {
				value += "."
			} else {
				value += l.Source.Slug()
			}
			value += l.Suffix
			return value, nil
		}
	}
	return objectHash(v), nil
}

// flowConfView creates the dumpable snapshot config: the _agent property is
// dropped, links render as their string form, and any other opaque object
// is elided entirely. Mirrors flowfish.conf.RewriteFlowConf.
type flowConfView struct{ baseRewriter }

func newFlowConfView() *flowConfView { return &flowConfView{baseRewriter{maxDepth: -1}} }

func (f *flowConfView) DiscardItem(k string, _ any, depth int, _ map[string]any) bool {
	return depth == 1 && k == "_agent"
}

func (f *flowConfView) RewriteObject(_ string, v any, depth int) (any, error) {
	if depth <= 2 {
		if l, ok := v.(*Link); ok {
			return l.String(), nil
		}
	}
	return nil, errStopRewrite
}

var (
	literalEscapeRe = regexp.MustCompile(`^(@@|&&|\$\$).+`)
	envVarRe        = regexp.MustCompile(`^\$\w+`)
)

// callConfView produces the config actually handed to a function call:
// `_type.<name>` coercion directives are applied, literal-escaped sigils
// are un-escaped, environment variables and `~` are expanded, and Links are
// resolved to concrete values. Mirrors flowfish.conf.RewriteCallConf.
type callConfView struct {
	baseRewriter
	funcs     map[string]*Func
	funcPars  map[string]Param
	nodeVals  map[*Node][2]any // [value, ref]
	evaluator eval.Evaluator
}

func newCallConfView(funcs map[string]*Func, funcPars map[string]Param, nodeVals map[*Node][2]any, evaluator eval.Evaluator) *callConfView {
	return &callConfView{baseRewriter{maxDepth: 2}, funcs, funcPars, nodeVals, evaluator}
}

func (c *callConfView) DiscardItem(k string, _ any, depth int, _ map[string]any) bool {
	if depth == 1 {
		if strings.HasPrefix(k, "_type.") {
			return false
		}
		if isComment(k) {
			return true
		}
		if isHidden(k) {
			if _, ok := c.funcPars[k]; !ok {
				return true
			}
		}
	}
	return false
}

func (c *callConfView) RewriteDict(_ string, v map[string]any, depth int) (any, error) {
	if depth != 0 {
		return v, nil
	}
	types := make(map[string]string)
	for k := range v {
		if strings.HasPrefix(k, "_type.") {
			types[k[len("_type."):]] = v[k].(string)
			delete(v, k)
		}
	}
	if len(types) == 0 {
		return v, nil
	}
	out := make(map[string]any, len(v))
	for k, vv := range v {
		name, ok := types[k]
		if !ok {
			out[k] = vv
			continue
		}
		fn, err := c.coerceFunc(name)
		if err != nil {
			return nil, err
		}
		coerced, err := fn.Call(map[string]any{"input": vv})
		if err != nil {
			return nil, err
		}
		out[k] = coerced
	}
	return out, nil
}

func (c *callConfView) coerceFunc(name string) (*Func, error) {
	if fn, ok := c.funcs[name]; ok {
		return fn, nil
	}
	return nil, newFlowError("coercion function not found: %s", name)
}

func (c *callConfView) RewriteString(_ string, v string, depth int) (any, error) {
	if depth <= 2 && literalEscapeRe.MatchString(v) {
		return v[1:], nil
	}
	if depth == 1 && strings.HasPrefix(v, "$") {
		if m := envVarRe.FindString(v); m != "" {
			name := m[1:]
			val, ok := os.LookupEnv(name)
			if !ok {
				return nil, newFlowError("environment variable not set: %s", name)
			}
			return val + v[len(m):], nil
		}
	}
	if depth == 1 && strings.HasPrefix(v, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + v[1:], nil
		}
	}
	return v, nil
}

func (c *callConfView) RewriteObject(_ string, v any, depth int) (any, error) {
	if depth <= 2 {
		if l, ok := v.(*Link); ok {
			pair := c.nodeVals[l.Source]
			return l.Resolve(pair[0], pair[1], c.evaluator)
		}
	}
	return v, nil
}

func valuesEqual(a, b any) bool {
	aj, err1 := json.Marshal(a)
	bj, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(aj) == string(bj)
}
