package flow

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/flowkit/flowkit/eval"
)

// Evaluator is the flow package's name for the expression-evaluator seam,
// kept as a local alias so link/conf_views read without an eval. prefix.
type Evaluator = eval.Evaluator

// linkGrammar matches a link value after the leading kind sigil has been
// consumed: "target" followed by an optional "/path" or ":expr" suffix.
// Mirrors flowfish.conf.RewriteBaseConf.rewrite_str's
// r'^([@&])(.+#.+?|.+?)([/|:].*)?$'.
var linkGrammar = regexp.MustCompile(`^([@&])(.+#.+?|.+?)([/:].*)?$`)

// isLinkLiteral reports whether a string is a candidate link (starts with a
// single @ or & that is not doubled/escaped), matching
// r'(@[^@]|&[^&]).*'.
func isLinkLiteral(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] == '@' && s[1] != '@' {
		return true
	}
	if s[0] == '&' && s[1] != '&' {
		return true
	}
	return false
}

// Link is a directed, typed edge from a source node to one of a target
// node's parameters: by-value (@) or by-reference (&), with an optional
// filesystem-path or expression suffix. Mirrors flowfish.link.Link.
type Link struct {
	Source *Node
	Target *Node
	Param  string
	Suffix string
	Kind   string // "@" or "&"
}

// Internal reports whether this link feeds a metadata (underscore) param.
func (l *Link) Internal() bool {
	return isHidden(l.Param)
}

// String renders the link the way it would be written back into config:
// same-node self-reference ("@."), intra-flow cross-scope ("@scope.node"),
// intra-scope ("@node"), or inter-flow ("@path/to/file.json#scope.node"),
// each with its suffix appended. Mirrors flowfish.link.Link.__repr__.
func (l *Link) String() string {
	value := l.Kind
	switch {
	case l.Source == l.Target:
		value += "."
	case l.Source.flow != l.Target.flow:
		path := l.Source.flow.file
		value += path + "#" + l.Source.Scope() + "." + l.Source.Name()
	case l.Source.Scope() != l.Target.Scope():
		value += l.Source.Scope() + "." + l.Source.Name()
	default:
		value += l.Source.Name()
	}
	value += l.Suffix
	return value
}

// Resolve computes the value delivered to the target param, given the
// source node's by-value output and its by-reference callable, matching
// flowfish.link.Link.resolve. evaluator is used for the ":expr" and
// "/.:expr" suffix forms.
func (l *Link) Resolve(value, ref any, evaluator Evaluator) (any, error) {
	input := value
	if l.Kind == "&" {
		input = ref
	}

	if strings.HasPrefix(l.Suffix, "/") {
		path := l.Suffix[1:]
		switch {
		case path == ".":
			path = toPathString(value)
		case strings.HasPrefix(path, "."):
			path = path[1:]
			if strings.HasPrefix(path, ":") {
				result, err := evaluator.Eval(path[1:], input, nil)
				if err != nil {
					return nil, err
				}
				s, ok := result.(string)
				if !ok {
					return nil, newFlowError("expression must return a string")
				}
				path = s
			}
		}
		if err := os.MkdirAll(l.Source.WorkDir(), 0o755); err != nil {
			return nil, err
		}
		return filepath.Join(l.Source.WorkDir(), path), nil
	}

	if strings.HasPrefix(l.Suffix, ":") {
		return evaluator.Eval(l.Suffix[1:], input, nil)
	}

	return input, nil
}

func toPathString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
