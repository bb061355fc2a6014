package flow

import (
	"fmt"
	"regexp"
)

// scopeNameRe matches a legal scope/node name: the first path segment of a
// link target. Grounded on flowfish.scope's name validation.
var scopeNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Scope is a named collection of nodes sharing a base config. Mirrors
// flowfish.scope.Scope.
type Scope struct {
	session *Session
	flow    *Flow
	name    string
	conf    map[string]any
	nodes   map[string]*Node
	order   []string

	baseResolved bool
	base         *Scope
	root         bool
}

func newScope(session *Session, flow *Flow, name string, conf map[string]any) (*Scope, error) {
	if !scopeNameRe.MatchString(name) {
		return nil, newFlowError("invalid scope name %q", name)
	}
	s := &Scope{
		session: session,
		flow:    flow,
		name:    name,
		conf:    conf,
		nodes:   make(map[string]*Node),
	}
	return s, nil
}

// Path returns the scope's on-disk directory name, `_path` overriding the
// scope name itself.
func (s *Scope) Path() string {
	if v, ok := s.conf["_path"]; ok {
		return asString(v)
	}
	return s.name
}

// ReadOnly reports the scope-level `_readonly` default.
func (s *Scope) ReadOnly() bool {
	return asBool(s.conf["_readonly"])
}

// Requires returns the scope-level `_requires` default.
func (s *Scope) Requires() []string {
	return asStringList(s.conf["_requires"])
}

// addNode registers a node's raw config under name: it validates the name,
// rejects a duplicate and stores conf as given. A `_func` value is not
// rewritten here; no `$param` shorthand is expanded.
func (s *Scope) addNode(name string, conf map[string]any) error {
	if !scopeNameRe.MatchString(name) {
		return newFlowError("invalid node name %q in scope %q", name, s.name)
	}
	if _, exists := s.nodes[name]; exists {
		return newFlowError("duplicate node %q in scope %q", name, s.name)
	}
	node := newNode(s.session, s.flow, s, name, conf)
	s.nodes[name] = node
	s.order = append(s.order, name)
	return nil
}

// findNode resolves a bare node name (no scope/flow qualifier) within this
// scope. Mirrors flowfish.scope.Scope._find_node.
func (s *Scope) findNode(link string) (*Node, error) {
	node, ok := s.nodes[link]
	if !ok {
		return nil, newNodeNotFoundError(s.name, link)
	}
	return node, nil
}

// resolveBase walks the scope's `_base` reference to another scope in the
// same flow, caching the result. Mirrors flowfish.scope.Scope._resolve_base.
func (s *Scope) resolveBase() (*Scope, error) {
	if s.baseResolved {
		return s.base, nil
	}
	baseName := asString(s.conf["_base"])
	if baseName == "" || baseName == s.name {
		s.baseResolved = true
		s.base = nil
		return nil, nil
	}
	base, err := s.flow.findScope(baseName)
	if err != nil {
		if isNotFound(err) {
			s.baseResolved = true
			s.base = nil
			return nil, nil
		}
		return nil, err
	}
	s.base = base
	s.baseResolved = true
	return base, nil
}

// mergeScope folds every node from the scope's base chain in, then merges
// each node's own base chain. Mirrors flowfish.scope.Scope._merge_scope.
func (s *Scope) mergeScope() error {
	if s.root {
		return nil
	}
	base, err := s.resolveBase()
	if err != nil {
		return err
	}
	if base != nil {
		if err := base.mergeScope(); err != nil {
			return err
		}
		for _, name := range base.order {
			if _, exists := s.nodes[name]; !exists {
				baseNode := base.nodes[name]
				if err := s.addNode(name, deepCopyValue(baseNode.initial).(map[string]any)); err != nil {
					return err
				}
			}
		}
	}
	s.root = true
	for _, name := range s.order {
		if err := s.nodes[name].mergeNode(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) String() string {
	return fmt.Sprintf("Scope(%s)", s.name)
}
