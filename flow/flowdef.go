package flow

import (
	"fmt"
	"strings"
)

// Flow is one parsed configuration file: a named collection of scopes.
// Mirrors flowfish.flow.Flow.
type Flow struct {
	session *Session
	file    string
	scopes  map[string]*Scope
	order   []string
}

func newFlowDef(session *Session, file string) *Flow {
	return &Flow{
		session: session,
		file:    file,
		scopes:  make(map[string]*Scope),
	}
}

// addScope parses one top-level "scope[@base]: {...}" block from the flow's
// raw config, expanding the `@base` shorthand of the scope key and of node
// keys inline. Mirrors flowfish.flow.Flow._add_scope plus the node-level
// rewrite that happens during flowfish.flux.Flux.load_flow's first pass.
func (f *Flow) addScope(name string, conf map[string]any) error {
	scopeConf := make(map[string]any, len(conf))
	nodeConfs := make(map[string]map[string]any)
	name, scopeBase := splitNodeKey(name)
	if scopeBase != "" {
		scopeConf["_base"] = scopeBase
	}

	for key, value := range conf {
		if isComment(key) {
			continue
		}
		if isHidden(key) {
			scopeConf[key] = value
			continue
		}
		nodeConf, ok := value.(map[string]any)
		if !ok {
			scopeConf[key] = value
			continue
		}
		name, base := splitNodeKey(key)
		merged := deepCopyValue(nodeConf).(map[string]any)
		if base != "" {
			merged["_base"] = base
		}
		nodeConfs[name] = merged
	}

	scope, err := newScope(f.session, f, name, scopeConf)
	if err != nil {
		return err
	}
	f.scopes[name] = scope
	f.order = append(f.order, name)

	for nodeName, nodeConf := range nodeConfs {
		if err := scope.addNode(nodeName, nodeConf); err != nil {
			return err
		}
	}
	return nil
}

// splitNodeKey splits a "name@base" scope or node key into its name and base
// parts.
func splitNodeKey(key string) (name, base string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '@' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// findScope resolves a bare scope name within this flow.
func (f *Flow) findScope(name string) (*Scope, error) {
	s, ok := f.scopes[name]
	if !ok {
		return nil, newScopeNotFoundError(f.file, name)
	}
	return s, nil
}

// setupFlow merges every scope's base chain and runs each node's setup
// pass, computing hashes and wiring the session-wide dependency graph.
// Mirrors the bulk of flowfish.flux.Flux.load_flow.
func (f *Flow) setupFlow() error {
	for _, name := range f.order {
		if err := f.scopes[name].mergeScope(); err != nil {
			return err
		}
	}
	for _, name := range f.order {
		scope := f.scopes[name]
		for _, nodeName := range scope.order {
			if err := scope.nodes[nodeName].setupNode(nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindNode resolves a "scope.node" reference within this flow.
func (f *Flow) FindNode(ref string) (*Node, error) {
	scopeName, nodeName, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, newFlowError("invalid node reference %q, expected scope.node", ref)
	}
	scope, err := f.findScope(scopeName)
	if err != nil {
		return nil, err
	}
	return scope.findNode(nodeName)
}

// FindNodeBySlug scans every scope for a node whose computed Slug matches
// slug, used by the agent job protocol to resolve a job record back to a
// concrete node.
func (f *Flow) FindNodeBySlug(slug string) (*Node, error) {
	for _, scopeName := range f.order {
		scope := f.scopes[scopeName]
		for _, nodeName := range scope.order {
			node := scope.nodes[nodeName]
			if node.setupDone && node.Slug() == slug {
				return node, nil
			}
		}
	}
	return nil, newFlowError("no node found for slug %s", slug)
}

func (f *Flow) String() string {
	return fmt.Sprintf("Flow(%s)", f.file)
}
