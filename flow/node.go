package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flowkit/flowkit/log"
	"github.com/flowkit/flowkit/storage"
)

// emptyValue is the sentinel returned by Node.Data when nothing is cached,
// the Go analogue of flowfish.node.Node.empty (a dedicated sentinel object,
// since nil is itself a legitimate cached value).
type emptyValue struct{}

var empty = emptyValue{}

// Node is one step of a flow: a resolved function bound to a config, wired
// to the nodes it depends on via Links. Mirrors flowfish.node.Node.
type Node struct {
	session *Session
	flow    *Flow
	scope   *Scope
	name    string
	conf    map[string]any
	initial map[string]any

	baseResolved bool
	base         *Node
	root         bool

	fn    *Func
	links []*Link

	baseConf map[string]any
	nodeConf map[string]any
	argsConf map[string]any
	hashConf map[string]any
	hashVal  string

	setupDone bool
}

func newNode(session *Session, flow *Flow, scope *Scope, name string, conf map[string]any) *Node {
	return &Node{
		session: session,
		flow:    flow,
		scope:   scope,
		name:    name,
		conf:    conf,
		initial: deepCopyValue(conf).(map[string]any),
	}
}

// Name returns the node's name within its scope.
func (n *Node) Name() string { return n.name }

// Scope returns the name of the scope this node belongs to.
func (n *Node) Scope() string { return n.scope.name }

// Base returns the node's resolved `_base` config value.
func (n *Node) Base() string { return asString(n.conf["_base"]) }

// Hash returns the node's content hash, computed during setup.
func (n *Node) Hash() string { return n.hashVal }

// Slug returns "<base>.<hash>", the node's unique on-disk identifier.
func (n *Node) Slug() string { return n.Base() + "." + n.Hash() }

// Crumb returns the "<file>#<scope>.<node>" breadcrumb used in error
// messages, mirroring flowfish.node.Node._node_crumb.
func (n *Node) Crumb() string {
	if n.flow.file != "" {
		return fmt.Sprintf("%s#%s.%s", filepath.Base(n.flow.file), n.scope.name, n.name)
	}
	return fmt.Sprintf("%s.%s", n.scope.name, n.name)
}

// Repr renders the node the way flowfish.node.Node.__repr__ does:
// "scope.name[@base][func]".
func (n *Node) Repr() string {
	value := n.scope.name + "." + n.name
	if base := asString(n.conf["_base"]); base != "" && base != n.name {
		value += "@" + base
	}
	if fn := asString(n.conf["_func"]); fn != "" {
		value += "[" + fn + "]"
	}
	return value
}

func (n *Node) String() string { return n.Repr() }

// Path returns the on-disk base directory name for the node's scope.
func (n *Node) Path() string {
	if v, ok := n.conf["_path"]; ok {
		return asString(v)
	}
	return n.scope.Path()
}

// ReadOnly reports whether the node must never be called (used by agents
// that only consume already-dumped results).
func (n *Node) ReadOnly() bool {
	if v, ok := n.conf["_readonly"]; ok {
		return asBool(v)
	}
	return n.scope.ReadOnly()
}

// Requires returns the node's package requirements (string or []string),
// falling back to the scope's.
func (n *Node) Requires() []string {
	if v, ok := n.conf["_requires"]; ok {
		return asStringList(v)
	}
	return n.scope.Requires()
}

func (n *Node) dataDir() string { return n.session.dataDir }
func (n *Node) syncDir() string { return n.session.syncDir }

// WorkDir returns the node's working directory on disk.
func (n *Node) WorkDir() string {
	return storage.WorkDir(n.dataDir(), n.Path(), n.Slug())
}

// DataFile returns the node's dumped-value file path.
func (n *Node) DataFile() string {
	return storage.DataFile(n.dataDir(), n.Path(), n.Slug())
}

// ConfFile returns the node's dumped-config file path.
func (n *Node) ConfFile() string {
	return storage.ConfFile(n.dataDir(), n.Path(), n.Slug())
}

func (n *Node) lockFile() string {
	return storage.LockFile(n.dataDir(), n.Path(), n.Slug())
}

func (n *Node) syncFile() string {
	if n.syncDir() == "" {
		return ""
	}
	return storage.SyncFileManifest(n.syncDir(), n.Path(), n.Slug())
}

// Synced reports whether the node has already been copied to sync_dir or,
// when no manifest for it is found there (or no sync directory is
// configured), uploaded to the session's object store (see WithObjectStore).
func (n *Node) Synced() bool {
	if f := n.syncFile(); f != "" {
		if _, err := os.Stat(f); err == nil {
			return true
		}
	}
	if n.session.objects != nil {
		return n.session.objects.exists(objectKey(n.Path(), n.Slug(), ".data"))
	}
	return false
}

// Locked reports whether another process currently holds this node's
// on-disk advisory lock.
func (n *Node) Locked() bool {
	if _, err := os.Stat(n.lockFile()); err != nil {
		return false
	}
	lock := storage.NewFileLock(n.lockFile())
	contended, err := lock.TryLock()
	if err != nil {
		return false
	}
	if !contended {
		lock.Unlock()
	}
	return contended
}

// Cachable reports whether the node's output may be held in the in-memory
// cache tier.
func (n *Node) Cachable() bool {
	if v, ok := n.conf["_cache"]; ok {
		return asBool(v)
	}
	return true
}

// Cached reports whether a value is currently present in the cache tier.
func (n *Node) Cached() bool {
	_, ok := n.session.cacheGet(n.Slug())
	return ok
}

// Data returns the node's cached value, or the emptyValue sentinel.
func (n *Node) Data() any {
	if v, ok := n.session.cacheGet(n.Slug()); ok {
		return v
	}
	return empty
}

// SetData stores v in the cache tier, or clears it when v is the empty
// sentinel.
func (n *Node) SetData(v any) {
	if v == any(empty) {
		n.session.cacheDelete(n.Slug())
		return
	}
	n.session.cacheSet(n.Slug(), v)
}

// Dumpable reports whether the node's output should be persisted to disk.
func (n *Node) Dumpable() bool {
	if v, ok := n.conf["_dump"]; ok {
		return asBool(v)
	}
	return false
}

// Dumped reports whether the node's data file already exists on disk.
func (n *Node) Dumped() bool {
	_, err := os.Stat(n.DataFile())
	return err == nil
}

// Done reports whether the node either holds a cached value or has already
// been dumped to disk -- it needs no further work to produce its value.
func (n *Node) Done() bool {
	return (n.Cachable() && n.Cached()) || (n.Dumpable() && n.Dumped())
}

// Doable reports whether every dumpable dependency of the node has already
// been dumped -- i.e. the node could run locally without further pulls.
func (n *Node) Doable() bool {
	nodes, _, err := n.session.graph.Tree(n, Upstream, func(nd *Node) bool { return nd.Dumpable() }, false)
	if err != nil {
		return false
	}
	for _, nd := range nodes {
		if nd.Dumpable() && !nd.Dumped() {
			return false
		}
	}
	return true
}

// Tree walks the session's shared dependency graph from this node. A thin
// wrapper so callers never need to reach into the session for Graph.Tree.
func (n *Node) Tree(direction Direction, untilDone UntilDone, omitInternal bool) ([]*Node, []*Link, error) {
	return n.session.graph.Tree(n, direction, untilDone, omitInternal)
}

// Args returns a deep copy of the node's displayable argument config.
func (n *Node) Args() map[string]any {
	return deepCopyValue(n.argsConf).(map[string]any)
}

func (n *Node) deps() []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	for _, l := range n.links {
		if l.Source != n && !seen[l.Source] {
			seen[l.Source] = true
			out = append(out, l.Source)
		}
	}
	return out
}

// FindNode resolves a link string relative to this node, walking up the
// node's base chain the same way flowfish.node.Node._find_node does.
func (n *Node) FindNode(link string) (*Node, error) {
	node := n
	for node != nil {
		found, err := node.scope.findNode(link)
		if err == nil {
			return found, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
		node, err = node.resolveBase()
		if err != nil {
			return nil, err
		}
	}
	return nil, newNodeNotFoundError(n.Crumb(), link)
}

func isNotFound(err error) bool {
	var nnf *NodeNotFoundError
	var snf *ScopeNotFoundError
	return errors.As(err, &nnf) || errors.As(err, &snf)
}

// resolveBase walks the node's `_base` reference to the node it inherits
// from, caching the result and detecting cycles. Mirrors
// flowfish.node.Node._resolve_base.
func (n *Node) resolveBase() (*Node, error) {
	if n.baseResolved {
		return n.base, nil
	}
	if n.root {
		n.baseResolved = true
		n.base = nil
		return nil, nil
	}

	baseName := asString(n.conf["_base"])
	if baseName == "" {
		baseName = n.name
	}

	resolve := func() (*Node, error) {
		baseNode, err := n.scope.findNode(baseName)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err == nil && baseNode == n {
			baseScope, serr := n.scope.resolveBase()
			if serr != nil {
				return nil, serr
			}
			if baseScope != nil {
				bn, berr := baseScope.findNode(baseName)
				if berr != nil && !isNotFound(berr) {
					return nil, berr
				}
				if berr == nil {
					return bn, nil
				}
				return nil, nil
			}
			return nil, nil
		}
		if err == nil {
			return baseNode, nil
		}
		return nil, nil
	}

	base, err := resolve()
	if err != nil {
		return nil, wrapFlowError(err, "%s @ %q", n.Crumb(), baseName)
	}
	n.base = base
	n.baseResolved = true

	var branch []*Node
	node := n
	for node != nil {
		branch = append(branch, node)
		next, err := node.resolveBase()
		if err != nil {
			return nil, err
		}
		if containsNode(branch, next) {
			return nil, newRecursionError("loop detected: %s", describeNodeLoop(branch, next))
		}
		node = next
	}

	return n.base, nil
}

func describeNodeLoop(branch []*Node, repeated *Node) string {
	all := append(append([]*Node{}, branch...), repeated)
	parts := make([]string, len(all))
	for i, nd := range all {
		label := nd.Scope() + "." + nd.Name()
		if nd == repeated {
			label = "[" + label + "]"
		}
		parts[i] = label
	}
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += " @ "
		}
		s += p
	}
	return s
}

// mergeNode folds inherited config from the node's base chain into this
// node's live conf: _func/_base copied verbatim, everything else only
// filled in if missing. Mirrors flowfish.node.Node._merge_node.
func (n *Node) mergeNode() error {
	base, err := n.resolveBase()
	if err != nil {
		return err
	}
	if base != nil {
		if err := base.mergeNode(); err != nil {
			return err
		}
		n.conf["_func"] = base.conf["_func"]
		n.conf["_base"] = base.conf["_base"]
		copyProps(base.conf, n.conf, nil, false)
	} else {
		if _, ok := n.conf["_func"]; !ok {
			n.conf["_func"] = n.conf["_base"]
			n.conf["_base"] = n.name
		} else if _, ok := n.conf["_base"]; !ok {
			n.conf["_base"] = n.name
		}
	}
	n.conf["_root"] = true
	n.root = true
	return nil
}

// setupNode resolves the node's function, runs the BaseConf/NodeConf/
// ArgsConf rewrite passes, wires its links into the session graph, resolves
// every link source recursively, and computes the node's content hash.
// Mirrors flowfish.node.Node._setup_node.
func (n *Node) setupNode(branch []*Node) error {
	if n.setupDone {
		return nil
	}

	fn, err := n.session.findFunc(asString(n.conf["_func"]))
	if err != nil {
		return err
	}
	n.fn = fn

	n.links = nil
	baseConf, err := Rewrite(newBaseConfView(n, &n.links), n.conf)
	if err != nil {
		return err
	}
	n.baseConf = baseConf.(map[string]any)

	nodeConf, err := Rewrite(newNodeConfView(fn.Defaults()), n.baseConf)
	if err != nil {
		return err
	}
	n.nodeConf = nodeConf.(map[string]any)

	argsConf, err := Rewrite(newArgsConfView(fn.Defaults()), n.nodeConf)
	if err != nil {
		return err
	}
	n.argsConf = argsConf.(map[string]any)

	n.session.graph.AddNode(n)
	for _, l := range n.links {
		if l.Source != n {
			if err := n.session.graph.AddLink(l); err != nil {
				return err
			}
		}
	}

	nextBranch := append(append([]*Node{}, branch...), n)
	for _, l := range n.links {
		if l.Source == n {
			continue
		}
		if containsNode(branch, l.Source) {
			return newRecursionError("loop detected: %s", describeNodeLoop(branch, l.Source))
		}
		if err := l.Source.setupNode(nextBranch); err != nil {
			return err
		}
	}

	hashConf, err := Rewrite(newHashConfView(), n.nodeConf)
	if err != nil {
		return err
	}
	n.hashConf = map[string]any{n.Base(): hashConf}

	if _, ok := n.nodeConf["_hash"]; !ok {
		dump, err := json.Marshal(sortNested(n.hashConf))
		if err != nil {
			return err
		}
		h := hash32(dump)
		n.hashVal = h
		n.baseConf["_hash"] = h
		n.nodeConf["_hash"] = h
	} else {
		n.hashVal = asString(n.nodeConf["_hash"])
	}

	n.setupDone = true
	touchLog.Debugf("node %s set up, hash=%s", n.Crumb(), n.hashVal)
	return nil
}

// sortNested recursively sorts map keys so json.Marshal's own key-sorting
// behavior (which Go's encoding/json already does for map[string]any) is
// guaranteed at every depth -- defensive, since json.Marshal already sorts
// map keys, but explicit to mirror json.dumps(sort_keys=True) intent.
func sortNested(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = sortNested(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = sortNested(vv)
		}
		return out
	default:
		return v
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func asStringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, vv := range t {
			if s, ok := vv.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// touchLog is a tiny indirection so tests can silence logging output.
var touchLog = log.Default

func sortedNodes(nodes []*Node) []*Node {
	out := append([]*Node{}, nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Repr() < out[j].Repr() })
	return out
}
