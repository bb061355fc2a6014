package flow

import (
	"github.com/panjf2000/ants/v2"
)

// execPool is the shared worker pool used to run independent dependency calls
// concurrently. Mirrors flowfish.exec.pool_run's use of a thread pool,
// substituting goroutines dispatched through ants for Python threads.
var execPool, _ = ants.NewPool(32)

// Call resolves and invokes the node: it satisfies every dependency
// (recursively, concurrently where independent), builds the config handed
// to the function, and invokes it -- or, if the node is already Done,
// returns its cached or dumped value without doing any work. Mirrors
// flowfish.node.Node.__call__ / _call.
func (n *Node) Call(overrides map[string]any) (any, error) {
	if len(overrides) == 0 && n.Done() {
		return n.loadData()
	}
	if len(overrides) > 0 {
		return n.withArgs(overrides).callNow()
	}
	return n.callNow()
}

// withArgs returns a transient node-like call sandbox, the Go analogue of
// flowfish.node.Node._with_args: a shallow copy whose conf is overlaid with
// argument overrides and whose setup reruns against the live graph, so a
// one-off invocation with different arguments doesn't corrupt the session's
// canonical node.
func (n *Node) withArgs(overrides map[string]any) *Node {
	conf := deepCopyValue(n.initial).(map[string]any)
	for k, v := range overrides {
		conf[k] = v
	}
	clone := newNode(n.session, n.flow, n.scope, n.name, conf)
	clone.root = true
	clone.base = nil
	clone.baseResolved = true
	return clone
}

// callNow acquires the node's lock, resolves every dependency concurrently,
// assembles the call config, and invokes the registered function, caching
// and/or dumping the result according to the node's config.
func (n *Node) callNow() (any, error) {
	release := n.session.locks.Acquire(n.Slug())
	defer release()

	if n.Done() {
		return n.loadData()
	}

	if !n.setupDone {
		if err := n.setupNode(nil); err != nil {
			return nil, err
		}
	}

	nodeVals, err := n.callDeps()
	if err != nil {
		return nil, err
	}

	funcPars := make(map[string]Param, len(n.fn.Params))
	for _, p := range n.fn.Params {
		funcPars["_"+p.Name] = p
	}

	conf, err := Rewrite(newCallConfView(n.session.funcs, funcPars, nodeVals, n.session.evaluator), n.nodeConf)
	if err != nil {
		return nil, err
	}
	callArgs, ok := conf.(map[string]any)
	if !ok {
		return nil, newFlowError("%s: call config did not resolve to a mapping", n.Crumb())
	}

	result, err := n.fn.Call(callArgs)
	if err != nil {
		return nil, wrapFlowError(err, "%s", n.Crumb())
	}

	// never cache or dump a Reiterable -- each access must re-invoke
	// Produce, so there is no single materialized value to persist.
	if _, ok := result.(*Reiterable); ok {
		return result, nil
	}

	if n.Cachable() {
		n.SetData(result)
	}
	if n.Dumpable() {
		if err := n.save(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// callDeps invokes every by-value dependency source node concurrently (via
// the shared worker pool) and returns the [value, ref] pair RewriteCallConf
// needs for every Link target param, matching the dependency-counting
// concurrent scheduler flowfish.exec.pool_run implements for Python
// threads. A source reached only through "&" links is never invoked here --
// it gets a NodeRef closure instead, so the target Func decides if and when
// to call it, mirroring flowfish.node.Node._call_node's byval_sources /
// byref_sources split.
func (n *Node) callDeps() (map[*Node][2]any, error) {
	deps := n.deps()

	needsVal := make(map[*Node]bool, len(deps))
	needsRef := make(map[*Node]bool, len(deps))
	for _, l := range n.links {
		if l.Source == n {
			continue
		}
		switch l.Kind {
		case "@":
			needsVal[l.Source] = true
		case "&":
			needsRef[l.Source] = true
		}
	}

	type result struct {
		node  *Node
		value any
		err   error
	}
	results := make(chan result, len(deps))

	for _, dep := range deps {
		dep := dep
		if !needsVal[dep] {
			results <- result{dep, nil, nil}
			continue
		}
		if err := execPool.Submit(func() {
			v, err := dep.Call(nil)
			results <- result{dep, v, err}
		}); err != nil {
			v, callErr := dep.Call(nil)
			results <- result{dep, v, callErr}
			_ = err
		}
	}

	out := make(map[*Node][2]any, len(deps))
	for range deps {
		r := <-results
		if r.err != nil {
			return nil, r.err
		}
		var ref any
		if needsRef[r.node] {
			ref = r.node.lateCall()
		}
		out[r.node] = [2]any{r.value, ref}
	}
	return out, nil
}

// NodeRef is what callDeps delivers for a dependency reached only through a
// by-reference ("&") link: a closure the target Func can invoke with its
// own positional arguments, rather than a value already computed for it.
// Args are bound onto the referenced node's positional parameters by
// position, the same way flowfish.node.Node._call_later re-enters
// _call_func with the caller's *args. Mirrors Python's closure-returning
// _call_later, substituting Go's static typing for *args/**kwargs.
type NodeRef func(args ...any) (any, error)

// lateCall returns n's NodeRef: a closure that, each time it is invoked with
// arguments, binds them onto n's positional parameters as overrides and
// reruns n's call, so the target chooses the arguments. Invoked with no
// arguments it is n.Call(nil), which returns the cached or dumped value when
// there is one.
func (n *Node) lateCall() NodeRef {
	return func(args ...any) (any, error) {
		pos := n.fn.positionalParams()
		overrides := make(map[string]any, len(args))
		for i, v := range args {
			if i >= len(pos) {
				break
			}
			overrides[pos[i].Name] = v
		}
		return n.Call(overrides)
	}
}
