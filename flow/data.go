package flow

import (
	"encoding/json"
	"os"

	"github.com/flowkit/flowkit/storage"
)

// loadData returns the node's value, preferring the in-memory cache and
// falling back to the dumped data file on disk. Mirrors
// flowfish.node.Node._load_data.
func (n *Node) loadData() (any, error) {
	if v, ok := n.session.cacheGet(n.Slug()); ok {
		return v, nil
	}
	data, err := os.ReadFile(n.DataFile())
	if err != nil {
		return nil, wrapFlowError(err, "%s: data not available", n.Crumb())
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, wrapFlowError(err, "%s: corrupt data file", n.Crumb())
	}
	if n.Cachable() {
		n.SetData(v)
	}
	return v, nil
}

// save writes the node's result to its data file (if dumpable) and its
// flow-snapshot config alongside it, both via atomic write-then-rename.
// Mirrors flowfish.node.Node.save / _dump_data / _dump_conf.
func (n *Node) save(result any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return wrapFlowError(err, "%s: result is not dumpable", n.Crumb())
	}
	if err := storage.AtomicWriteFile(n.DataFile(), data, 0o644); err != nil {
		return err
	}
	return n.dumpConf()
}

// dumpConf writes the node's flow-snapshot config (the FlowConfView
// rewrite of its node conf) to its conf file, used by agents to re-create
// an equivalent node without the original flow file.
func (n *Node) dumpConf() error {
	conf, err := n.flowConf()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return err
	}
	return storage.AtomicWriteFile(n.ConfFile(), data, 0o644)
}

func (n *Node) flowConf() (map[string]any, error) {
	conf, err := Rewrite(newFlowConfView(), n.nodeConf)
	if err != nil {
		return nil, err
	}
	m, ok := conf.(map[string]any)
	if !ok {
		return nil, newFlowError("%s: flow config did not resolve to a mapping", n.Crumb())
	}
	return m, nil
}

// Wipe removes the node's cached value, dumped data and dumped config from
// every tier: memory cache, data file, conf file. Mirrors
// flowfish.node.Node.wipe.
func (n *Node) Wipe() error {
	n.session.cacheDelete(n.Slug())
	if err := removeIfExists(n.DataFile()); err != nil {
		return err
	}
	return removeIfExists(n.ConfFile())
}

// Clear removes only the node's in-memory cached value, leaving any dumped
// data on disk untouched. Mirrors flowfish.node.Node.clear.
func (n *Node) Clear() {
	n.session.cacheDelete(n.Slug())
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
