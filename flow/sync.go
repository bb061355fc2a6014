package flow

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/flowkit/flowkit/storage"
)

// Push copies the node's dumped data and conf files (if present) into the
// session's sync directory and writes a manifest listing the relative paths
// it copied, so Synced reports true afterwards. Mirrors the push half of flowfish's agent sync protocol
// (flowfish.node.Node / flowfish.tools's copy_file-based distribution). If
// the session has an object store configured (see WithObjectStore), the
// same files are also uploaded there, so an agent without access to the
// sync directory's filesystem can still Pull the result over the bucket.
func (n *Node) Push() error {
	if n.syncDir() == "" && n.session.objects == nil {
		return newFlowError("%s: sync disabled, no sync directory or object store configured", n.Crumb())
	}
	if !n.Dumped() {
		return newFlowError("%s: nothing dumped to push", n.Crumb())
	}

	if n.syncDir() != "" {
		dstData := storage.DataFile(n.syncDir(), n.Path(), n.Slug())
		if err := storage.CopyFile(n.DataFile(), dstData); err != nil {
			return err
		}
		copied := []string{filepath.Join(n.Path(), n.Slug()+".data")}
		if _, err := os.Stat(n.ConfFile()); err == nil {
			dstConf := storage.ConfFile(n.syncDir(), n.Path(), n.Slug())
			if err := storage.CopyFile(n.ConfFile(), dstConf); err != nil {
				return err
			}
			copied = append(copied, filepath.Join(n.Path(), n.Slug()+".json"))
		}
		if err := storage.AtomicWriteFile(n.syncFile(), []byte(strings.Join(copied, "\n")+"\n"), 0o644); err != nil {
			return err
		}
	}

	if n.session.objects != nil {
		if err := n.pushObjects(); err != nil {
			return err
		}
	}
	return nil
}

// pushObjects uploads the node's dumped data and conf files to the
// session's object store, keyed by its scope path and slug.
func (n *Node) pushObjects() error {
	data, err := os.ReadFile(n.DataFile())
	if err != nil {
		return wrapFlowError(err, "%s: read dumped data", n.Crumb())
	}
	if err := n.session.objects.put(objectKey(n.Path(), n.Slug(), ".data"), data); err != nil {
		return wrapFlowError(err, "%s: upload dumped data", n.Crumb())
	}
	if conf, err := os.ReadFile(n.ConfFile()); err == nil {
		if err := n.session.objects.put(objectKey(n.Path(), n.Slug(), ".json"), conf); err != nil {
			return wrapFlowError(err, "%s: upload dumped conf", n.Crumb())
		}
	}
	return nil
}

// Pull copies the node's dumped data and conf files back from the sync
// directory into the local data directory, the inverse of Push. When
// nothing was found in the sync directory (or none is configured) but an
// object store is, Pull falls back to downloading from the bucket.
func (n *Node) Pull() error {
	if _, err := os.Stat(n.syncFile()); n.syncDir() != "" && err == nil {
		srcData := storage.DataFile(n.syncDir(), n.Path(), n.Slug())
		if err := storage.CopyFile(srcData, n.DataFile()); err != nil {
			return err
		}
		srcConf := storage.ConfFile(n.syncDir(), n.Path(), n.Slug())
		if _, err := os.Stat(srcConf); err == nil {
			if err := storage.CopyFile(srcConf, n.ConfFile()); err != nil {
				return err
			}
		}
		n.Clear()
		return nil
	}

	if n.session.objects == nil {
		return newFlowError("%s: nothing pushed to pull", n.Crumb())
	}
	if err := n.pullObjects(); err != nil {
		return err
	}
	n.Clear()
	return nil
}

// pullObjects downloads the node's dumped data and conf files from the
// session's object store into the local data directory.
func (n *Node) pullObjects() error {
	dataKey := objectKey(n.Path(), n.Slug(), ".data")
	if !n.session.objects.exists(dataKey) {
		return newFlowError("%s: nothing pushed to pull", n.Crumb())
	}
	data, err := n.session.objects.get(dataKey)
	if err != nil {
		return wrapFlowError(err, "%s: download dumped data", n.Crumb())
	}
	if err := storage.AtomicWriteFile(n.DataFile(), data, 0o644); err != nil {
		return err
	}

	confKey := objectKey(n.Path(), n.Slug(), ".json")
	if n.session.objects.exists(confKey) {
		conf, err := n.session.objects.get(confKey)
		if err != nil {
			return wrapFlowError(err, "%s: download dumped conf", n.Crumb())
		}
		if err := storage.AtomicWriteFile(n.ConfFile(), conf, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// PullTree pulls every synced dumpable node upstream of node (exclusive),
// so a worker that only has job files and conf snapshots can assemble a
// complete local dependency set before computing node itself.
func (n *Node) PullTree() error {
	nodes, _, err := n.session.graph.Tree(n, Upstream, nil, false)
	if err != nil {
		return err
	}
	for _, nd := range nodes {
		if nd == n {
			continue
		}
		if nd.Dumpable() && nd.Synced() && !nd.Dumped() {
			if err := nd.Pull(); err != nil {
				return err
			}
		}
	}
	return nil
}

// PushTree pushes every dumpable node upstream of node (inclusive),
// deepest dependencies first, so a downstream agent can Pull a complete,
// consistent working set in one pass.
func (n *Node) PushTree() error {
	nodes, _, err := n.session.graph.Tree(n, Upstream, nil, false)
	if err != nil {
		return err
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		nd := nodes[i]
		if nd.Dumpable() && nd.Dumped() && !nd.Synced() {
			if err := nd.Push(); err != nil {
				return err
			}
		}
	}
	return nil
}
