// Package storage provides the on-disk layout, atomic write discipline and
// advisory file locking the dataflow engine's executor and sync/agent
// protocol build on. It holds no reference to the flow package's domain
// types -- every function here takes plain strings -- so flow can depend on
// it without a cycle. Grounded on flowfish.node's path property block and
// flowfish.locks/flowfish.utils.copy_file.
package storage

import "path/filepath"

// ScopeDir returns the base directory for a scope's data: <dataDir>/<path>.
func ScopeDir(dataDir, path string) string {
	return filepath.Join(dataDir, path)
}

// WorkDir returns a node's working directory: <dataDir>/<path>/<slug>.
func WorkDir(dataDir, path, slug string) string {
	return filepath.Join(ScopeDir(dataDir, path), slug)
}

// DataFile returns a node's dumped-value file: <dataDir>/<path>/<slug>.data.
func DataFile(dataDir, path, slug string) string {
	return filepath.Join(ScopeDir(dataDir, path), slug+".data")
}

// ConfFile returns a node's dumped-config file: <dataDir>/<path>/<slug>.json.
func ConfFile(dataDir, path, slug string) string {
	return filepath.Join(ScopeDir(dataDir, path), slug+".json")
}

// LockDir returns the directory holding a scope's lock files.
func LockDir(dataDir, path string) string {
	return filepath.Join(ScopeDir(dataDir, path), ".lock")
}

// LockFile returns a node's advisory lock file path.
func LockFile(dataDir, path, slug string) string {
	return filepath.Join(LockDir(dataDir, path), slug+".lock")
}

// SyncFileManifest returns the path to a node's sync manifest file (the
// newline-separated list of relative paths copied to sync_dir), or "" when
// syncDir is empty (sync disabled).
func SyncFileManifest(syncDir, path, slug string) string {
	if syncDir == "" {
		return ""
	}
	return filepath.Join(syncDir, path, ".sync", slug+".sync")
}

// JobFile returns the path to the job file an agent polls for a given
// node/agent pair.
func JobFile(syncDir, path, slug, agent string) string {
	return filepath.Join(syncDir, path, ".jobs", slug+"."+agent+".json")
}
