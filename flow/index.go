package flow

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/flowkit/flowkit/log"
)

// snapshotIndex is pure bookkeeping over loaded flows: a small SQLite table
// recording which flow files a session has parsed and the top-level hash
// each node resolved to, so a future `flow list`/`flow gc` can answer
// "what's in data_dir" without re-reading every config file. It never
// participates in hashing or execution.
type snapshotIndex struct {
	db *sql.DB
}

const snapshotIndexSchema = `
CREATE TABLE IF NOT EXISTS flow_snapshots (
	flow_file  TEXT NOT NULL,
	node_crumb TEXT NOT NULL,
	node_hash  TEXT NOT NULL,
	recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (flow_file, node_crumb)
);
`

// openSnapshotIndex opens (creating if needed) the SQLite database backing
// a session's flow snapshot index at <dataDir>/.flow/index.db.
func openSnapshotIndex(dataDir string) (*snapshotIndex, error) {
	dir := filepath.Join(dataDir, ".flow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(snapshotIndexSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &snapshotIndex{db: db}, nil
}

// record upserts one row per node in a freshly loaded flow. Failures are
// logged, not returned -- the index is bookkeeping and must never fail a
// LoadFlow call a caller actually depends on.
func (idx *snapshotIndex) record(flowDef *Flow) {
	if idx == nil {
		return
	}
	flowFile := flowDef.file
	if abs, err := filepath.Abs(flowFile); err == nil {
		flowFile = abs
	}
	for _, scopeName := range flowDef.order {
		scope := flowDef.scopes[scopeName]
		for _, nodeName := range scope.order {
			node := scope.nodes[nodeName]
			_, err := idx.db.Exec(
				`INSERT INTO flow_snapshots (flow_file, node_crumb, node_hash) VALUES (?, ?, ?)
				 ON CONFLICT(flow_file, node_crumb) DO UPDATE SET node_hash = excluded.node_hash, recorded_at = CURRENT_TIMESTAMP`,
				flowFile, node.Crumb(), node.Hash(),
			)
			if err != nil {
				log.Default.Warnf("snapshot index: record %s: %v", node.Crumb(), err)
			}
		}
	}
}

// Snapshots returns every (nodeCrumb, nodeHash) pair recorded for a flow
// file, most recently recorded first. Returns an empty slice, not an error,
// when the session has no index (WithIndex wasn't set).
func (s *Session) Snapshots(flowFile string) ([]NodeSnapshot, error) {
	if s.index == nil {
		return nil, nil
	}
	abs, err := filepath.Abs(flowFile)
	if err != nil {
		return nil, err
	}
	rows, err := s.index.db.Query(
		`SELECT node_crumb, node_hash, recorded_at FROM flow_snapshots WHERE flow_file = ? ORDER BY recorded_at DESC`,
		abs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NodeSnapshot
	for rows.Next() {
		var snap NodeSnapshot
		if err := rows.Scan(&snap.NodeCrumb, &snap.NodeHash, &snap.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// NodeSnapshot is one row of a flow's snapshot index.
type NodeSnapshot struct {
	NodeCrumb  string
	NodeHash   string
	RecordedAt string
}

func (idx *snapshotIndex) Close() error {
	if idx == nil {
		return nil
	}
	return idx.db.Close()
}
