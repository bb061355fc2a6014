package flow

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Prune scans the session's data directory for dumped data/conf files whose
// slug is not reachable from any of the given flows' nodes, and removes
// each such .data file together with its .json conf. Returns the .data
// paths selected; with dryRun it removes nothing and returns the .data paths
// it would remove. Mirrors flowfish.tools.flow_prune.
func (s *Session) Prune(flows []*Flow, dryRun bool) ([]string, error) {
	live := make(map[string]bool)
	for _, flowDef := range flows {
		for _, scopeName := range flowDef.order {
			scope := flowDef.scopes[scopeName]
			for _, nodeName := range scope.order {
				node := scope.nodes[nodeName]
				if node.setupDone {
					live[node.Slug()] = true
				}
			}
		}
	}

	pattern := filepath.Join(s.dataDir, "**", "*.data")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, dataPath := range matches {
		slug := strings.TrimSuffix(filepath.Base(dataPath), ".data")
		if live[slug] {
			continue
		}
		confPath := strings.TrimSuffix(dataPath, ".data") + ".json"
		if !dryRun {
			if err := os.Remove(dataPath); err != nil && !os.IsNotExist(err) {
				return removed, err
			}
			if err := os.Remove(confPath); err != nil && !os.IsNotExist(err) {
				return removed, err
			}
		}
		removed = append(removed, dataPath)
	}
	return removed, nil
}
