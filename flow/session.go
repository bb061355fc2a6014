package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flowkit/flowkit/eval"
	"github.com/flowkit/flowkit/log"
	"gopkg.in/yaml.v3"
)

// Session is the root object a caller opens to load and run flows: it owns
// the shared dependency graph, the function registry, the in-memory cache
// tier and the on-disk layout roots every node resolves paths against.
// Mirrors flowfish.flux.Flux.
type Session struct {
	dataDir string
	syncDir string

	graph     *Graph
	locks     *KeyedLocks
	evaluator Evaluator

	mu    sync.Mutex
	flows map[string]*Flow
	funcs map[string]*Func

	cacheMu sync.RWMutex
	cache   map[string]any

	index      *snapshotIndex
	wantsIndex bool
	remote     *remoteCache
	remoteAddr string

	objects    *objectStore
	objectConf objectStoreConf
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithDataDir sets the root directory dumped node data and configs are
// written under. Defaults to the current directory's "data" subdirectory.
func WithDataDir(dir string) Option {
	return func(s *Session) { s.dataDir = dir }
}

// WithSyncDir sets the shared directory used for agent push/pull. Empty
// (the default) disables remote sync.
func WithSyncDir(dir string) Option {
	return func(s *Session) { s.syncDir = dir }
}

// WithEvaluator overrides the expression evaluator used for link ":expr"
// and "/.:expr" suffix forms and the "map" builtin. Defaults to a cel-go
// evaluator.
func WithEvaluator(ev Evaluator) Option {
	return func(s *Session) { s.evaluator = ev }
}

// WithIndex opens a SQLite snapshot index under dataDir (see Snapshots).
// Off by default: most callers, and every test, never touch it.
func WithIndex(enabled bool) Option {
	return func(s *Session) { s.wantsIndex = enabled }
}

// WithRemoteCache backs the in-memory cache tier with a Redis instance at
// addr, so a node's cached result is visible to any process sharing that
// Redis, not just goroutines inside this one. Off by default -- an empty
// addr (the default) never dials Redis.
func WithRemoteCache(addr string) Option {
	return func(s *Session) { s.remoteAddr = addr }
}

// objectStoreConf bundles the bucket URL and credentials WithObjectStore
// was given, so Open can defer actually dialing COS until after every
// Option has run (mirroring WithRemoteCache's addr/dial split).
type objectStoreConf struct {
	bucketURL string
	secretID  string
	secretKey string
}

// WithObjectStore backs the agent push/pull protocol with a Tencent Cloud
// Object Storage bucket, supplementing the shared-filesystem sync
// directory (see WithSyncDir): Push uploads a node's dumped data/conf as
// objects in addition to (or instead of, when no sync directory is
// configured) copying them into a shared mount, and Pull falls back to the
// bucket when nothing was found locally. Off by default -- an empty
// bucketURL (the default) never dials COS. Credentials fall back to the
// TCOS_SECRETID/TCOS_SECRETKEY environment variables when secretID/
// secretKey are empty, matching the teacher's tcos.NewService.
func WithObjectStore(bucketURL, secretID, secretKey string) Option {
	return func(s *Session) {
		if secretID == "" {
			secretID = os.Getenv("TCOS_SECRETID")
		}
		if secretKey == "" {
			secretKey = os.Getenv("TCOS_SECRETKEY")
		}
		s.objectConf = objectStoreConf{bucketURL: bucketURL, secretID: secretID, secretKey: secretKey}
	}
}

// Open creates a new Session ready to load flows, registering the built-in
// functions (get/map/run). Mirrors flowfish.flux.Flux.__init__.
func Open(opts ...Option) (*Session, error) {
	s := &Session{
		dataDir: filepath.Join(".", "data"),
		graph:   NewGraph(),
		locks:   NewKeyedLocks(),
		flows:   make(map[string]*Flow),
		funcs:   make(map[string]*Func),
		cache:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.evaluator == nil {
		ev, err := eval.NewCELEvaluator()
		if err != nil {
			return nil, err
		}
		s.evaluator = ev
	}
	if s.wantsIndex {
		idx, err := openSnapshotIndex(s.dataDir)
		if err != nil {
			return nil, wrapFlowError(err, "open snapshot index")
		}
		s.index = idx
	}
	if s.remoteAddr != "" {
		s.remote = newRemoteCache(s.remoteAddr)
	}
	if s.objectConf.bucketURL != "" {
		store, err := newObjectStore(s.objectConf.bucketURL, s.objectConf.secretID, s.objectConf.secretKey)
		if err != nil {
			return nil, err
		}
		s.objects = store
	}
	registerBuiltins(s)
	return s, nil
}

// Close releases resources the session holds open: the snapshot index (see
// WithIndex) and the remote cache client (see WithRemoteCache). Safe to
// call on a session opened without either.
func (s *Session) Close() error {
	if err := s.index.Close(); err != nil {
		return err
	}
	return s.remote.Close()
}

// RegisterFunc adds fn to the session's function registry, keyed by its
// name. A later registration with the same name replaces the earlier one.
func (s *Session) RegisterFunc(fn *Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[fn.Name] = fn
}

func (s *Session) findFunc(name string) (*Func, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn, ok := s.funcs[name]
	if !ok {
		return nil, newFlowError("function not registered: %s", name)
	}
	return fn, nil
}

// cacheGet checks the in-memory tier first, falling through to the remote
// cache (if configured) and, on a remote hit, populating the in-memory tier
// so later lookups in this process stay local.
func (s *Session) cacheGet(slug string) (any, bool) {
	s.cacheMu.RLock()
	v, ok := s.cache[slug]
	s.cacheMu.RUnlock()
	if ok {
		return v, true
	}
	if v, ok := s.remote.get(slug); ok {
		s.cacheMu.Lock()
		s.cache[slug] = v
		s.cacheMu.Unlock()
		return v, true
	}
	return nil, false
}

func (s *Session) cacheSet(slug string, v any) {
	s.cacheMu.Lock()
	s.cache[slug] = v
	s.cacheMu.Unlock()
	s.remote.set(slug, v)
}

func (s *Session) cacheDelete(slug string) {
	s.cacheMu.Lock()
	delete(s.cache, slug)
	s.cacheMu.Unlock()
	s.remote.delete(slug)
}

// LoadConf reads a flow config file (YAML or JSON, sniffed by extension)
// and decodes it into a generic map tree. Mirrors flowfish.flux.Flux's use
// of yaml.safe_load for flow files.
func LoadConf(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return normalizeYAML(raw).(map[string]any), nil
}

// normalizeYAML recursively converts map[interface{}]interface{} (yaml.v2
// style) and non-string-keyed maps that gopkg.in/yaml.v3 otherwise decodes
// cleanly into map[string]any, and leaves everything else untouched. Kept
// defensive since yaml.v3 decodes into map[string]any directly for
// well-formed string-keyed documents but nested slices still need walking.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}

// LoadFlow parses a flow file, builds its scope/node tree, resolves every
// base chain and computes hashes, and registers the result in the session's
// flow cache keyed by the file's absolute path. A flow already loaded is
// returned from cache unchanged. Mirrors flowfish.flux.Flux.load_flow.
func (s *Session) LoadFlow(path string) (*Flow, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if f, ok := s.flows[abs]; ok {
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()

	raw, err := LoadConf(abs)
	if err != nil {
		return nil, err
	}

	flowDef, err := s.MakeFlow(abs, raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.flows[abs] = flowDef
	s.mu.Unlock()
	s.index.record(flowDef)
	s.logf("loaded flow %s", abs)
	return flowDef, nil
}

// MakeFlow builds a Flow in-memory from an already-decoded config tree,
// without touching the flow-file cache -- used by tests and by the agent
// protocol, which exchanges flow snapshots rather than file paths. Mirrors
// flowfish.flux.Flux.make_flow.
func (s *Session) MakeFlow(file string, raw map[string]any) (*Flow, error) {
	flowDef := newFlowDef(s, file)
	for key, value := range raw {
		if isComment(key) {
			continue
		}
		conf, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if err := flowDef.addScope(key, conf); err != nil {
			return nil, err
		}
	}
	if err := flowDef.setupFlow(); err != nil {
		return nil, err
	}
	return flowDef, nil
}

func (s *Session) logf(format string, args ...any) {
	log.Default.Infof(format, args...)
}
