// Command flow is a thin CLI over the flowkit engine: load a flow file,
// call one of its nodes, and manage the agent sync protocol.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flowkit/flowkit/flow"
	"github.com/flowkit/flowkit/log"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "run":
		runCmd(args)
	case "push":
		pushCmd(args)
	case "pull":
		pullCmd(args)
	case "prune":
		pruneCmd(args)
	case "agent":
		agentCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

// bindLogFlags adds the logging flags shared by every subcommand and applies
// them once parsing is done.
func bindLogFlags(fs *flag.FlagSet) func() {
	level := fs.String("log-level", "info", "log level: debug, info, warn, error, fatal")
	trace := fs.Bool("trace", false, "enable trace-level logging")
	return func() {
		log.SetLevel(*level)
		log.SetTraceEnabled(*trace)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: flow <run|push|pull|prune|agent> [flags]")
}

func openSession(dataDir, syncDir string, withIndex bool, redisAddr, bucketURL, secretID, secretKey string) *flow.Session {
	session, err := flow.Open(
		flow.WithDataDir(dataDir),
		flow.WithSyncDir(syncDir),
		flow.WithIndex(withIndex),
		flow.WithRemoteCache(redisAddr),
		flow.WithObjectStore(bucketURL, secretID, secretKey),
	)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	return session
}

// bindObjectStoreFlags adds the COS bucket flags shared by every subcommand
// that can push/pull through an object store. Credentials default to the
// TCOS_SECRETID/TCOS_SECRETKEY environment variables if left empty, mirroring
// flow.WithObjectStore's fallback.
func bindObjectStoreFlags(fs *flag.FlagSet) (bucket, id, key *string) {
	bucket = fs.String("cos-bucket", "", "Tencent COS bucket URL backing the sync tier (optional)")
	id = fs.String("cos-secret-id", os.Getenv("TCOS_SECRETID"), "COS secret ID (default: $TCOS_SECRETID)")
	key = fs.String("cos-secret-key", os.Getenv("TCOS_SECRETKEY"), "COS secret key (default: $TCOS_SECRETKEY)")
	return bucket, id, key
}

func findNode(session *flow.Session, file, node string) *flow.Node {
	flowDef, err := session.LoadFlow(file)
	if err != nil {
		log.Fatalf("load flow %s: %v", file, err)
	}
	n, err := flowDef.FindNode(node)
	if err != nil {
		log.Fatalf("find node %s: %v", node, err)
	}
	return n
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	file := fs.String("flow", "", "path to flow file")
	node := fs.String("node", "", "scope.node to call")
	dataDir := fs.String("data-dir", "./data", "data directory")
	syncDir := fs.String("sync-dir", "", "sync directory (optional)")
	index := fs.Bool("index", false, "maintain a SQLite snapshot index under data-dir/.flow")
	redisAddr := fs.String("redis-addr", "", "Redis address backing a shared cache tier (optional)")
	bucket, secretID, secretKey := bindObjectStoreFlags(fs)
	applyLog := bindLogFlags(fs)
	fs.Parse(args)
	applyLog()

	session := openSession(*dataDir, *syncDir, *index, *redisAddr, *bucket, *secretID, *secretKey)
	defer session.Close()
	n := findNode(session, *file, *node)

	result, err := n.Call(nil)
	if err != nil {
		log.Fatalf("call %s: %v", *node, err)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("marshal result: %v", err)
	}
	fmt.Println(string(out))
}

func pushCmd(args []string) {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	file := fs.String("flow", "", "path to flow file")
	node := fs.String("node", "", "scope.node to push")
	dataDir := fs.String("data-dir", "./data", "data directory")
	syncDir := fs.String("sync-dir", "", "sync directory")
	index := fs.Bool("index", false, "maintain a SQLite snapshot index under data-dir/.flow")
	redisAddr := fs.String("redis-addr", "", "Redis address backing a shared cache tier (optional)")
	bucket, secretID, secretKey := bindObjectStoreFlags(fs)
	applyLog := bindLogFlags(fs)
	fs.Parse(args)
	applyLog()

	session := openSession(*dataDir, *syncDir, *index, *redisAddr, *bucket, *secretID, *secretKey)
	defer session.Close()
	n := findNode(session, *file, *node)
	if err := n.PushTree(); err != nil {
		log.Fatalf("push %s: %v", *node, err)
	}
}

func pullCmd(args []string) {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	file := fs.String("flow", "", "path to flow file")
	node := fs.String("node", "", "scope.node to pull")
	dataDir := fs.String("data-dir", "./data", "data directory")
	syncDir := fs.String("sync-dir", "", "sync directory")
	index := fs.Bool("index", false, "maintain a SQLite snapshot index under data-dir/.flow")
	redisAddr := fs.String("redis-addr", "", "Redis address backing a shared cache tier (optional)")
	bucket, secretID, secretKey := bindObjectStoreFlags(fs)
	applyLog := bindLogFlags(fs)
	fs.Parse(args)
	applyLog()

	session := openSession(*dataDir, *syncDir, *index, *redisAddr, *bucket, *secretID, *secretKey)
	defer session.Close()
	n := findNode(session, *file, *node)
	if err := n.Pull(); err != nil {
		log.Fatalf("pull %s: %v", *node, err)
	}
}

func pruneCmd(args []string) {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	file := fs.String("flow", "", "path to flow file")
	dataDir := fs.String("data-dir", "./data", "data directory")
	dryRun := fs.Bool("dry-run", false, "list files that would be removed without removing them")
	index := fs.Bool("index", false, "maintain a SQLite snapshot index under data-dir/.flow")
	applyLog := bindLogFlags(fs)
	fs.Parse(args)
	applyLog()

	session := openSession(*dataDir, "", *index, "", "", "", "")
	defer session.Close()
	flowDef, err := session.LoadFlow(*file)
	if err != nil {
		log.Fatalf("load flow %s: %v", *file, err)
	}
	removed, err := session.Prune([]*flow.Flow{flowDef}, *dryRun)
	if err != nil {
		log.Fatalf("prune: %v", err)
	}
	for _, path := range removed {
		fmt.Println(path)
	}
}

func agentCmd(args []string) {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	name := fs.String("name", "", "agent name")
	file := fs.String("flow", "", "path to flow file jobs reference")
	dataDir := fs.String("data-dir", "./data", "data directory")
	syncDir := fs.String("sync-dir", "", "sync directory")
	interval := fs.Duration("interval", 2*time.Second, "poll interval")
	index := fs.Bool("index", false, "maintain a SQLite snapshot index under data-dir/.flow")
	redisAddr := fs.String("redis-addr", "", "Redis address backing a shared cache tier (optional)")
	bucket, secretID, secretKey := bindObjectStoreFlags(fs)
	applyLog := bindLogFlags(fs)
	fs.Parse(args)
	applyLog()

	session := openSession(*dataDir, *syncDir, *index, *redisAddr, *bucket, *secretID, *secretKey)
	defer session.Close()
	flowDef, err := session.LoadFlow(*file)
	if err != nil {
		log.Fatalf("load flow %s: %v", *file, err)
	}

	agent := flow.NewAgent(session, *name)
	log.Infof("agent %s watching %s every %s", *name, *syncDir, *interval)
	err = agent.Run(context.Background(), *interval, func(slug string) (*flow.Node, error) {
		return flowDef.FindNodeBySlug(slug)
	})
	if err != nil {
		log.Fatalf("agent %s: %v", *name, err)
	}
}
