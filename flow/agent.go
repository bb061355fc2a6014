package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/flowkit/flowkit/log"
	"github.com/flowkit/flowkit/storage"
)

// jobStatus is the lifecycle a job file moves through: a requester drops a
// "pending" file, the agent that picks it up flips it to "done" (or
// "error") in place.
type jobStatus string

const (
	jobPending jobStatus = "pending"
	jobDone    jobStatus = "done"
	jobError   jobStatus = "error"
)

type jobRecord struct {
	ID     string    `json:"id"`
	Status jobStatus `json:"status"`
	Slug   string    `json:"slug"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// CreateJob requests that agent compute this node remotely: it pushes the
// node's upstream dependency tree (so the agent has everything it needs),
// then drops a pending job record in the shared sync directory for that
// agent to pick up. Mirrors the job-file half of flowfish's remote
// delegation protocol (flowfish.node's `_create_job`/`_wait_for_job`).
func (n *Node) CreateJob(agent string) error {
	if n.syncDir() == "" {
		return newFlowError("%s: sync disabled, no sync directory configured", n.Crumb())
	}
	if err := n.PushTree(); err != nil {
		return err
	}
	path := storage.JobFile(n.syncDir(), n.Path(), n.Slug(), agent)
	id := uuid.NewString()
	data, err := json.Marshal(jobRecord{ID: id, Status: jobPending, Slug: n.Slug()})
	if err != nil {
		return err
	}
	log.Default.Infof("job %s: created for %s on agent %s", id, n.Crumb(), agent)
	return storage.AtomicWriteFile(path, data, 0o644)
}

// WaitForJob polls for agent to finish the job created by CreateJob,
// returning its result once the job file flips to "done", or the reported
// error once it flips to "error". ctx cancellation stops the poll early.
func (n *Node) WaitForJob(ctx context.Context, agent string, pollEvery time.Duration) (any, error) {
	path := storage.JobFile(n.syncDir(), n.Path(), n.Slug(), agent)
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		record, err := readJobRecord(path)
		if err == nil {
			switch record.Status {
			case jobDone:
				if err := n.Pull(); err != nil {
					return nil, err
				}
				return record.Result, nil
			case jobError:
				return nil, newFlowError("%s: agent %s: %s", n.Crumb(), agent, record.Error)
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func readJobRecord(path string) (jobRecord, error) {
	var record jobRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return record, err
	}
	err = json.Unmarshal(data, &record)
	return record, err
}

// Agent polls a session's sync directory for jobs addressed to it and runs
// them locally, pulling each job's dependency tree first and pushing its
// own result back when done. The Go analogue of flowfish's standalone
// agent process, minus the Python source-code-transport mechanism (agents
// here share the same compiled binary and function registry by name
// instead of receiving the caller's source -- see DESIGN.md).
type Agent struct {
	session *Session
	name    string
}

// NewAgent returns an agent identified by name, polling session's sync
// directory.
func NewAgent(session *Session, name string) *Agent {
	return &Agent{session: session, name: name}
}

// Run polls for jobs addressed to the agent every pollEvery until ctx is
// cancelled. jobToNode resolves a job's slug back to the *Node that should
// run it -- the caller supplies this since an agent only has job files and
// flow conf snapshots to go on, not the original flow.
func (a *Agent) Run(ctx context.Context, pollEvery time.Duration, jobToNode func(slug string) (*Node, error)) error {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	pattern := storage.JobFile(a.session.syncDir, "*", "*", a.name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.pollOnce(pattern, jobToNode); err != nil {
				log.Default.Errorf("agent %s: poll: %v", a.name, err)
			}
		}
	}
}

func (a *Agent) pollOnce(pattern string, jobToNode func(slug string) (*Node, error)) error {
	matches, err := globJobs(pattern)
	if err != nil {
		return err
	}
	for _, path := range matches {
		record, err := readJobRecord(path)
		if err != nil || record.Status != jobPending {
			continue
		}
		a.runJob(path, record, jobToNode)
	}
	return nil
}

func (a *Agent) runJob(path string, record jobRecord, jobToNode func(slug string) (*Node, error)) {
	node, err := jobToNode(record.Slug)
	if err != nil {
		a.fail(path, record, err)
		return
	}
	if err := node.PullTree(); err != nil {
		a.fail(path, record, err)
		return
	}
	result, err := node.Call(nil)
	if err != nil {
		a.fail(path, record, err)
		return
	}
	if node.Dumpable() {
		if err := node.Push(); err != nil {
			a.fail(path, record, err)
			return
		}
	}
	record.Status = jobDone
	record.Result = result
	log.Default.Infof("job %s: done for %s", record.ID, node.Crumb())
	a.write(path, record)
}

func (a *Agent) fail(path string, record jobRecord, err error) {
	record.Status = jobError
	record.Error = err.Error()
	a.write(path, record)
}

func (a *Agent) write(path string, record jobRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		log.Default.Errorf("agent %s: marshal job record: %v", a.name, err)
		return
	}
	if err := storage.AtomicWriteFile(path, data, 0o644); err != nil {
		log.Default.Errorf("agent %s: write job record: %v", a.name, err)
	}
}

func globJobs(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return matches, nil
}
