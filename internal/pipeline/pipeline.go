// Package pipeline implements the Pipeline Manager: the single
// component that owns pipeline configuration, lifecycle, dynamic node
// construction, start/stop, and cleanup. It is the only component that
// mutates global state (config, status, worker handle).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/pipelined/internal/dispatch"
	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/store"
)

// Status is one of the three pipeline lifecycle states.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// stopJoinTimeout bounds how long Stop waits for the worker goroutine
// to exit before giving up and proceeding anyway (§4.6 "a few seconds").
const stopJoinTimeout = 5 * time.Second

// InvalidStateError reports a pipeline state-machine violation.
type InvalidStateError struct {
	Op    string
	State Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid-state: %s while %s", e.Op, e.State)
}

// Descriptor is one node in a submitted pipeline config.
type Descriptor struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Config  map[string]any `json:"config"`
}

// Notifier receives node/pipeline lifecycle and resource-update
// messages for fan-out to external observers. Implemented by
// internal/observer.Hub in production; kept as an interface here so
// the manager has no import-time dependency on the transport.
type Notifier interface {
	Publish(msg any)
}

// Builder constructs a Registry pre-loaded with every node kind the
// deployment supports, and a Creator pre-loaded with every resource
// schema. Supplied by the caller (cmd/pipelined) so this package has
// no dependency on any specific plugin set.
type Builder func(creator *resource.Creator, registry *node.Registry)

// Manager owns the pipeline lifecycle.
type Manager struct {
	mu     sync.Mutex
	status Status
	config []Descriptor

	logger    *slog.Logger
	fileStore store.Store
	notifier  Notifier
	build     Builder

	dispatcher *dispatch.Dispatcher
	instances  *resource.InstanceManager
	creator    *resource.Creator
	registry   *node.Registry
	nodes      []node.Node

	stopFlag   *atomicBool
	workerDone chan struct{}
}

// New constructs an IDLE Manager. build registers the full set of
// resource schemas and node kinds this deployment ships with; it is
// invoked fresh on every Start so each run discards any stale state
// from the previous one.
func New(logger *slog.Logger, fileStore store.Store, notifier Notifier, build Builder) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		status:    StatusIdle,
		logger:    logger,
		fileStore: fileStore,
		notifier:  notifier,
		build:     build,
	}
}

// SetConfig stores pipeline as the pending config and transitions to
// IDLE. Rejected with InvalidStateError while RUNNING.
func (m *Manager) SetConfig(pipeline []Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning {
		return &InvalidStateError{Op: "setConfig", State: m.status}
	}
	m.config = append([]Descriptor(nil), pipeline...)
	m.status = StatusIdle
	return nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// HasConfig and ConfigLength back the getStatus control-API response.
func (m *Manager) HasConfig() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config != nil
}

func (m *Manager) ConfigLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.config)
}

// Start builds one node instance per configured descriptor, prepares
// each in order, wires node_start_{i} handlers, and kicks off the loop
// by emitting node_start_0. Rejected with InvalidStateError if already
// RUNNING or if no config has been set.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.status == StatusRunning {
		m.mu.Unlock()
		return &InvalidStateError{Op: "start", State: m.status}
	}
	if len(m.config) == 0 {
		m.mu.Unlock()
		return &InvalidStateError{Op: "start", State: m.status}
	}
	cfg := append([]Descriptor(nil), m.config...)
	m.mu.Unlock()

	// Fresh state every start: a prior run's dispatcher/instances/
	// creator/registry/nodes must never leak into this one.
	m.dispatcher = dispatch.New(m.logger)
	m.instances = resource.NewInstanceManager()
	m.creator = resource.NewCreator(m.dispatcher)
	m.registry = node.NewRegistry()
	m.build(m.creator, m.registry)

	// Forward every resource_updated token to observers alongside the
	// lifecycle messages.
	m.dispatcher.On(resource.EventResourceUpdated, func(p any) {
		tok, ok := p.(resource.DataToken)
		if !ok || m.notifier == nil {
			return
		}
		m.notifier.Publish(struct {
			Type string `json:"type"`
			resource.DataToken
		}{Type: "resource_updated", DataToken: tok})
	})

	nodes := make([]node.Node, len(cfg))
	ctx := &node.Context{
		Creator:    m.creator,
		Instances:  m.instances,
		FileStore:  m.fileStore,
		Dispatcher: m.dispatcher,
	}

	for i, desc := range cfg {
		var nextIndex *int
		if i+1 < len(cfg) {
			next := i + 1
			nextIndex = &next
		}
		n, err := m.registry.Build(ctx, node.Config{
			ID: desc.ID, Name: desc.Name, Config: desc.Config, NextIndex: nextIndex,
		})
		if err != nil {
			m.publishPipelineError(fmt.Errorf("construct node %d (%s): %w", i, desc.Name, err))
			return fmt.Errorf("fatal: construct node %d: %w", i, err)
		}
		if err := n.Prepare(); err != nil {
			m.publishPipelineError(fmt.Errorf("prepare node %d (%s): %w", i, desc.Name, err))
			return fmt.Errorf("fatal: prepare node %d: %w", i, err)
		}
		nodes[i] = n
	}

	m.mu.Lock()
	m.nodes = nodes
	m.stopFlag = newAtomicBool(false)
	m.workerDone = make(chan struct{})
	m.status = StatusRunning
	stopFlag := m.stopFlag
	workerDone := m.workerDone
	m.mu.Unlock()

	m.wireHandlers(nodes, stopFlag)

	m.publish(lifecycleMsg{Type: "pipeline_start", Message: "pipeline started", NodeCount: len(nodes), Timestamp: time.Now()})

	go func() {
		defer close(workerDone)
		if !stopFlag.Load() {
			m.dispatcher.Emit(node.EventNodeStart(0), nil)
		}
	}()

	return nil
}

// wireHandlers registers, for each constructed node i, the closure
// described in §4.6's "event wiring": check the stop flag, validate
// the index, execute with error isolation, recheck the stop flag,
// broadcast lifecycle notifications, and call next if not stopped.
func (m *Manager) wireHandlers(nodes []node.Node, stopFlag *atomicBool) {
	for i, n := range nodes {
		i, n := i, n
		m.dispatcher.On(node.EventNodeStart(i), func(any) {
			if stopFlag.Load() {
				return
			}
			if i >= len(nodes) {
				return
			}
			desc := m.descriptorAt(i)
			m.publish(lifecycleMsg{Type: "node_start", NodeIndex: &i, NodeID: desc.ID, NodeName: desc.Name, Timestamp: time.Now()})

			err := m.runExecute(n)

			if err != nil {
				m.publish(lifecycleMsg{Type: "node_error", NodeIndex: &i, NodeID: desc.ID, NodeName: desc.Name, Error: err.Error(), Timestamp: time.Now()})
			} else {
				snap, serErr := m.instances.Serialize()
				if serErr != nil {
					m.logger.Error("resource serialize failed", "node_index", i, "node_id", desc.ID, "error", serErr)
				}
				m.publish(lifecycleMsg{
					Type: "node_complete", NodeIndex: &i, NodeID: desc.ID, NodeName: desc.Name,
					Timestamp: time.Now(), Resources: snap, ImageURLs: imageURLs(snap),
					SerializeError: errString(serErr),
				})
			}

			if stopFlag.Load() {
				return
			}
			n.Next()

			if i == len(nodes)-1 {
				m.publish(lifecycleMsg{Type: "cycle_complete", Message: "cycle complete", Timestamp: time.Now()})
			}
		})
	}
}

// runExecute calls n.Execute(), converting a panic into an error so a
// single misbehaving node can never take down the worker goroutine;
// the pipeline tick is skipped and the loop continues (§7 propagation
// policy).
func (m *Manager) runExecute(n node.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node execute panic: %v", r)
		}
	}()
	return n.Execute()
}

func (m *Manager) descriptorAt(i int) Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.config) {
		return Descriptor{}
	}
	return m.config[i]
}

// Stop raises the stop flag, disposes every node in construction
// order, joins the worker goroutine with a bounded timeout, and
// transitions to STOPPED. Idempotent: calling Stop while not RUNNING
// is a no-op that returns the current status without side effects.
// Node Dispose calls run synchronously on the caller's goroutine and
// are not bounded by the join timeout; StopWithContext puts a
// caller-side deadline on the whole call.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning {
		m.mu.Unlock()
		return nil
	}
	stopFlag := m.stopFlag
	workerDone := m.workerDone
	nodes := m.nodes
	m.mu.Unlock()

	stopFlag.Store(true)

	for _, n := range nodes {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("node dispose panic", "panic", r)
				}
			}()
			n.Dispose()
		}()
	}

	select {
	case <-workerDone:
	case <-time.After(stopJoinTimeout):
		m.logger.Warn("pipeline worker did not exit within join timeout", "timeout", stopJoinTimeout)
	}

	m.instances.ClearAll()

	m.mu.Lock()
	m.status = StatusStopped
	m.mu.Unlock()

	m.publish(lifecycleMsg{Type: "pipeline_stop", Message: "pipeline stopped", Timestamp: time.Now()})
	return nil
}

// StopWithContext is Stop with an external deadline in addition to the
// manager's own bounded join timeout, for callers (the control API)
// that want to enforce their own request-scoped cancellation.
func (m *Manager) StopWithContext(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- m.Stop() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) publish(msg lifecycleMsg) {
	if m.notifier != nil {
		m.notifier.Publish(msg)
	}
}

func (m *Manager) publishPipelineError(err error) {
	m.publish(lifecycleMsg{Type: "pipeline_error", Error: err.Error(), Timestamp: time.Now()})
}

// lifecycleMsg is the union of every observer-stream message kind
// (§6's "Observer stream" table). Unused fields are omitted by callers
// via the json tag's omitempty where relevant.
type lifecycleMsg struct {
	Type      string            `json:"type"`
	Message   string            `json:"message,omitempty"`
	NodeCount int               `json:"node_count,omitempty"`
	NodeIndex *int              `json:"node_index,omitempty"`
	NodeID    string            `json:"node_id,omitempty"`
	NodeName  string            `json:"node_name,omitempty"`
	Error     string            `json:"error,omitempty"`
	Resources []resource.Record `json:"resources,omitempty"`
	ImageURLs []ImageURL        `json:"image_urls,omitempty"`
	// SerializeError reports a partial-snapshot condition: one or more
	// resources failed to serialize (e.g. an unknown.v1 with no
	// serialize function registered) and were omitted from Resources.
	SerializeError string    `json:"serialize_error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// errString returns err.Error(), or "" if err is nil.
func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ImageURL is one entry of a node_complete message's image_urls list.
type ImageURL struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// imageURLs extracts {key, name, url} for every image.v1 record in
// snap whose Data is a URL string.
func imageURLs(snap []resource.Record) []ImageURL {
	var out []ImageURL
	for _, rec := range snap {
		if rec.Schema != "image.v1" {
			continue
		}
		url, ok := rec.Data.(string)
		if !ok {
			continue
		}
		out = append(out, ImageURL{Key: rec.Key, Name: rec.Name, URL: url})
	}
	return out
}
