package commands

import (
	"os"

	"github.com/convergentic/converge/checklist"
	"github.com/convergentic/converge/config"
	"github.com/convergentic/converge/engine"
	"github.com/convergentic/converge/errors"
	"github.com/convergentic/converge/evaluator"
	"github.com/convergentic/converge/eventstore"
	"github.com/convergentic/converge/guardrail"
	"github.com/convergentic/converge/logger"
	"github.com/convergentic/converge/topology"
	"github.com/convergentic/converge/vector"
)

// runtime is the assembled engine environment shared by the iterating
// commands. Open it once per command invocation and Close it when done.
type runtime struct {
	cfg         *config.Config
	store       *eventstore.Store
	events      eventstore.Appender
	mirror      *eventstore.SQLiteStore
	vectors     *vector.Store
	topo        *topology.Topology
	constraints checklist.Constraints
	eng         *engine.Engine
}

// openRuntime loads configuration and wires the engine and its stores.
// The SQLite mirror is attached only when paths.event_mirror is set; the
// JSONL log is always the source of truth.
func openRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := eventstore.Open(cfg.Paths.EventLog, logger.Logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, store: store, events: store}
	if cfg.Paths.EventMirror != "" {
		mirror, err := eventstore.OpenSQLite(cfg.Paths.EventMirror)
		if err != nil {
			return nil, err
		}
		rt.mirror = mirror
		rt.events = &eventstore.Tee{Primary: store, Mirror: mirror, Logger: logger.Logger}
	}

	rt.vectors, err = vector.NewStore(cfg.Paths.VectorsDir)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.constraints, err = checklist.LoadConstraints(cfg.Paths.Constraints)
	if err != nil {
		rt.Close()
		return nil, err
	}

	// A missing topology leaves the engine unassembled: status and events
	// still work on an uninitialized workspace, iterate and run do not.
	if fileExists(cfg.Paths.Topology) {
		rt.topo, err = topology.Load(cfg.Paths.Topology)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.eng = engine.New(cfg, rt.topo, rt.constraints,
			evaluator.NewRegistry(), guardrail.NewRegistry(),
			rt.events, store, rt.vectors, logger.Logger)
	}
	return rt, nil
}

// Close releases the mirror handle; the JSONL store holds no resources
func (rt *runtime) Close() {
	if rt.mirror != nil {
		rt.mirror.Close()
	}
}

// edgeByName resolves an edge argument against the topology
func (rt *runtime) edgeByName(name string) (topology.Edge, error) {
	if rt.topo == nil {
		return topology.Edge{}, errors.Newf("no topology at %s; run 'converge init' first", rt.cfg.Paths.Topology)
	}
	edge, ok := rt.topo.Edge(name)
	if !ok {
		return topology.Edge{}, errors.Newf("edge %q is not in the topology (known: %v)", name, edgeNames(rt.topo))
	}
	return edge, nil
}

func edgeNames(topo *topology.Topology) []string {
	names := make([]string, 0, len(topo.Edges))
	for _, e := range topo.Edges {
		names = append(names, e.Name)
	}
	return names
}

// fileExists reports whether a path exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
