package job

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/percussion/deployer/pkg/closure"
	"github.com/percussion/deployer/pkg/dag"
	"github.com/percussion/deployer/pkg/dag/transform"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/observability"
)

// Plan is a resolved and ordered selection.
type Plan struct {
	Closure  *closure.Closure
	Ordering *transform.Ordering
}

// Graph returns the closure graph.
func (p *Plan) Graph() *dag.Graph { return p.Closure.Graph }

// Dependencies returns the closure in install order.
func (p *Plan) Dependencies() []*deps.Dependency { return p.Ordering.Dependencies(p.Closure.Graph) }

// Keys returns the closure keys in install order.
func (p *Plan) Keys() []deps.Key { return p.Ordering.Keys(p.Closure.Graph) }

// Broken reports whether the ordering broke a cycle at id.
func (p *Plan) Broken(id dag.NodeID) bool {
	for _, b := range p.Ordering.Broken {
		if b == id {
			return true
		}
	}
	return false
}

// Cycles returns the dependency cycles of the closure.
func (p *Plan) Cycles() [][]deps.Key {
	var out [][]deps.Key
	for _, comp := range transform.FindCycles(p.Closure.Graph) {
		keys := make([]deps.Key, len(comp))
		for i, id := range comp {
			n, _ := p.Closure.Graph.Node(id)
			keys[i] = n.Key()
		}
		out = append(out, keys)
	}
	return out
}

// Plan resolves the closure of roots plus every object of types and orders
// it for installation. It performs no archive I/O.
func (r *Runner) Plan(ctx context.Context, authCtx deps.AuthContext, roots []deps.Key, types []deps.Type) (*Plan, error) {
	if len(roots) == 0 && len(types) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nothing selected: give at least one Type:ID or type")
	}

	start := time.Now()
	opts := closure.Options{MaxNodes: r.Options.MaxNodes, Logger: r.Logger}
	var (
		c   *closure.Closure
		err error
	)
	if len(types) == 0 {
		c, err = r.Resolver.Resolve(ctx, authCtx, roots, opts)
	} else {
		c, err = r.Resolver.ResolveSelection(ctx, authCtx, roots, types, opts)
	}
	if err != nil {
		observability.Jobs().OnResolveComplete(ctx, 0, 0, time.Since(start), err)
		return nil, err
	}
	observability.Jobs().OnResolveComplete(ctx, c.Len(), len(c.Warnings), time.Since(start), nil)
	r.Logger.Info("resolved dependencies",
		"roots", len(c.Roots),
		"nodes", c.Len(),
		"edges", c.Graph.EdgeCount(),
		"skipped", len(c.Warnings),
		"duration", time.Since(start))

	ord := transform.InstallOrder(c.Graph, transform.OrderOptions{Logger: r.Logger})
	observability.Jobs().OnOrderComplete(ctx, len(ord.Order), len(ord.Broken))
	return &Plan{Closure: c, Ordering: ord}, nil
}

// PlanGraph orders a graph that was resolved earlier, such as one read back
// from its JSON form. No handler is consulted; the roots are the nodes
// marked as included.
func PlanGraph(ctx context.Context, g *dag.Graph, logger *log.Logger) *Plan {
	if logger == nil {
		logger = log.Default()
	}
	c := &closure.Closure{Graph: g}
	for _, id := range g.Roots() {
		n, _ := g.Node(id)
		c.Roots = append(c.Roots, n.Key())
	}
	ord := transform.InstallOrder(g, transform.OrderOptions{Logger: logger})
	observability.Jobs().OnOrderComplete(ctx, len(ord.Order), len(ord.Broken))
	return &Plan{Closure: c, Ordering: ord}
}
