package cli

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/percussion/deployer/pkg/auth"
	"github.com/percussion/deployer/pkg/errors"
	graphio "github.com/percussion/deployer/pkg/io"
	"github.com/percussion/deployer/pkg/job"
	"github.com/percussion/deployer/pkg/render"
)

// depsOptions holds the flags of the deps command.
type depsOptions struct {
	allOf   []string
	json    bool
	dot     string
	svg     string
	cycles  bool
	cluster bool
	from    string
}

// depsCommand resolves and orders a selection without writing an archive.
func (c *CLI) depsCommand() *cobra.Command {
	var opts depsOptions

	cmd := &cobra.Command{
		Use:   "deps [Type:ID...]",
		Short: "Show the dependency closure of objects in install order",
		Long: `Resolve the objects and everything they depend on, and print them in the
order they would be installed. Explicitly selected objects are marked
[selected]; objects ordered while part of a dependency cycle are marked as
cycle breaks.`,
		Example: `  deployer deps ContentType:article
  deployer deps --all-of Keyword --json > graph.json
  deployer deps ContentType:article --svg article.svg
  deployer deps --from graph.json --cycles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDeps(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.allOf, "all-of", nil, "select every object of these types")
	cmd.Flags().BoolVar(&opts.json, "json", false, "write the graph as JSON to stdout")
	cmd.Flags().StringVar(&opts.dot, "dot", "", "write a Graphviz DOT diagram to `file`")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "render an SVG diagram to `file`")
	cmd.Flags().BoolVar(&opts.cycles, "cycles", false, "list dependency cycles")
	cmd.Flags().BoolVar(&opts.cluster, "cluster", false, "group diagram nodes by type")
	cmd.Flags().StringVar(&opts.from, "from", "", "order a graph saved with --json instead of resolving")

	return cmd
}

func (c *CLI) runDeps(cmd *cobra.Command, args []string, opts depsOptions) error {
	var (
		plan *job.Plan
		err  error
	)
	if opts.from != "" {
		plan, err = c.loadPlan(cmd, args, opts)
	} else {
		plan, err = c.resolvePlan(cmd, args, opts)
	}
	if err != nil {
		return err
	}

	if opts.json {
		return graphio.WriteJSON(stdout, plan.Graph(), plan.Ordering)
	}
	if err := c.writeDiagrams(cmd, plan, opts); err != nil {
		return err
	}

	g := plan.Graph()
	for i, id := range plan.Ordering.Order {
		n, _ := g.Node(id)
		name := n.Dep.DisplayName
		if name == n.Dep.ID {
			name = ""
		}
		printOrdered(i+1, n.Key().String(), name, n.Dep.IsIncluded, plan.Broken(id))
	}
	printStats(plural(g.NodeCount(), "dependency"), plural(g.EdgeCount(), "edge"), breaks(len(plan.Ordering.Broken)))
	printWarnings(plan)

	if opts.cycles {
		cycles := plan.Cycles()
		if len(cycles) == 0 {
			printInfo("No dependency cycles")
		}
		for _, cyc := range cycles {
			parts := make([]string, len(cyc))
			for i, k := range cyc {
				parts[i] = k.String()
			}
			printWarning("cycle: %s", strings.Join(parts, " "+iconArrow+" "))
		}
	}
	return nil
}

func (c *CLI) resolvePlan(cmd *cobra.Command, args []string, opts depsOptions) (*job.Plan, error) {
	ctx := cmd.Context()
	roots, err := parseKeys(args)
	if err != nil {
		return nil, err
	}
	e, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	prog := newProgress(loggerFromContext(ctx))
	plan, err := e.runner.Plan(ctx, auth.Local(), roots, toTypes(opts.allOf))
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Resolved %s", plural(plan.Closure.Len(), "dependency")))
	return plan, nil
}

// loadPlan orders a graph file written by deps --json. It needs neither the
// dependency map nor the object store.
func (c *CLI) loadPlan(cmd *cobra.Command, args []string, opts depsOptions) (*job.Plan, error) {
	if len(args) > 0 || len(opts.allOf) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "--from cannot be combined with a selection")
	}
	g, err := graphio.ImportJSON(opts.from)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "graph file")
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read graph %s", opts.from)
	}
	return job.PlanGraph(cmd.Context(), g, c.Logger), nil
}

func (c *CLI) writeDiagrams(cmd *cobra.Command, plan *job.Plan, opts depsOptions) error {
	if opts.dot == "" && opts.svg == "" {
		return nil
	}
	dot := render.ToDOT(plan.Graph(), render.Options{Ordering: plan.Ordering, ClusterByType: opts.cluster})
	if opts.dot != "" {
		if err := os.WriteFile(opts.dot, []byte(dot), 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.dot)
		}
		printFile(opts.dot)
	}
	if opts.svg != "" {
		svg, err := render.RenderSVG(cmd.Context(), dot)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.svg, svg, 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.svg)
		}
		printFile(opts.svg)
	}
	return nil
}

func printWarnings(plan *job.Plan) {
	for _, w := range plan.Closure.Warnings {
		printWarning("skipped %s: %s", w.Key, errors.UserMessage(w.Err))
	}
}

func breaks(n int) string {
	if n == 0 {
		return ""
	}
	return plural(n, "cycle break")
}
