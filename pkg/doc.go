// Package pkg provides the libraries behind the deployer command.
//
// # Overview
//
// Deployer moves design objects (content types, keywords, workflows,
// templates, roles) between systems together with everything they depend on.
// The pkg directory is organized into four areas:
//
//  1. Model - the dependency map ([depmap]), dependency types and handlers
//     ([deps], [handlers]) and the object store they read ([store])
//  2. Graph - closure resolution ([closure]) into an arena graph ([dag]),
//     install ordering ([dag/transform]) and graph output ([io], [render])
//  3. Archive - the verified archive format ([archive])
//  4. Jobs - export and install jobs with persisted reports ([job], [cache],
//     [observability])
//
// # Architecture
//
// The data flow of an export:
//
//	roots (Type:ID) ──► [closure] resolves via [deps] handlers
//	                         ↓
//	                    [dag] graph ──► [dag/transform] install order
//	                         ↓
//	                    Exporter payloads ──► [archive] writer
//
// An install reverses the last step: the archive is verified and staged in
// full before any Installer runs, in archive order.
//
// # Quick Start
//
//	m, _ := depmap.ParseFile("depmap.toml", handlers.Known)
//	s, _ := store.NewFile("objects")
//	mgr, _ := deps.NewManager(m, handlers.Catalog(s))
//	runner := job.NewRunner(mgr, nil, nil, nil, job.Options{})
//
//	rep, err := runner.Export(ctx, job.ExportRequest{
//	    Roots:  []deps.Key{deps.K("ContentType", "article")},
//	    Auth:   auth.Local(),
//	    Output: "article.dpkg",
//	})
//
// # Error Handling
//
// Errors carry a code from [errors] (NOT_FOUND, UNAUTHORIZED,
// ARCHIVE_INTEGRITY, ...). Failures tied to one dependency are wrapped in an
// errors.DependencyError naming it. During resolution a missing transitive
// dependency is skipped with a warning; every other failure aborts the job.
//
// [depmap]: https://pkg.go.dev/github.com/percussion/deployer/pkg/depmap
// [deps]: https://pkg.go.dev/github.com/percussion/deployer/pkg/deps
// [handlers]: https://pkg.go.dev/github.com/percussion/deployer/pkg/handlers
// [store]: https://pkg.go.dev/github.com/percussion/deployer/pkg/store
// [closure]: https://pkg.go.dev/github.com/percussion/deployer/pkg/closure
// [dag]: https://pkg.go.dev/github.com/percussion/deployer/pkg/dag
// [dag/transform]: https://pkg.go.dev/github.com/percussion/deployer/pkg/dag/transform
// [io]: https://pkg.go.dev/github.com/percussion/deployer/pkg/io
// [render]: https://pkg.go.dev/github.com/percussion/deployer/pkg/render
// [archive]: https://pkg.go.dev/github.com/percussion/deployer/pkg/archive
// [job]: https://pkg.go.dev/github.com/percussion/deployer/pkg/job
// [cache]: https://pkg.go.dev/github.com/percussion/deployer/pkg/cache
// [observability]: https://pkg.go.dev/github.com/percussion/deployer/pkg/observability
// [errors]: https://pkg.go.dev/github.com/percussion/deployer/pkg/errors
package pkg
