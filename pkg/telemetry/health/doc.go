// Package health serves liveness and readiness probes for "charter run".
//
// The daemon registers one check per dependency it cannot work without:
//
//	checker := health.New(2 * time.Second)
//	checker.Register("library", func(ctx context.Context) error { ... })
//	checker.Register("storage", store.Ping)
//	health.Mount(mux, checker, version, commit, buildTime)
//
// /readyz answers 503 until every check passes.
package health
