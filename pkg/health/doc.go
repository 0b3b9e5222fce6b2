/*
Package health provides a small HTTP readiness/liveness checker plus a
hysteresis-based status tracker, used by cmd/ledgerflow's ops subcommands
to probe the ops metrics server (or any other HTTP endpoint) without
flipping status on a single transient failure.

	checker := health.NewHTTPChecker("http://localhost:9090/readyz").
		WithStatusRange(200, 299)
	result := checker.Check(ctx)

	status := health.NewStatus()
	cfg := health.DefaultConfig()
	status.Update(result, cfg) // only flips unhealthy after cfg.Retries failures
*/
package health
