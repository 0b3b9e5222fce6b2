/*
Package log provides structured logging for LedgerFlow using zerolog.

The package wraps zerolog to give every subsystem a component-scoped
logger (via WithComponent), a global Init(Config) that picks JSON or
console output and a minimum level, and consistent timestamps across all
output. Packages that log do so through their own component logger rather
than the shared global one directly; not every package logs (pkg/alerts
and pkg/delivery emit no log lines).

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("tasks")
	logger.Info().Str("taskId", task.TaskID).Msg("task claimed")

This package integrates with:

  - pkg/tasks: logs enqueued tasks and failures to record a dead letter
  - pkg/ledger: debug-logs appended transactions and corrections
  - pkg/source: logs source registrations
  - pkg/index: warns when a best-effort index update fails
  - pkg/migrate: logs applied migration steps
  - pkg/audit: logs failures to append audit records
  - pkg/backup: logs archive creation and restore
*/
package log
