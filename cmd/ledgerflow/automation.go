package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sriinnu/ledgerflow/pkg/alerts"
	"github.com/sriinnu/ledgerflow/pkg/delivery"
	"github.com/sriinnu/ledgerflow/pkg/tasks"
)

const (
	taskTypeAlertsRun      = "alerts.run"
	taskTypeDeliveryRun    = "delivery.run"
	defaultLeaseSeconds    = 300
	defaultSchedulerSleep  = 2 * time.Second
	defaultWorkerSleep     = 500 * time.Millisecond
	defaultDispatchMaxRuns = 25
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Manage the durable task queue, worker, and cron-like scheduler",
}

// registerExecutors wires the task engine's executor contract to the
// alerts and delivery engines at startup rather than importing one
// package into the other directly.
func registerExecutors(engine *tasks.Engine) {
	l := currentLayout()
	alertsEngine := alerts.New(l)
	deliveryEngine := delivery.New(l)

	engine.RegisterExecutor(taskTypeAlertsRun, func(payload map[string]interface{}) (map[string]interface{}, error) {
		atDate, _ := payload["atDate"].(string)
		commit := true
		if v, ok := payload["commit"].(bool); ok {
			commit = v
		}
		result, err := alertsEngine.Run(atDate, commit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"eventCount": result.EventCount, "at": result.At}, nil
	})

	engine.RegisterExecutor(taskTypeDeliveryRun, func(payload map[string]interface{}) (map[string]interface{}, error) {
		limit := 0
		if v, ok := payload["limit"].(float64); ok {
			limit = int(v)
		}
		result, err := deliveryEngine.Deliver(limit, nil, false)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"delivered": result.Delivered, "failed": result.Failed}, nil
	})
}

var automationEnqueueCmd = &cobra.Command{
	Use:   "enqueue TASK_TYPE",
	Short: "Enqueue a single task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := tasks.New(currentLayout())
		task, err := engine.EnqueueTask(args[0], tasks.EnqueueOptions{Source: "cli"})
		if err != nil {
			return err
		}
		return printJSON(task)
	},
}

var automationWorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker loop that claims and executes queued tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxTasks := flagInt(cmd.Flags(), "max-tasks")
		engine := tasks.New(currentLayout())
		registerExecutors(engine)

		result, err := engine.RunWorker(workerID(), maxTasks, defaultWorkerSleep)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var automationSchedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Enqueue jobs due per the cron-like schedule, then drain the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := tasks.New(currentLayout())
		registerExecutors(engine)

		enqueueResult, workResult, err := engine.DispatchDueAndWork(workerID(), defaultDispatchMaxRuns, defaultSchedulerSleep)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"enqueued": enqueueResult, "worked": workResult})
	},
}

var automationDeadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List tasks that exhausted their retry budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := flagInt(cmd.Flags(), "limit")
		before := flagString(cmd.Flags(), "before")
		engine := tasks.New(currentLayout())
		rows, err := engine.ListDeadLetters(limit, before)
		if err != nil {
			return err
		}
		return printJSON(rows)
	},
}

var automationCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop finished tasks older than a retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		hours := flagInt(cmd.Flags(), "older-than-hours")
		engine := tasks.New(currentLayout())
		result, err := engine.CompactFinished(time.Duration(hours) * time.Hour)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func workerID() string {
	return fmt.Sprintf("cli-%d", time.Now().UnixNano())
}

func init() {
	automationWorkerCmd.Flags().Int("max-tasks", 10, "Maximum number of tasks to process before exiting")
	automationDeadLettersCmd.Flags().Int("limit", 50, "Maximum number of dead letters to return")
	automationDeadLettersCmd.Flags().String("before", "", "Only return dead letters created before this ISO timestamp")
	automationCompactCmd.Flags().Int("older-than-hours", 24*7, "Drop finished tasks older than this many hours")

	automationCmd.AddCommand(automationEnqueueCmd)
	automationCmd.AddCommand(automationWorkerCmd)
	automationCmd.AddCommand(automationSchedulerCmd)
	automationCmd.AddCommand(automationDeadLettersCmd)
	automationCmd.AddCommand(automationCompactCmd)
}
