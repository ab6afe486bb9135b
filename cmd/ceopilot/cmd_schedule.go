package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceopilot/internal/config"
	"ceopilot/internal/scheduler"
	"ceopilot/internal/types"
)

var (
	scheduleAction    string
	scheduleInitiator string
	scheduleAt        string
	scheduleContext   string
)

// scheduleCmd groups scheduled-task operations
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage and run scheduled tasks",
}

// scheduleAddCmd enqueues a new task
var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a task for later execution",
	Long: `Enqueues a task for the governance pipeline. The task's agent context
(a JSON object) carries action tags, impact, evidence references, and
routing hints consumed by the pipeline stages.

Example:
  ceopilot schedule add --action "send weekly report" --initiator ops \
    --at 2026-08-25T18:00:00Z --context context.json`,
	RunE: runScheduleAdd,
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	if scheduleAction == "" || scheduleInitiator == "" {
		return fmt.Errorf("--action and --initiator are required")
	}

	at := types.NowUTC()
	if scheduleAt != "" {
		parsed, err := time.Parse(time.RFC3339, scheduleAt)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp: %w", err)
		}
		at = parsed.UTC()
	}

	var agentContext map[string]any
	if scheduleContext != "" {
		if err := readJSONFile(scheduleContext, &agentContext); err != nil {
			return err
		}
	}

	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	task := types.ScheduledTask{
		TaskID:       types.NewID(),
		Action:       scheduleAction,
		AgentContext: agentContext,
		Initiator:    scheduleInitiator,
		ScheduledAt:  at,
		Status:       types.TaskScheduled,
	}
	if err := k.Store.SaveTask(identity, task); err != nil {
		return err
	}

	logger.Info("task scheduled",
		zap.String("task_id", task.TaskID),
		zap.Time("scheduled_at", task.ScheduledAt))
	return printJSON(task)
}

// scheduleRunCmd executes one scheduler pass
var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduler pass over due tasks",
	RunE:  runSchedulePass,
}

func runSchedulePass(cmd *cobra.Command, args []string) error {
	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	sched := scheduler.New(k.Store, k.Pipeline())
	summary, err := sched.Run(cmd.Context(), scheduler.Options{
		Identity:   identity,
		MaxTasks:   k.Config().Scheduler.MaxTasks,
		DeferDelay: config.Duration(k.Config().Scheduler.DeferDelay, scheduler.DefaultDeferDelay),
	})
	if err != nil {
		return err
	}
	return printJSON(summary)
}

// scheduleListCmd prints the identity's tasks
var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel()
		if err != nil {
			return err
		}
		defer k.Close()

		tasks, err := k.Store.ListTasks(identity)
		if err != nil {
			return err
		}
		return printJSON(tasks)
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleAction, "action", "", "Action description")
	scheduleAddCmd.Flags().StringVar(&scheduleInitiator, "initiator", "", "Who requested the task")
	scheduleAddCmd.Flags().StringVar(&scheduleAt, "at", "", "RFC3339 execution time (default: now)")
	scheduleAddCmd.Flags().StringVar(&scheduleContext, "context", "", "Path to a JSON agent-context file")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
}
