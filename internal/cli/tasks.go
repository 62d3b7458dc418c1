package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartikay/folio/internal/config"
	"github.com/kartikay/folio/internal/daemon"
	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/scheduler"
)

var tasksAgent string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and cancel scheduled tasks",
	Long: `Inspect and cancel the tasks persisted in the task store.
A running daemon only picks up cancellations made here after a restart;
use the gateway's tasks.cancel method to cancel live tasks.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	RunE:  runTasksList,
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCancel,
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksAgent, "agent", "", "only list tasks of this agent")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	rootCmd.AddCommand(tasksCmd)
}

func openTaskStore(cfg *config.Config) (scheduler.Store, error) {
	store, err := scheduler.OpenStore(cfg.Scheduler.Store, cfg.Scheduler.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}
	return store, nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openTaskStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	out := cmd.OutOrStdout()

	filtered := tasks[:0]
	for _, task := range tasks {
		if tasksAgent == "" || task.AgentID == tasksAgent {
			filtered = append(filtered, task)
		}
	}
	if len(filtered) == 0 {
		fmt.Fprintln(out, "No scheduled tasks found.")
		return nil
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Time.Before(filtered[j].Time)
	})

	for _, task := range filtered {
		fmt.Fprintf(out, "%s  %-10s %-9s %-24s %s\n",
			task.ID, task.AgentID, task.Type, describeWhen(task), task.Payload)
	}

	return nil
}

func describeWhen(task runtime.Task) string {
	if task.Recurring() {
		return task.Cron
	}
	return task.Time.Local().Format(time.RFC3339)
}

func runTasksCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openTaskStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	tasks, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	id := args[0]
	found := false
	for _, task := range tasks {
		if task.ID == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", runtime.ErrTaskNotFound, id)
	}

	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel task %s: %w", id, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %s has been successfully canceled.\n", id)
	if daemon.IsRunning(daemon.PIDFilePath(cfg.DataDir)) {
		fmt.Fprintln(out, "The daemon is running and keeps the task armed until it restarts.")
	}

	return nil
}
