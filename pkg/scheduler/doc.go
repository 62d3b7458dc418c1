// Package scheduler runs delayed and recurring tasks on behalf of agents.
//
// Invariants:
// - Task IDs are unique nanoids.
// - One-shot tasks (scheduled, delayed) are removed after they run.
// - Cron tasks stay registered and are re-armed with their next run time.
// - Every change is written to the Store before it takes effect.
//
// Usage:
//
//	store, _ := scheduler.NewFileStore(filepath.Join(dataDir, "tasks.json"))
//	svc, _ := scheduler.NewService(scheduler.Options{Store: store, Dispatch: dispatch})
//	_ = svc.Start(ctx)
//	task, err := svc.Schedule(ctx, "default", schedule.Delayed{DelayInSeconds: 60}, "executeTask", "stretch")
package scheduler
