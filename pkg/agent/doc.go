// Package agent hosts candidate conversations: sessions that own scheduled
// tasks, a runner that drives the model through tool calls, and the
// callbacks that run when a scheduled task fires.
//
// Invariants:
// - Runs are serialized per session.
// - Tool calls route through toolexecutor only.
// - Confirmation-required tools run only after the approval manager agrees.
//
// Usage:
//
//	manager := agent.NewManager(agent.ManagerConfig{Runner: runner})
//	svc, _ := scheduler.NewService(scheduler.Options{Store: store, Dispatch: manager.Dispatch})
//	manager.SetScheduler(svc)
//	result, _ := manager.Chat(ctx, "default", "What has Kartikay worked on?")
package agent
