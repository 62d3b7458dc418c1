// Package schedule models the schedule input a model supplies when it asks
// for a delayed task.
//
// Invariants:
// - A When is exactly one of NoSchedule, Scheduled, Delayed or Cron.
// - Consumers read a When through Visitor, which has one method per variant.
//
// Usage:
//
//	when, description, err := schedule.ParseRequest(params)
//	value := schedule.Describe(when)
package schedule
