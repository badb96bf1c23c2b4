package game

import "time"

// Task is a pending deferred call. *time.Timer satisfies it.
type Task interface {
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// TimerScheduler schedules on the runtime timer heap.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// roundTasks tracks the tasks scheduled during one round so that they can be
// stopped together when the round is replaced.
type roundTasks struct {
	tasks []Task
}

func (rt *roundTasks) add(t Task) {
	rt.tasks = append(rt.tasks, t)
}

// stopAll stops every tracked task and returns how many were still pending.
func (rt *roundTasks) stopAll() int {
	stopped := 0
	for _, t := range rt.tasks {
		if t.Stop() {
			stopped++
		}
	}
	rt.tasks = rt.tasks[:0]
	return stopped
}
