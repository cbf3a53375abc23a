package core

import "fmt"

// TaskID is a unique task identifier.
type TaskID int

// NilTask marks "no task".
const NilTask TaskID = -1

// Task is a pickup-and-delivery request. Its current location follows the
// carrying agent once picked up.
type Task struct {
	ID       TaskID
	Pickup   NodeID
	Delivery NodeID
	Current  NodeID
	Appear   int
	Finished int // -1 while open
	Assigned bool
}

// Done reports whether the task has reached its delivery location.
func (t *Task) Done() bool {
	return t.Current == t.Delivery
}

// ServiceTime is the number of timesteps from appearance to delivery.
func (t *Task) ServiceTime() int {
	if t.Finished < 0 {
		return 0
	}
	return t.Finished - t.Appear
}

// Format renders the task as "id:(px,py)->(dx,dy)".
func (t *Task) Format(g Graph) string {
	return fmt.Sprintf("%d:%s->%s", t.ID, g.Pos(t.Pickup), g.Pos(t.Delivery))
}

// TaskFactory issues tasks with monotonically increasing ids.
type TaskFactory struct {
	next TaskID
}

// New creates an open task that appears at timestep t.
func (f *TaskFactory) New(pickup, delivery NodeID, t int) *Task {
	task := &Task{
		ID:       f.next,
		Pickup:   pickup,
		Delivery: delivery,
		Current:  pickup,
		Appear:   t,
		Finished: -1,
	}
	f.next++
	return task
}

// Created is the number of tasks issued so far.
func (f *TaskFactory) Created() int {
	return int(f.next)
}
