package model

import "strings"

// Status is a single-character state code shared by jobs, tasks, and nodes.
// Job/task and node states draw from the same alphabet so that status columns
// and status summaries can be handled uniformly.
type Status string

const (
	// StatusStarted marks a job or task in progress, or a node that is
	// actively working on a task.
	StatusStarted Status = "S"

	// Job / task states.
	StatusReady    Status = "R" // claimable by a render node
	StatusPaused   Status = "U" // held, not claimable
	StatusFinished Status = "F" // completed with exit code 0
	StatusKilled   Status = "K" // interrupted on request
	StatusError    Status = "E" // non-zero exit or attempts exhausted
	StatusCrashed  Status = "C" // found stuck on a node after a restart
	StatusTimeout  Status = "T" // exceeded the job timeout

	// Node states.
	StatusIdle    Status = "I" // online, ready to claim tasks
	StatusOffline Status = "O" // not accepting tasks
	StatusPending Status = "P" // offline once the current task finishes
)

var statusNames = map[Status]string{
	StatusStarted:  "Started",
	StatusReady:    "Ready",
	StatusPaused:   "Paused",
	StatusFinished: "Finished",
	StatusKilled:   "Killed",
	StatusError:    "Error",
	StatusCrashed:  "Crashed",
	StatusTimeout:  "Timeout",
	StatusIdle:     "Idle",
	StatusOffline:  "Offline",
	StatusPending:  "Pending",
}

// NiceName returns the human-readable name for the status code.
func (s Status) NiceName() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown (" + strings.ToUpper(string(s)) + ")"
}

// Working reports whether the status denotes a node actively holding a task.
func (s Status) Working() bool {
	return s == StatusStarted || s == StatusPending
}

// Terminal reports whether the status is a terminal task state.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusKilled, StatusCrashed, StatusTimeout:
		return true
	}
	return false
}
