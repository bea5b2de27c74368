package model

import "time"

// Exit codes recorded outside of the child process's own return value.
const (
	ExitCodeNotStarted = -1234 // child process never started
	ExitCodeKilled     = -1    // child process interrupted
	ExitCodeStuck      = 999   // task found assigned to a freshly restarted node
)

// RenderTask is one schedulable slice of a job, normally a single frame.
// Transitions are driven by the node executing it and by the retry
// coordinator; a Running task always has a host and a start time.
type RenderTask struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	JobID     uint      `gorm:"not null;index" json:"jobId"`
	Status    Status    `gorm:"type:char(1);not null;default:'U';index" json:"status"`
	Priority  int       `gorm:"not null;default:50" json:"priority"`
	Host      string    `gorm:"size:128;index" json:"host"` // empty until claimed
	CreatedAt time.Time `json:"createdAt"`

	StartFrame int `json:"startFrame"`
	EndFrame   int `json:"endFrame"`

	ExitCode  *int       `json:"exitCode"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	MPF       float64    `gorm:"not null;default:0" json:"mpf"` // measured minutes per frame
}

func (RenderTask) TableName() string {
	return "hydra_tasks"
}

// Running reports whether the task is currently held by a node.
func (t *RenderTask) Running() bool {
	return t.Status == StatusStarted
}

// Frames returns the number of frames in the task's sub-range.
func (t *RenderTask) Frames() int {
	if t.EndFrame < t.StartFrame {
		return 0
	}
	return t.EndFrame - t.StartFrame + 1
}
