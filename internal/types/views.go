// Package types holds the view structs the management API returns. Views
// carry display fields the storage models do not, and drop columns callers
// have no use for.
package types

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/david2777/hydra-render-farm/internal/model"
)

// JobView is the API shape of a render job.
type JobView struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Owner        string    `json:"owner"`
	Status       string    `json:"status"`
	StatusName   string    `json:"statusName"`
	CreatedAt    time.Time `json:"createdAt"`
	Requirements string    `json:"requirements"`
	Priority     int       `json:"priority"`
	MaxNodes     int       `json:"maxNodes"`
	Timeout      int       `json:"timeout"`
	FailedNodes  string    `json:"failedNodes"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"maxAttempts"`
	Archived     bool      `json:"archived"`
	TaskTotal    int       `json:"taskTotal"`
	TaskDone     int       `json:"taskDone"`
	MPF          float64   `json:"mpf"`
	Mode         string    `json:"mode"`
	StartFrame   int       `json:"startFrame"`
	EndFrame     int       `json:"endFrame"`
	ByFrame      int       `json:"byFrame"`
	Percent      float64   `json:"percent"`
}

// TaskView is the API shape of a render task.
type TaskView struct {
	ID         uint       `json:"id"`
	JobID      uint       `json:"jobId"`
	Status     string     `json:"status"`
	StatusName string     `json:"statusName"`
	Priority   int        `json:"priority"`
	Host       string     `json:"host"`
	StartFrame int        `json:"startFrame"`
	EndFrame   int        `json:"endFrame"`
	ExitCode   *int       `json:"exitCode"`
	StartTime  *time.Time `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	MPF        float64    `json:"mpf"`
}

// NodeView is the API shape of a render node.
type NodeView struct {
	ID              uint       `json:"id"`
	Host            string     `json:"host"`
	Status          string     `json:"status"`
	StatusName      string     `json:"statusName"`
	MinPriority     int        `json:"minPriority"`
	Platform        string     `json:"platform"`
	IPAddr          string     `json:"ipAddr"`
	TaskID          *uint      `json:"taskId"`
	Capabilities    string     `json:"capabilities"`
	Pulse           *time.Time `json:"pulse"`
	SoftwareVersion string     `json:"softwareVersion"`
	IsRenderNode    bool       `json:"isRenderNode"`
}

// NewJobView maps a job row to its API shape.
func NewJobView(job *model.RenderJob) *JobView {
	var v JobView
	_ = copier.Copy(&v, job)
	v.Status = string(job.Status)
	v.StatusName = job.Status.NiceName()
	if job.TaskTotal > 0 {
		v.Percent = float64(job.TaskDone) / float64(job.TaskTotal) * 100
	}
	return &v
}

// NewTaskView maps a task row to its API shape.
func NewTaskView(task *model.RenderTask) *TaskView {
	var v TaskView
	_ = copier.Copy(&v, task)
	v.Status = string(task.Status)
	v.StatusName = task.Status.NiceName()
	return &v
}

// NewNodeView maps a node row to its API shape.
func NewNodeView(node *model.RenderNode) *NodeView {
	var v NodeView
	_ = copier.Copy(&v, node)
	v.Status = string(node.Status)
	v.StatusName = node.Status.NiceName()
	return &v
}

// NewJobViews maps a slice of job rows.
func NewJobViews(jobs []model.RenderJob) []*JobView {
	views := make([]*JobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, NewJobView(&jobs[i]))
	}
	return views
}

// NewTaskViews maps a slice of task rows.
func NewTaskViews(tasks []model.RenderTask) []*TaskView {
	views := make([]*TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, NewTaskView(&tasks[i]))
	}
	return views
}

// NewNodeViews maps a slice of node rows.
func NewNodeViews(nodes []model.RenderNode) []*NodeView {
	views := make([]*NodeView, 0, len(nodes))
	for i := range nodes {
		views = append(views, NewNodeView(&nodes[i]))
	}
	return views
}
