package model

import "time"

// Job modes understood by the execution wrapper.
const (
	ModeMayaRender = "Maya Render"
	ModeMayaPy     = "MayaPy"
	ModeCommand    = "Command"
)

// RenderJob is a submitted unit of render work, decomposed into tasks at
// submission time. The scheduler mutates status, counters, failed_nodes, and
// attempts; the management surface mutates priority, status, and archived.
type RenderJob struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Owner     string    `gorm:"size:64" json:"owner"`
	Status    Status    `gorm:"type:char(1);not null;default:'U';index" json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	// Scheduling inputs.
	Requirements string `gorm:"size:255" json:"requirements"` // capability tokens, all required
	Priority     int    `gorm:"not null;default:50;index" json:"priority"`
	MaxNodes     int    `gorm:"not null;default:0" json:"maxNodes"` // 0 = unlimited concurrency
	Timeout      int    `gorm:"not null;default:0" json:"timeout"`  // seconds per task, 0 = unlimited

	// Failure bookkeeping.
	FailedNodes string `gorm:"size:1024" json:"failedNodes"` // hosts that failed this job
	Attempts    int    `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int    `gorm:"not null;default:10" json:"maxAttempts"`

	Archived bool `gorm:"not null;default:false;index" json:"archived"`

	// Derived progress counters, maintained by the aggregator.
	TaskTotal int     `gorm:"not null;default:0" json:"taskTotal"`
	TaskDone  int     `gorm:"not null;default:0" json:"taskDone"`
	MPF       float64 `gorm:"not null;default:0" json:"mpf"` // running average minutes per frame

	// Execution payload.
	Args            string `gorm:"size:512" json:"args"`
	TaskFile        string `gorm:"size:512" json:"taskFile"`
	StartFrame      int    `json:"startFrame"`
	EndFrame        int    `json:"endFrame"`
	ByFrame         int    `json:"byFrame"`
	RenderLayers    string `gorm:"size:512" json:"renderLayers"`
	OutputDirectory string `gorm:"size:512" json:"outputDirectory"`
	Project         string `gorm:"size:512" json:"project"`
	Script          string `gorm:"size:2048" json:"script"`
	Mode            string `gorm:"size:32" json:"mode"`

	Tasks []RenderTask `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RenderJob) TableName() string {
	return "hydra_jobs"
}

// HasFailedNode reports whether the host is already on the job's failed-node
// list.
func (j *RenderJob) HasFailedNode(host string) bool {
	return HasToken(j.FailedNodes, host)
}

// AddFailedNode records a failed host. Idempotent.
func (j *RenderJob) AddFailedNode(host string) {
	j.FailedNodes = AddToken(j.FailedNodes, host)
}

// RequirementList returns the job's requirement tokens.
func (j *RenderJob) RequirementList() []string {
	return SplitTokens(j.Requirements)
}

// Claimable reports whether the job is in a state where its Ready tasks may
// be handed to nodes.
func (j *RenderJob) Claimable() bool {
	if j.Archived {
		return false
	}
	if j.Attempts >= j.MaxAttempts {
		return false
	}
	return j.Status == StatusReady || j.Status == StatusStarted
}
