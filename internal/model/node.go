package model

import "time"

// RenderNode is a worker machine registered with the farm. A node row is only
// ever written by the node itself (pulse, status, task_id) and by the
// management surface (capabilities, min_priority, render eligibility).
type RenderNode struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	Host        string  `gorm:"size:128;uniqueIndex;not null" json:"host"`
	Status      Status  `gorm:"type:char(1);not null;default:'O'" json:"status"`
	MinPriority int     `gorm:"not null;default:0" json:"minPriority"`
	Platform    string  `gorm:"size:32" json:"platform"`
	IPAddr      string  `gorm:"size:64" json:"ipAddr"`
	TaskID      *uint   `json:"taskId"`
	Task        *RenderTask `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	Capabilities    string     `gorm:"size:255" json:"capabilities"`
	Pulse           *time.Time `json:"pulse"`
	SoftwareVersion string     `gorm:"size:32" json:"softwareVersion"`
	IsRenderNode    bool       `gorm:"not null;default:true" json:"isRenderNode"`
}

func (RenderNode) TableName() string {
	return "hydra_render_nodes"
}

// CapabilityList returns the node's capability tokens.
func (n *RenderNode) CapabilityList() []string {
	return SplitTokens(n.Capabilities)
}

// Stale reports whether the node's pulse is older than the given threshold at
// time now. A node that has never pulsed is stale.
func (n *RenderNode) Stale(now time.Time, threshold time.Duration) bool {
	if n.Pulse == nil {
		return true
	}
	return now.Sub(*n.Pulse) > threshold
}
