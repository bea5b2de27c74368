package model

// Capability is a named tag (software, OS, GPU, ...) usable in a node's
// capability set and in a job's requirements. Flat set, no hierarchy; the
// table exists so the management surface can offer a stable pick list.
type Capability struct {
	Name string `gorm:"primaryKey;size:64" json:"name"`
}

func (Capability) TableName() string {
	return "hydra_capabilities"
}
