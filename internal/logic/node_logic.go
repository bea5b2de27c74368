package logic

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/david2777/hydra-render-farm/internal/model"
)

// NodeLogic drives render node administration.
type NodeLogic struct {
	db    *gorm.DB
	tasks *TaskLogic
	log   *zap.Logger
}

// NewNodeLogic builds node logic sharing the task kill path.
func NewNodeLogic(db *gorm.DB, tasks *TaskLogic, log *zap.Logger) *NodeLogic {
	return &NodeLogic{db: db, tasks: tasks, log: log}
}

// List returns every node, by host.
func (l *NodeLogic) List(ctx context.Context) ([]model.RenderNode, error) {
	var nodes []model.RenderNode
	if err := l.db.WithContext(ctx).Order("host ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// Get returns one node.
func (l *NodeLogic) Get(ctx context.Context, id uint) (*model.RenderNode, error) {
	var node model.RenderNode
	if err := l.db.WithContext(ctx).First(&node, id).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

// GetByHost returns the node registered under host.
func (l *NodeLogic) GetByHost(ctx context.Context, host string) (*model.RenderNode, error) {
	var node model.RenderNode
	if err := l.db.WithContext(ctx).Where("host = ?", host).First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

// Online makes the node available for claiming. A node parked Pending goes
// back to Started since it is still working.
func (l *NodeLogic) Online(ctx context.Context, id uint) error {
	node, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	switch node.Status {
	case model.StatusOffline:
		return l.db.WithContext(ctx).Model(node).Update("status", model.StatusIdle).Error
	case model.StatusPending:
		return l.db.WithContext(ctx).Model(node).Update("status", model.StatusStarted).Error
	default:
		return nil
	}
}

// Offline stops the node from claiming. A working node is parked Pending and
// drops to Offline when its current task finishes.
func (l *NodeLogic) Offline(ctx context.Context, id uint) error {
	node, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	status := model.StatusOffline
	if node.Status == model.StatusStarted {
		status = model.StatusPending
	}
	return l.db.WithContext(ctx).Model(node).Update("status", status).Error
}

// GetOff kills the node's current task and forces it Offline.
func (l *NodeLogic) GetOff(ctx context.Context, id uint) error {
	node, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if node.Status != model.StatusStarted || node.TaskID == nil {
		return l.Offline(ctx, id)
	}

	if err := l.tasks.Kill(ctx, *node.TaskID); err != nil {
		return fmt.Errorf("logic: kill task on %s: %w", node.Host, err)
	}
	return l.db.WithContext(ctx).Model(&model.RenderNode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.StatusOffline,
			"task_id": nil,
		}).Error
}

// NodeEdit carries the management-editable node fields.
type NodeEdit struct {
	MinPriority  *int
	Capabilities *string
	IPAddr       *string
	IsRenderNode *bool
}

// Update applies an edit to the node row.
func (l *NodeLogic) Update(ctx context.Context, id uint, edit NodeEdit) error {
	updates := map[string]interface{}{}
	if edit.MinPriority != nil {
		updates["min_priority"] = *edit.MinPriority
	}
	if edit.Capabilities != nil {
		tokens := model.SplitTokens(*edit.Capabilities)
		updates["capabilities"] = model.JoinTokens(tokens)
		if err := l.catalogCapabilities(ctx, tokens); err != nil {
			return err
		}
	}
	if edit.IPAddr != nil {
		updates["ip_addr"] = *edit.IPAddr
	}
	if edit.IsRenderNode != nil {
		updates["is_render_node"] = *edit.IsRenderNode
	}
	if len(updates) == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Model(&model.RenderNode{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Register inserts a node row for host. Registering an already known host
// returns the existing row untouched.
func (l *NodeLogic) Register(ctx context.Context, host, platform, ipAddr, version string) (*model.RenderNode, error) {
	existing, err := l.GetByHost(ctx, host)
	if err == nil {
		l.log.Info("node already registered", zap.String("host", host))
		return existing, nil
	}

	node := &model.RenderNode{
		Host:            host,
		Status:          model.StatusOffline,
		Platform:        platform,
		IPAddr:          ipAddr,
		SoftwareVersion: version,
		IsRenderNode:    true,
	}
	if err := l.db.WithContext(ctx).Create(node).Error; err != nil {
		return nil, err
	}
	l.log.Info("node registered", zap.String("host", host), zap.Uint("id", node.ID))
	return node, nil
}

// Capabilities returns the farm-wide capability catalog, alphabetically.
func (l *NodeLogic) Capabilities(ctx context.Context) ([]model.Capability, error) {
	var caps []model.Capability
	if err := l.db.WithContext(ctx).Order("name ASC").Find(&caps).Error; err != nil {
		return nil, err
	}
	return caps, nil
}

// catalogCapabilities records tokens in the capability catalog so the
// management surface can offer them as a pick list. Known names are left
// untouched.
func (l *NodeLogic) catalogCapabilities(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	rows := make([]model.Capability, len(tokens))
	for i, name := range tokens {
		rows[i] = model.Capability{Name: name}
	}
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
