package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/logic"
	"github.com/david2777/hydra-render-farm/internal/response"
	"github.com/david2777/hydra-render-farm/internal/types"
)

// NodeHandler serves the node endpoints.
type NodeHandler struct {
	nodes *logic.NodeLogic
}

// NewNodeHandler creates a node handler.
func NewNodeHandler(nodes *logic.NodeLogic) *NodeHandler {
	return &NodeHandler{nodes: nodes}
}

// List returns every registered node.
// GET /api/nodes
func (h *NodeHandler) List(c *fiber.Ctx) error {
	nodes, err := h.nodes.List(c.UserContext())
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, types.NewNodeViews(nodes))
}

// Get returns one node.
// GET /api/nodes/:id
func (h *NodeHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid node id")
	}

	node, err := h.nodes.Get(c.UserContext(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "node not found")
	}
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, types.NewNodeView(node))
}

// Capabilities returns the farm-wide capability catalog.
// GET /api/nodes/capabilities
func (h *NodeHandler) Capabilities(c *fiber.Ctx) error {
	caps, err := h.nodes.Capabilities(c.UserContext())
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, caps)
}

// Online makes the node claimable again.
// POST /api/nodes/:id/online
func (h *NodeHandler) Online(c *fiber.Ctx) error {
	return h.lifecycle(c, h.nodes.Online, "node online")
}

// Offline stops the node from claiming; a running task finishes first.
// POST /api/nodes/:id/offline
func (h *NodeHandler) Offline(c *fiber.Ctx) error {
	return h.lifecycle(c, h.nodes.Offline, "node offline")
}

// GetOff stops the node from claiming and kills its running task.
// POST /api/nodes/:id/getoff
func (h *NodeHandler) GetOff(c *fiber.Ctx) error {
	return h.lifecycle(c, h.nodes.GetOff, "node offline, task killed")
}

// Update edits the node's scheduling attributes.
// PUT /api/nodes/:id
func (h *NodeHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid node id")
	}

	var edit logic.NodeEdit
	if err := c.BodyParser(&edit); err != nil {
		return response.Error(c, "invalid request body")
	}

	if err := h.nodes.Update(c.UserContext(), id, edit); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "node updated", nil)
}

func (h *NodeHandler) lifecycle(c *fiber.Ctx, op func(context.Context, uint) error, msg string) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid node id")
	}
	if err := op(c.UserContext(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "node not found")
		}
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, msg, nil)
}
