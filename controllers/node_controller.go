package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/paysplit/paysplit_backend/engine"
	"github.com/paysplit/paysplit_backend/models"
	"github.com/paysplit/paysplit_backend/utils"
)

// Node-level mutations. Each handler loads the tree, applies one engine
// mutation, saves with the stored version, and answers with the recomputed
// amount map.

// AddNode inserts a node into a tree.
func (tc *TreeController) AddNode(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.NodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	node := models.Node{
		Label:       utils.SanitizeInput(req.Label),
		Description: utils.SanitizeInput(req.Description),
		ParentID:    req.ParentID,
		Kind:        req.Kind,
		UsePercent:  req.UsePercent,
		UseFixed:    req.UseFixed,
		Percents:    req.Percents,
		Fixed:       req.Fixed,
	}

	nodeID, err := engine.AddNode(tree, node)
	if err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Node added successfully",
		map[string]interface{}{"nodeId": nodeID})
}

// UpdateNode edits a node's label, description, and allocation rule.
func (tc *TreeController) UpdateNode(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.NodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	req.Label = utils.SanitizeInput(req.Label)
	req.Description = utils.SanitizeInput(req.Description)

	if err := engine.UpdateNode(tree, c.Param("nodeId"), req); err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Node updated successfully", nil)
}

// DeleteNode removes a node; its children become detached roots.
func (tc *TreeController) DeleteNode(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	if err := engine.DeleteNode(tree, c.Param("nodeId")); err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Node deleted successfully", nil)
}

// DuplicateNode clones a node; the copy starts detached.
func (tc *TreeController) DuplicateNode(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	nodeID, err := engine.DuplicateNode(tree, c.Param("nodeId"))
	if err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Node duplicated successfully",
		map[string]interface{}{"nodeId": nodeID})
}

// ConnectNodes reparents To under From, replacing any existing inbound edge.
func (tc *TreeController) ConnectNodes(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	if err := engine.Connect(tree, req.From, req.To); err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Nodes connected successfully", nil)
}

// DisconnectNode detaches a node from its parent.
func (tc *TreeController) DisconnectNode(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	if err := engine.Disconnect(tree, c.Param("nodeId")); err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Node disconnected successfully", nil)
}

// ReorderChildren sets the display order of a node's children.
func (tc *TreeController) ReorderChildren(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.ReorderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	if err := engine.Reorder(tree, c.Param("nodeId"), req.Children); err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Children reordered successfully", nil)
}

// ExpandNode materializes an equal split into N generated leaves under an
// expandable node, replacing any previous set.
func (tc *TreeController) ExpandNode(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.ExpandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Count must be a positive integer",
			Data:    err.Error(),
		})
	}

	if err := engine.Expand(tree, c.Param("nodeId"), req.Count); err != nil {
		return mutationError(c, err)
	}

	return tc.saveAndRespond(c, tree, tree.Version, "Node expanded successfully", nil)
}

// mutationError maps engine mutation failures onto HTTP statuses.
func mutationError(c echo.Context, err error) error {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, engine.ErrUnknownNode):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidRule):
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Message: err.Error(),
	})
}
