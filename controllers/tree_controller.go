package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/paysplit/paysplit_backend/engine"
	"github.com/paysplit/paysplit_backend/middleware"
	"github.com/paysplit/paysplit_backend/models"
	"github.com/paysplit/paysplit_backend/repositories"
	"github.com/paysplit/paysplit_backend/utils"
	"github.com/paysplit/paysplit_backend/websocket"
)

const amountsCacheTTL = 10 * time.Minute

type TreeController struct {
	DB    *mongo.Client
	Repo  *repositories.TreeRepository
	Redis *redis.Client
	Hub   *websocket.Hub
}

func NewTreeController(db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) *TreeController {
	return &TreeController{
		DB:    db,
		Repo:  repositories.NewTreeRepository(db),
		Redis: redisClient,
		Hub:   hub,
	}
}

// CreateTree creates a tree, instantiating the default template when the
// request carries no nodes.
func (tc *TreeController) CreateTree(c echo.Context) error {
	ownerID, err := ownerIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID",
		})
	}

	var req models.CreateTreeRequest
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

	nodes, rootID := req.Nodes, req.RootID
	if len(nodes) == 0 {
		nodes, rootID = models.DefaultTemplate()
	} else if rootID == "" {
		// Fall back to the first node without a parent.
		for i := range nodes {
			if nodes[i].ParentID == nil {
				rootID = nodes[i].ID
				break
			}
		}
	}

	tree := &models.Tree{
		OwnerID: ownerID,
		Name:    utils.SanitizeInput(req.Name),
		Payout:  req.Payout,
		RootID:  rootID,
		Nodes:   nodes,
		View:    req.View,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tc.Repo.Create(ctx, tree); err != nil {
		log.Printf("Error creating tree: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create tree",
		})
	}

	amounts := tc.publishAmounts(ctx, tree)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Tree created successfully",
		Data: map[string]interface{}{
			"tree":        tree,
			"amounts":     amounts,
			"connections": tree.Connections(),
		},
	})
}

// GetTrees lists the caller's trees.
func (tc *TreeController) GetTrees(c echo.Context) error {
	ownerID, err := ownerIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trees, err := tc.Repo.FindByOwner(ctx, ownerID)
	if err != nil {
		log.Printf("Error listing trees: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to list trees",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Trees retrieved successfully",
		Data:    trees,
	})
}

// GetTree returns one tree with its resolved amounts and derived connections.
func (tc *TreeController) GetTree(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	amounts := engine.ResolveAll(tree.Nodes, tree.RootID, tree.Payout)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Tree retrieved successfully",
		Data: map[string]interface{}{
			"tree":        tree,
			"amounts":     amounts,
			"connections": tree.Connections(),
		},
	})
}

// UpdateTree replaces a tree's content. The caller must send the version it
// last read; a stale version is rejected with 409.
func (tc *TreeController) UpdateTree(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.UpdateTreeRequest
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

	if req.Name != "" {
		tree.Name = utils.SanitizeInput(req.Name)
	}
	tree.Payout = req.Payout
	tree.Nodes = req.Nodes
	if req.RootID != "" {
		tree.RootID = req.RootID
	}
	tree.View = req.View

	return tc.saveAndRespond(c, tree, req.Version, "Tree updated successfully", nil)
}

// UpdatePayout changes the root scalar and recomputes.
func (tc *TreeController) UpdatePayout(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	var req models.PayoutRequest
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

	tree.Payout = req.Payout
	return tc.saveAndRespond(c, tree, tree.Version, "Payout updated successfully", nil)
}

// DeleteTree soft-deletes a tree and tells subscribers it is gone.
func (tc *TreeController) DeleteTree(c echo.Context) error {
	ownerID, err := ownerIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID",
		})
	}
	treeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid tree ID",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tc.Repo.SoftDelete(ctx, treeID, ownerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Tree not found",
			})
		}
		log.Printf("Error deleting tree: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete tree",
		})
	}

	tc.invalidateAmounts(ctx, treeID.Hex())
	if tc.Hub != nil {
		tc.Hub.NotifyDeleted(treeID.Hex())
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Tree deleted successfully",
	})
}

// RestoreTree clears the soft-delete marker.
func (tc *TreeController) RestoreTree(c echo.Context) error {
	ownerID, err := ownerIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID",
		})
	}
	treeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid tree ID",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tc.Repo.Restore(ctx, treeID, ownerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Tree not found",
			})
		}
		log.Printf("Error restoring tree: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to restore tree",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Tree restored successfully",
	})
}

// DuplicateTree copies a tree into a new document.
func (tc *TreeController) DuplicateTree(c echo.Context) error {
	ownerID, err := ownerIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid user ID",
		})
	}
	treeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid tree ID",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dup, err := tc.Repo.Duplicate(ctx, treeID, ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Tree not found",
			})
		}
		log.Printf("Error duplicating tree: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to duplicate tree",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Tree duplicated successfully",
		Data:    dup,
	})
}

// GetAmounts returns the resolved amount map, from cache when possible. A
// payout query parameter runs a what-if resolution without touching the
// stored tree or the cache.
func (tc *TreeController) GetAmounts(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	if payoutStr := c.QueryParam("payout"); payoutStr != "" {
		payout, err := strconv.ParseFloat(payoutStr, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid payout value",
			})
		}
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Amounts resolved successfully",
			Data:    engine.ResolveAll(tree.Nodes, tree.RootID, payout),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if amounts, ok := tc.cachedAmounts(ctx, tree.ID.Hex()); ok {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Amounts resolved successfully",
			Data:    amounts,
		})
	}

	amounts := engine.ResolveAll(tree.Nodes, tree.RootID, tree.Payout)
	tc.cacheAmounts(ctx, tree.ID.Hex(), amounts)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Amounts resolved successfully",
		Data:    amounts,
	})
}

// ExportTree returns the flat document the export renderer consumes: labels,
// resolved amounts, and derived connections.
func (tc *TreeController) ExportTree(c echo.Context) error {
	tree, errResp := tc.loadTree(c)
	if errResp != nil {
		return errResp(c)
	}

	amounts := engine.ResolveAll(tree.Nodes, tree.RootID, tree.Payout)

	type exportNode struct {
		ID          string  `json:"id"`
		Label       string  `json:"label"`
		Description string  `json:"description,omitempty"`
		ParentID    *string `json:"parentId"`
		Amount      float64 `json:"amount"`
	}
	nodes := make([]exportNode, 0, len(tree.Nodes))
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		nodes = append(nodes, exportNode{
			ID:          n.ID,
			Label:       n.Label,
			Description: n.Description,
			ParentID:    n.ParentID,
			Amount:      amounts[n.ID],
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Tree exported successfully",
		Data: map[string]interface{}{
			"name":        tree.Name,
			"payout":      tree.Payout,
			"rootId":      tree.RootID,
			"nodes":       nodes,
			"connections": tree.Connections(),
			"exportedAt":  time.Now(),
		},
	})
}

// loadTree fetches the tree addressed by the request, or returns a responder
// for the failure.
func (tc *TreeController) loadTree(c echo.Context) (*models.Tree, func(echo.Context) error) {
	ownerID, err := ownerIDFromContext(c)
	if err != nil {
		return nil, func(c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid user ID",
			})
		}
	}

	treeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return nil, func(c echo.Context) error {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid tree ID",
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tree, err := tc.Repo.FindByID(ctx, treeID, ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, func(c echo.Context) error {
				return c.JSON(http.StatusNotFound, models.Response{
					Status:  http.StatusNotFound,
					Message: "Tree not found",
				})
			}
		}
		log.Printf("Error loading tree: %v", err)
		return nil, func(c echo.Context) error {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to load tree",
			})
		}
	}

	return tree, nil
}

// saveAndRespond persists a mutated tree, recomputes, and answers with the
// tree plus its fresh amounts. Extra entries are merged into the response data.
func (tc *TreeController) saveAndRespond(c echo.Context, tree *models.Tree, expectedVersion int64, message string, extra map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tc.Repo.Update(ctx, tree, expectedVersion); err != nil {
		switch {
		case errors.Is(err, repositories.ErrVersionConflict):
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Tree was modified by another request; reload and retry",
			})
		case errors.Is(err, repositories.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Tree not found",
			})
		default:
			log.Printf("Error saving tree: %v", err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to save tree",
			})
		}
	}

	amounts := tc.publishAmounts(ctx, tree)

	data := map[string]interface{}{
		"tree":        tree,
		"amounts":     amounts,
		"connections": tree.Connections(),
	}
	for k, v := range extra {
		data[k] = v
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// publishAmounts recomputes a tree, refreshes the cache, and pushes the new
// map to WebSocket subscribers.
func (tc *TreeController) publishAmounts(ctx context.Context, tree *models.Tree) map[string]float64 {
	amounts := engine.ResolveAll(tree.Nodes, tree.RootID, tree.Payout)

	tc.cacheAmounts(ctx, tree.ID.Hex(), amounts)
	if tc.Hub != nil {
		tc.Hub.BroadcastAmounts(tree.ID.Hex(), tree.Version, amounts)
	}
	return amounts
}

func (tc *TreeController) cacheAmounts(ctx context.Context, treeID string, amounts map[string]float64) {
	if tc.Redis == nil {
		return
	}
	payload, err := json.Marshal(amounts)
	if err != nil {
		return
	}
	if err := tc.Redis.Set(ctx, amountsCacheKey(treeID), payload, amountsCacheTTL).Err(); err != nil {
		log.Printf("Error caching amounts for tree %s: %v", treeID, err)
	}
}

func (tc *TreeController) cachedAmounts(ctx context.Context, treeID string) (map[string]float64, bool) {
	if tc.Redis == nil {
		return nil, false
	}
	payload, err := tc.Redis.Get(ctx, amountsCacheKey(treeID)).Bytes()
	if err != nil {
		return nil, false
	}
	var amounts map[string]float64
	if err := json.Unmarshal(payload, &amounts); err != nil {
		return nil, false
	}
	return amounts, true
}

func (tc *TreeController) invalidateAmounts(ctx context.Context, treeID string) {
	if tc.Redis == nil {
		return
	}
	if err := tc.Redis.Del(ctx, amountsCacheKey(treeID)).Err(); err != nil {
		log.Printf("Error invalidating amounts cache for tree %s: %v", treeID, err)
	}
}

func amountsCacheKey(treeID string) string {
	return "tree:amounts:" + treeID
}

func ownerIDFromContext(c echo.Context) (primitive.ObjectID, error) {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return primitive.ObjectIDFromHex(userID)
}
