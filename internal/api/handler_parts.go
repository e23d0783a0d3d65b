package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"partlife-backend/internal/health"
	"partlife-backend/internal/lifecycle"
)

// GetParts handles GET /api/parts. Optional filters: machine_id, status
// (GOOD, WARNING, CRITICAL); sort=health orders worst first.
func (h *Handler) GetParts(c *gin.Context) {
	parts := h.fleet.View().Parts

	if machineID := c.Query("machine_id"); machineID != "" {
		filtered := parts[:0:0]
		for _, p := range parts {
			if p.MachineID == machineID {
				filtered = append(filtered, p)
			}
		}
		parts = filtered
	}
	if status := c.Query("status"); status != "" {
		parts = health.FilterStatus(parts, health.Status(strings.ToUpper(status)))
	}
	switch c.Query("sort") {
	case "", "installed":
	case "health":
		parts = health.SortByHealth(parts)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be health or installed"})
		return
	}

	if parts == nil {
		parts = []health.PopulatedPart{}
	}
	c.JSON(http.StatusOK, parts)
}

type installRequest struct {
	MachineID    string `json:"machineId" binding:"required"`
	DefinitionID string `json:"definitionId" binding:"required"`
	PartNumber   string `json:"partNumber" binding:"required"`
}

// PostPart handles POST /api/parts.
func (h *Handler) PostPart(c *gin.Context) {
	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	part, err := h.fleet.Install(req.MachineID, req.DefinitionID, req.PartNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, part)
}

// PatchPart handles PATCH /api/parts/:id.
func (h *Handler) PatchPart(c *gin.Context) {
	var patch lifecycle.PartPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c)
		return
	}
	part, err := h.fleet.UpdatePart(c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, part)
}

type replaceRequest struct {
	NewPartNumber string     `json:"newPartNumber" binding:"required"`
	ReplacedDate  *time.Time `json:"replacedDate"`
}

// ReplacePart handles POST /api/parts/:id/replace.
func (h *Handler) ReplacePart(c *gin.Context) {
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	part, entry, err := h.fleet.Replace(c.Param("id"), req.NewPartNumber, req.ReplacedDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part": part, "log": entry})
}

// DeletePart handles DELETE /api/parts/:id.
func (h *Handler) DeletePart(c *gin.Context) {
	if !confirmed(c) {
		return
	}
	if !h.fleet.DeleteInstalledPart(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "installed part not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLogs handles GET /api/logs, newest first.
func (h *Handler) GetLogs(c *gin.Context) {
	c.JSON(http.StatusOK, h.fleet.Logs(c.Query("machine_id")))
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.fleet.Summary())
}

// GetOrphans handles GET /api/diagnostics/orphans.
func (h *Handler) GetOrphans(c *gin.Context) {
	orphans := h.fleet.View().Orphans
	if orphans == nil {
		orphans = []health.Orphan{}
	}
	c.JSON(http.StatusOK, orphans)
}
