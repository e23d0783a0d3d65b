package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"partlife-backend/internal/health"
	"partlife-backend/internal/model"
)

// machineResponse is a machine together with the health tallies of the
// parts installed on it.
type machineResponse struct {
	model.Machine
	Parts health.Counts `json:"parts"`
}

// GetMachines handles GET /api/machines.
func (h *Handler) GetMachines(c *gin.Context) {
	summary := h.fleet.Summary()
	counts := make(map[string]health.Counts, len(summary.Machines))
	for _, mc := range summary.Machines {
		counts[mc.MachineID] = mc.Counts
	}

	machines := h.fleet.Snapshot().Machines
	responses := make([]machineResponse, 0, len(machines))
	for _, m := range machines {
		responses = append(responses, machineResponse{Machine: m, Parts: counts[m.ID]})
	}
	c.JSON(http.StatusOK, responses)
}

type machineRequest struct {
	Name     string              `json:"name"`
	Location string              `json:"location"`
	Model    string              `json:"model"`
	Status   model.MachineStatus `json:"status"`
}

func (r machineRequest) machine(id string) model.Machine {
	return model.Machine{ID: id, Name: r.Name, Location: r.Location, Model: r.Model, Status: r.Status}
}

// PostMachine handles POST /api/machines.
func (h *Handler) PostMachine(c *gin.Context) {
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	m, err := h.fleet.AddMachine(req.machine(""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// PutMachine handles PUT /api/machines/:id.
func (h *Handler) PutMachine(c *gin.Context) {
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	m, err := h.fleet.EditMachine(req.machine(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMachine handles DELETE /api/machines/:id. Installed parts go with
// the machine; history is kept.
func (h *Handler) DeleteMachine(c *gin.Context) {
	if !confirmed(c) {
		return
	}
	removed, ok := h.fleet.DeleteMachine(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedParts": removed})
}

type definitionResponse struct {
	model.PartDefinition
	Installed     int     `json:"installed"`
	AverageHealth float64 `json:"averageHealth"`
}

// GetDefinitions handles GET /api/definitions.
func (h *Handler) GetDefinitions(c *gin.Context) {
	summary := h.fleet.Summary()
	stats := make(map[string]health.DefinitionHealth, len(summary.Definitions))
	for _, dh := range summary.Definitions {
		stats[dh.DefinitionID] = dh
	}

	defs := h.fleet.Snapshot().Definitions
	responses := make([]definitionResponse, 0, len(defs))
	for _, d := range defs {
		dh := stats[d.ID]
		responses = append(responses, definitionResponse{PartDefinition: d, Installed: dh.Installed, AverageHealth: dh.AverageHealth})
	}
	c.JSON(http.StatusOK, responses)
}

type definitionRequest struct {
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	MaxLifetimeDays int             `json:"maxLifetimeDays"`
	Cost            decimal.Decimal `json:"cost"`
}

func (r definitionRequest) definition(id string) model.PartDefinition {
	return model.PartDefinition{
		ID:              id,
		Name:            r.Name,
		Category:        r.Category,
		MaxLifetimeDays: r.MaxLifetimeDays,
		Cost:            r.Cost,
	}
}

// PostDefinition handles POST /api/definitions.
func (h *Handler) PostDefinition(c *gin.Context) {
	var req definitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	def, err := h.fleet.AddDefinition(req.definition(""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

// PutDefinition handles PUT /api/definitions/:id.
func (h *Handler) PutDefinition(c *gin.Context) {
	var req definitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	def, err := h.fleet.EditDefinition(req.definition(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// DeleteDefinition handles DELETE /api/definitions/:id.
func (h *Handler) DeleteDefinition(c *gin.Context) {
	if !confirmed(c) {
		return
	}
	removed, err := h.fleet.DeleteDefinition(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "part definition not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
