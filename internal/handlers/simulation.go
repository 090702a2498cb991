package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/services"
)

type SimulationHandler struct {
	log               *logger.Logger
	simulationService services.SimulationService
}

func NewSimulationHandler(log *logger.Logger, ssvc services.SimulationService) *SimulationHandler {
	return &SimulationHandler{
		log:               log.With("handler", "SimulationHandler"),
		simulationService: ssvc,
	}
}

type commitRequest struct {
	RunID       string `json:"run_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Creator     string `json:"creator,omitempty"`
}

// POST /api/simulation/commit
func (h *SimulationHandler) Commit(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}

	sim, err := h.simulationService.Commit(c.Request.Context(), nil, services.CommitParams{
		RunID:       req.RunID,
		Name:        req.Name,
		Description: req.Description,
		Creator:     req.Creator,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, sim)
}

// GET /api/simulations/:id
func (h *SimulationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	replay, err := h.simulationService.GetReplay(c.Request.Context(), nil, id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, replay)
}

// GET /api/simulations
func (h *SimulationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	keyword := c.Query("keyword")

	result, err := h.simulationService.List(c.Request.Context(), nil, page, pageSize, keyword)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// DELETE /api/simulations/:id
func (h *SimulationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	if err := h.simulationService.Delete(c.Request.Context(), nil, id); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
