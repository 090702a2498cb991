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

type TimeseriesHandler struct {
	log               *logger.Logger
	timeseriesService services.TimeseriesService
	datasetService    services.DatasetService
}

func NewTimeseriesHandler(log *logger.Logger, tsvc services.TimeseriesService, dsvc services.DatasetService) *TimeseriesHandler {
	return &TimeseriesHandler{
		log:               log.With("handler", "TimeseriesHandler"),
		timeseriesService: tsvc,
		datasetService:    dsvc,
	}
}

// GET /api/timeseries/:simulationId/topology
func (h *TimeseriesHandler) GetTopology(c *gin.Context) {
	simulationID, err := uuid.Parse(c.Param("simulationId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	topology, err := h.timeseriesService.GetTopology(c.Request.Context(), nil, simulationID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, topology)
}

// GET /api/timeseries/:simulationId/step?time=
func (h *TimeseriesHandler) GetStep(c *gin.Context) {
	simulationID, err := uuid.Parse(c.Param("simulationId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	t, err := strconv.Atoi(c.DefaultQuery("time", "0"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	step, err := h.timeseriesService.GetStepData(c.Request.Context(), nil, simulationID, t)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, step)
}

// GET /api/timeseries/:simulationId/companies/:companyId?time=
func (h *TimeseriesHandler) GetCompanyDetail(c *gin.Context) {
	simulationID, err := uuid.Parse(c.Param("simulationId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	companyID, err := strconv.ParseInt(c.Param("companyId"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	t, err := strconv.Atoi(c.DefaultQuery("time", "0"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	detail, err := h.timeseriesService.GetCompanyDetail(c.Request.Context(), nil, simulationID, t, companyID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, detail)
}

type importRequest struct {
	SimulationID uuid.UUID            `json:"simulation_id"`
	Rows         []services.ImportRow `json:"rows"`
}

// POST /api/timeseries/import
func (h *TimeseriesHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	count, err := h.datasetService.Import(c.Request.Context(), req.SimulationID, req.Rows)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"imported": count})
}
