package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strataworks/chainrisk-backend/internal/apierr"
	"github.com/strataworks/chainrisk-backend/internal/logger"
	"github.com/strataworks/chainrisk-backend/internal/services"
)

type PropagationHandler struct {
	log                *logger.Logger
	propagationService services.PropagationService
}

func NewPropagationHandler(log *logger.Logger, psvc services.PropagationService) *PropagationHandler {
	return &PropagationHandler{
		log:                log.With("handler", "PropagationHandler"),
		propagationService: psvc,
	}
}

type runRequest struct {
	CompanyID   int64    `json:"company_id"`
	InitialRisk *float64 `json:"initial_risk,omitempty"`
	DecayRate   *float64 `json:"decay_rate,omitempty"`
	MaxLevel    *int     `json:"max_level,omitempty"`
}

// POST /api/simulation/run
func (h *PropagationHandler) Run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}

	run, err := h.propagationService.Run(c.Request.Context(), nil, services.RunParams{
		StartCompanyID: req.CompanyID,
		InitialRisk:    req.InitialRisk,
		DecayRate:      req.DecayRate,
		MaxLevel:       req.MaxLevel,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, run)
}
