package handler

import (
	"net/http"

	"cbdc-ledger/internal/adapter/http/dto"
	"cbdc-ledger/internal/adapter/http/middleware"
	"cbdc-ledger/internal/core/ports"
	"cbdc-ledger/pkg/apperror"
	"cbdc-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler handles operator authentication and intermediary onboarding.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// Onboard handles POST /api/v1/auth/intermediaries. Central-bank only.
func (h *AuthHandler) Onboard(c *gin.Context) {
	approverID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OnboardIntermediaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Onboard(c.Request.Context(), ports.OnboardRequest{
		Username:   req.Username,
		Password:   req.Password,
		Name:       req.Name,
		AccountID:  req.AccountID,
		ApprovedBy: approverID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.OnboardIntermediaryResponse{
		IntermediaryID: result.IntermediaryID.String(),
		AccountID:      result.AccountID,
		AccessKey:      result.AccessKey,
		SecretKey:      result.SecretKey,
	})
}

// callerID pulls the authenticated intermediary ID out of the request context.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxIntermediaryID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// HealthCheck handles GET /health, verifying every backing dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
