package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecomfin/backend/internal/domain/shared"
	"github.com/ecomfin/backend/internal/interfaces/http/dto"
	"github.com/ecomfin/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides the shared response helpers
type BaseHandler struct{}

// companyID extracts the authenticated company from the context. The auth
// middleware guarantees it on every protected route; a miss means the route
// was wired without the middleware.
func companyID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized,
			dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Missing authentication"))
	}
	return id, ok
}

// pathUUID parses a UUID path parameter, answering 400 on failure
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponse(dto.ErrCodeBadRequest, "Invalid "+name+" parameter"))
		return uuid.Nil, false
	}
	return id, true
}

// Success sends a 200 envelope
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 envelope
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 envelope for work continuing in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 error envelope
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeBadRequest, message))
}

// HandleError maps domain errors onto HTTP statuses. Anything that is not a
// DomainError is an internal failure and is not echoed to the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		c.JSON(dto.DomainStatus(domainErr.Code),
			dto.NewErrorResponse(domainErr.Code, domainErr.Message))
		return
	}
	c.JSON(http.StatusInternalServerError,
		dto.NewErrorResponse(dto.ErrCodeInternal, "An unexpected error occurred"))
}
