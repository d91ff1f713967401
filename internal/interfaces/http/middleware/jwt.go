package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecomfin/backend/internal/infrastructure/auth"
	"github.com/ecomfin/backend/internal/infrastructure/logger"
	"github.com/ecomfin/backend/internal/interfaces/http/dto"
)

// Context keys set by the auth middleware
const (
	CompanyIDKey  = "auth_company_id"
	UserIDKey     = "auth_user_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTAuth validates the bearer token and stores the company and user ids on
// the request context. The company id from the token is the only tenancy
// input downstream handlers trust.
func JWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, "Missing or malformed authorization header")
			return
		}
		token := strings.TrimPrefix(header, BearerPrefix)
		if token == "" {
			abortUnauthorized(c, "Missing token")
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, "Token has expired")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		companyID, err := claims.Company()
		if err != nil {
			abortUnauthorized(c, "Invalid company claim")
			return
		}

		c.Set(CompanyIDKey, companyID)
		c.Set(UserIDKey, claims.UserID)

		ctx, _ := logger.WithCompanyID(c.Request.Context(), logger.FromContext(c.Request.Context()), companyID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CompanyID returns the authenticated company id from the request context
func CompanyID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CompanyIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponse(dto.ErrCodeUnauthorized, message))
}
