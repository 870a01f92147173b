package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/dto"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/service"
	"go.uber.org/zap"
)

// writeError maps a service error onto the HTTP response. Anything
// unrecognized becomes a generic 500 so internals never leak.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var forbidden *domain.ForbiddenError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Authentication required",
			Details: gin.H{"redirect_to": loginRedirect(c)},
		})

	case errors.As(err, &forbidden):
		details := gin.H{}
		if forbidden.Permission != nil {
			details["required_permission"] = gin.H{
				"action": forbidden.Permission.Action,
				"entity": forbidden.Permission.Entity,
				"access": forbidden.Permission.Access,
			}
		}
		if forbidden.Role != "" {
			details["required_role"] = forbidden.Role
		}
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "Forbidden",
			Message: forbidden.Error(),
			Details: details,
		})

	case errors.Is(err, domain.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid code",
			Message: "The code you entered is invalid or has expired",
		})

	case errors.Is(err, domain.ErrAlreadyLinked):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Message: "That account is already connected",
		})

	case errors.Is(err, service.ErrLastLoginMethod):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "You can't remove your last login method",
		})

	case errors.Is(err, repository.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Message: "A user already exists with this email",
		})

	case errors.Is(err, repository.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "Conflict",
			Message: "A user already exists with this username",
		})

	case errors.Is(err, domain.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: "Not found",
		})

	case errors.Is(err, domain.ErrAuthProvider):
		logger.Warn("auth provider error", zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "Provider error",
			Message: "There was an error authenticating with the provider",
		})

	default:
		logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Something went wrong",
		})
	}
}

// loginRedirect points an unauthenticated caller at the login page with
// the original request folded in, so the client can come back after.
func loginRedirect(c *gin.Context) string {
	target := safeRedirect(c.Request.URL.RequestURI())
	if target == "" || target == "/" {
		return "/login"
	}
	return "/login?redirectTo=" + url.QueryEscape(target)
}

// writeValidationError reports a request binding failure
func writeValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Message: err.Error(),
	})
}
