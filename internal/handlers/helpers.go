package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/middleware"
	"fundledger/internal/models"
	"fundledger/internal/services"
	"fundledger/internal/uuid"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// isAdmin reports whether the authenticated user has the admin role.
func isAdmin(c *gin.Context) bool {
	role, _ := c.Get(middleware.RoleKey)
	r, _ := role.(models.UserRole)
	return r == models.RoleAdmin
}

// getActor returns the operator recorded on settlement transitions.
func getActor(c *gin.Context) (services.Actor, error) {
	userID, err := getUserID(c)
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{ID: userID, Name: c.GetString(middleware.EmailKey)}, nil
}

// authorizeOwner allows admins and the resource owner. Other users get a
// not-found error so resource existence is not disclosed.
func authorizeOwner(c *gin.Context, ownerID string, notFound *apperrors.AppError) error {
	if isAdmin(c) {
		return nil
	}
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	if userID != ownerID {
		return notFound
	}
	return nil
}

// parsePathID validates a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a well-formed UUID.
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(param)))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// bindError converts a binding failure into an INVALID_INPUT error.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// respondWithError writes the standard error envelope for err.
func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
