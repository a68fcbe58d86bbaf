// Package handler holds the helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/middleware"
	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
	"github.com/medbook/booking-api/pkg/httputil"
)

// Routes is implemented by every resource handler. Public routes need no
// token; protected ones run behind authentication.
type Routes interface {
	RegisterRoutes(public, protected *gin.RouterGroup)
}

// Principal returns the authenticated caller, answering 401 when there is
// none.
func Principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
	}
	return p, ok
}

// UUIDParam parses the named path parameter, answering 400 when it is not a
// UUID.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes and validates the body into obj.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return false
	}
	return true
}

// BindQuery decodes and validates the query string into obj.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return false
	}
	return true
}
