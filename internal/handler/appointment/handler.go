package appointment

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/handler"
	"github.com/medbook/booking-api/internal/middleware"
	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/appointment"
	"github.com/medbook/booking-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(_, protected *gin.RouterGroup) {
	appointments := protected.Group("/appointments", middleware.RequireRole(model.RolePatient))
	{
		appointments.POST("/reserve", h.Reserve)
		appointments.GET("", h.ListMine)
		appointments.PATCH("/:id", h.Cancel)
		appointments.POST("/:id/pay", h.Pay)
	}

	doctor := protected.Group("/doctor", middleware.RequireRole(model.RoleDoctor))
	doctor.PATCH("/appointments/:id/complete", h.Complete)
}

func (h *Handler) Reserve(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	var req model.ReserveRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Reserve(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) ListMine(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	apts, err := h.service.ListMine(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apts)
}

// Cancel handles PATCH /appointments/:id. Cancelling is the only patch a
// patient may apply.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) Pay(c *gin.Context) {
	h.transition(c, h.service.Pay)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

type transitionFunc func(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Appointment, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	apt, err := fn(c.Request.Context(), p, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}
