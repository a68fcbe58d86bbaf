package review

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbook/booking-api/internal/handler"
	"github.com/medbook/booking-api/internal/middleware"
	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/review"
	"github.com/medbook/booking-api/pkg/httputil"
)

type Handler struct {
	service *review.Service
}

func NewHandler(service *review.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/doctors/:doctorId/reviews", h.ListForDoctor)

	reviews := protected.Group("/reviews")
	{
		reviews.POST("", middleware.RequireRole(model.RolePatient), h.Create)
		reviews.POST("/:reviewId/reply", middleware.RequireRole(model.RoleDoctor), h.Reply)
		reviews.DELETE("/:reviewId", middleware.RequireRole(model.RoleAdmin), h.Delete)
	}

	admin := protected.Group("/admin/reviews", middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("/all", h.ListAll)
		admin.DELETE("/:reviewId", h.Delete)
	}
}

func (h *Handler) ListForDoctor(c *gin.Context) {
	doctorID, ok := handler.UUIDParam(c, "doctorId")
	if !ok {
		return
	}
	reviews, err := h.service.ListForDoctor(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, reviews)
}

func (h *Handler) Create(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	var req model.CreateReviewRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Create(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, r)
}

func (h *Handler) Reply(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "reviewId")
	if !ok {
		return
	}
	var req model.ReplyRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Reply(c.Request.Context(), p, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func (h *Handler) ListAll(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	reviews, err := h.service.ListAll(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, reviews)
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "reviewId")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), p, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
