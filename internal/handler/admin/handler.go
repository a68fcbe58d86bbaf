package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/medbook/booking-api/internal/handler"
	"github.com/medbook/booking-api/internal/middleware"
	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/admin"
	"github.com/medbook/booking-api/pkg/httputil"
)

type Handler struct {
	service *admin.Service
}

func NewHandler(service *admin.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(_, protected *gin.RouterGroup) {
	admin := protected.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("/settings", h.Settings)
		admin.POST("/doctors", h.CreateDoctor)
		admin.GET("/users", h.ListUsers)
		admin.PATCH("/users/:userId/ban", h.SetBan)
	}
}

func (h *Handler) Settings(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	settings, err := h.service.Settings(p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, settings)
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	account, err := h.service.CreateDoctor(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, account)
}

func (h *Handler) ListUsers(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	users, err := h.service.ListUsers(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, users)
}

func (h *Handler) SetBan(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "userId")
	if !ok {
		return
	}
	var req model.BanRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	u, err := h.service.SetReviewBan(c.Request.Context(), p, id, req.Banned)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}
