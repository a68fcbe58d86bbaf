package doctor

import (
	"github.com/gin-gonic/gin"

	"github.com/medbook/booking-api/internal/handler"
	"github.com/medbook/booking-api/internal/middleware"
	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/service/doctor"
	"github.com/medbook/booking-api/internal/service/schedule"
	"github.com/medbook/booking-api/internal/service/slot"
	"github.com/medbook/booking-api/pkg/httputil"
)

// Handler serves the doctor directory, the weekly slot grid and the
// doctor's own calendar management.
type Handler struct {
	doctors  *doctor.Service
	schedule *schedule.Service
	slots    *slot.Service
}

func NewHandler(doctors *doctor.Service, schedule *schedule.Service, slots *slot.Service) *Handler {
	return &Handler{doctors: doctors, schedule: schedule, slots: slots}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/doctors", middleware.Cache(middleware.PublicListingCache()), h.List)

	anyRole := middleware.RequireRole(model.RolePatient, model.RoleDoctor, model.RoleAdmin)
	doctors := protected.Group("/doctors/:doctorId", anyRole, middleware.NoStore())
	{
		doctors.GET("/schedule", h.Schedule)
		doctors.GET("/slots", h.Slots)
	}

	me := protected.Group("/doctor", middleware.RequireRole(model.RoleDoctor))
	{
		me.GET("/me", h.Me)
		me.POST("/availability", h.AddRule)
		me.GET("/availability", h.ListRules)
		me.POST("/absences", h.AddAbsence)
		me.GET("/absences", h.ListAbsences)
	}
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.doctors.List(c.Request.Context(), c.Query("specialization"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) Schedule(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	doctorID, ok := handler.UUIDParam(c, "doctorId")
	if !ok {
		return
	}
	sched, err := h.schedule.DoctorSchedule(c.Request.Context(), p, doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, sched)
}

// Slots returns the week grid. weekStart defaults to the current week and
// slotMinutes to the doctor's rules.
func (h *Handler) Slots(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	doctorID, ok := handler.UUIDParam(c, "doctorId")
	if !ok {
		return
	}
	var q model.SlotQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	grid, err := h.slots.Week(c.Request.Context(), p, doctorID, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, grid)
}

func (h *Handler) Me(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	d, err := h.doctors.Me(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) AddRule(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	var req model.CreateRuleRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	rule, err := h.schedule.AddRule(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, rule)
}

func (h *Handler) ListRules(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	rules, err := h.schedule.ListRules(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rules)
}

// AddAbsence records the absence and reports how many visits it cancelled.
func (h *Handler) AddAbsence(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	var req model.CreateAbsenceRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.schedule.AddAbsence(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, res)
}

func (h *Handler) ListAbsences(c *gin.Context) {
	p, ok := handler.Principal(c)
	if !ok {
		return
	}
	absences, err := h.schedule.ListAbsences(c.Request.Context(), p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, absences)
}
