// Package routes exposes the planner operations over HTTP for automation
// clients. Every response body is an outcome.Result.
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginlogger "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kilianp07/busroute/core/capacity"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
	"github.com/kilianp07/busroute/core/timing"
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// Planner is the operation API served by the router.
type Planner interface {
	CreateRoute(ctx context.Context, name string, date time.Time, description string) (model.Route, error)
	ValidateRouteForActivation(ctx context.Context, routeID int64) (model.ValidationResult, error)
	ActivateRoute(ctx context.Context, routeID int64) (model.Route, error)
	DeactivateRoute(ctx context.Context, routeID int64) (model.Route, error)
	CloneRoute(ctx context.Context, sourceID int64, newDate time.Time, newName string) (model.Route, error)
	AddStopToRoute(ctx context.Context, routeID int64, stop model.RouteStop) (model.RouteStop, error)
	RemoveStopFromRoute(ctx context.Context, routeID, stopID int64) error
	ReorderStops(ctx context.Context, routeID int64, orderedIDs []int64) ([]model.RouteStop, error)
	MoveStopUp(ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error)
	MoveStopDown(ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error)
	ComputeAndPersistTiming(ctx context.Context, routeID int64) (timing.Schedule, error)
	AssignVehicleToRoute(ctx context.Context, routeID, vehicleID int64, slot model.TimeSlot) (model.Route, error)
	AssignDriverToRoute(ctx context.Context, routeID, driverID int64, slot model.TimeSlot) (model.Route, error)
	AssignStudentToRoute(ctx context.Context, studentID, routeID int64) (model.TimeSlot, error)
	RemoveStudentFromRoute(ctx context.Context, studentID, routeID int64) error
	CanAssignStudent(ctx context.Context, studentID, routeID int64) (model.TimeSlot, error)
	GetRouteUtilizationStats(ctx context.Context) (capacity.Stats, error)
	GetRoute(ctx context.Context, routeID int64) (model.Route, error)
	ListRoutes(ctx context.Context, f store.RouteFilter) ([]model.Route, error)
	ListStops(ctx context.Context, routeID int64) ([]model.RouteStop, error)
	RegisterVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	RegisterDriver(ctx context.Context, d model.Driver) (model.Driver, error)
	RegisterStudent(ctx context.Context, s model.Student) (model.Student, error)
}

// Options configures the router middleware.
type Options struct {
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string
	Logger      zerolog.Logger
}

// NewRouter builds the gin engine serving p under /api.
func NewRouter(p Planner, o Options) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), ginlogger.SetLogger(
		ginlogger.WithLogger(func(c *gin.Context, l zerolog.Logger) zerolog.Logger {
			return o.Logger.With().Str("request_id", c.GetString(RequestIDHeader)).Logger()
		}),
		ginlogger.WithUTC(true),
		ginlogger.WithSkipPath([]string{"/api/health"}),
	), gin.Recovery(), corsMiddleware(o.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, outcome.Result[any]{Kind: outcome.KindNotFound.String(), Message: "no such endpoint"})
	})

	h := &handler{p: p}
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, outcome.Result[string]{OK: true, Value: "ok"}) })
	api.GET("/utilization", h.utilization)
	api.POST("/vehicles", h.registerVehicle)
	api.POST("/drivers", h.registerDriver)
	api.POST("/students", h.registerStudent)

	routes := api.Group("/routes")
	routes.GET("", h.listRoutes)
	routes.POST("", h.createRoute)
	routes.GET("/:id", h.getRoute)
	routes.GET("/:id/validation", h.validate)
	routes.POST("/:id/activate", h.activate)
	routes.POST("/:id/deactivate", h.deactivate)
	routes.POST("/:id/clone", h.clone)
	routes.POST("/:id/timing", h.computeTiming)
	routes.PUT("/:id/vehicle", h.assignVehicle)
	routes.PUT("/:id/driver", h.assignDriver)

	routes.GET("/:id/stops", h.listStops)
	routes.POST("/:id/stops", h.addStop)
	routes.PUT("/:id/stops/order", h.reorder)
	routes.DELETE("/:id/stops/:stopID", h.removeStop)
	routes.POST("/:id/stops/:stopID/up", h.moveUp)
	routes.POST("/:id/stops/:stopID/down", h.moveDown)

	routes.POST("/:id/students/:studentID", h.assignStudent)
	routes.DELETE("/:id/students/:studentID", h.removeStudent)
	routes.GET("/:id/students/:studentID/eligibility", h.canAssign)
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
