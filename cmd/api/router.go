package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkin/internal/attendance"
	"checkin/internal/auth"
	"checkin/internal/config"
	"checkin/internal/diploma"
	"checkin/internal/httpmiddleware"
	"checkin/internal/mailer"
	"checkin/internal/metrics"
	"checkin/internal/queue"
	"checkin/internal/registration"
)

// deps carries everything the routes need; handlers depend on the service
// interfaces so tests can swap in fakes.
type deps struct {
	cfg          config.App
	registration *registration.Service
	recorder     *attendance.Recorder
	diplomas     *diploma.Service
	queue        queue.Queue
	metrics      *metrics.Metrics
	redisHealthy func(ctx context.Context) bool
	mailState    func() mailer.State
}

func newRouter(d deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(d.cfg.RateLimitPerMin, d.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisOK := d.redisHealthy == nil || d.redisHealthy(c.Request.Context())
		mail := "unconfigured"
		if d.mailState != nil {
			state := d.mailState()
			mail = state.String()
			d.metrics.SetMailChannelUp(state == mailer.StateActive)
		}
		status := http.StatusOK
		if !redisOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisOK, "mail": mail})
	})

	r.POST("/v1/stations/register", func(c *gin.Context) {
		var req struct {
			StationID string `json:"station_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
			return
		}
		token, exp, err := auth.Issue(req.StationID, d.cfg.JWTIssuer, d.cfg.JWTSigningKey, d.cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "access_token": token, "expires_at": exp.Unix()})
	})

	r.POST("/v1/register", func(c *gin.Context) {
		var req struct {
			Name         string  `json:"name" binding:"required"`
			Email        string  `json:"email" binding:"required"`
			Organization string  `json:"organization"`
			Phone        string  `json:"phone"`
			Category     string  `json:"category"`
			Activities   []int64 `json:"activities"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
			return
		}
		a, err := d.registration.Register(c.Request.Context(), registration.Input{
			Name:         req.Name,
			Email:        req.Email,
			Organization: req.Organization,
			Phone:        req.Phone,
			Category:     req.Category,
			ActivityIDs:  req.Activities,
		})
		switch {
		case errors.Is(err, registration.ErrWrongDomain):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "debes usar un correo institucional " + d.cfg.AllowedDomain})
			return
		case errors.Is(err, registration.ErrMissingFields):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "nombre y correo requeridos"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "id": a.ID, "badge_token": a.BadgeToken})
	})

	r.GET("/v1/activities", func(c *gin.Context) {
		acts, err := d.registration.Activities(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		out := make([]gin.H, 0, len(acts))
		for _, a := range acts {
			out = append(out, gin.H{"id": a.ID, "kind": a.Kind, "name": a.Name})
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "activities": out})
	})

	authGroup := r.Group("/v1", auth.StationAuth(d.cfg.JWTSigningKey, d.cfg.JWTIssuer))

	authGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			Token      string `json:"token" binding:"required"`
			ActivityID *int64 `json:"activity_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": err.Error()})
			return
		}

		stationID := ""
		if claimsAny, found := c.Get("claims"); found {
			if claims, ok := claimsAny.(auth.Claims); ok {
				stationID = claims.StationID
			}
		}

		res, err := d.recorder.RecordScan(c.Request.Context(), req.Token, req.ActivityID, stationID)
		if err != nil {
			d.metrics.ObserveScan("error")
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		if !res.Accepted {
			d.metrics.ObserveScan(string(res.Reason))
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": scanMessage(res.Reason)})
			return
		}
		d.metrics.ObserveScan("accepted")

		// Diploma issuance runs in the worker. A publish failure is logged
		// and swallowed: attendance is already recorded and its outcome
		// never depends on the diploma pipeline.
		if req.ActivityID != nil {
			if msg, err := queue.NewDiplomaMessage(res.AttendeeID, *req.ActivityID); err == nil {
				if err := d.queue.Publish(c.Request.Context(), msg); err != nil {
					log.Printf("queue publish failed: %v", err)
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"ok": true, "user_id": res.AttendeeID})
	})

	authGroup.POST("/enrollments/:id/diploma/resend", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "id inválido"})
			return
		}
		out, err := d.diplomas.Resend(c.Request.Context(), id)
		switch {
		case errors.Is(err, diploma.ErrEnrollmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false})
			return
		case err != nil:
			// Marker commit failed after a successful send; surface it to
			// the operator but the diploma did go out.
			if out.OK {
				log.Printf("resend %d delivered but marker write failed: %v", id, err)
				break
			}
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		if !out.OK {
			d.metrics.ObserveDiplomaFailure(string(out.Reason))
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "msg": string(out.Reason)})
			return
		}
		d.metrics.ObserveDiplomaSent()
		c.JSON(http.StatusOK, gin.H{"ok": true, "transport": out.Transport})
	})

	authGroup.GET("/enrollments/:id/diploma", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "id inválido"})
			return
		}
		enr, pdf, err := d.diplomas.Render(c.Request.Context(), id)
		switch {
		case errors.Is(err, diploma.ErrEnrollmentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+diploma.Filename(enr.AttendeeName)+`"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	})

	return r
}

func scanMessage(reason attendance.Reason) string {
	switch reason {
	case attendance.ReasonBadToken:
		return "QR inválido"
	case attendance.ReasonUnknownUser:
		return "usuario no registrado"
	default:
		return "escaneo rechazado"
	}
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
