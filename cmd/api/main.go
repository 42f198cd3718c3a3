package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ponto/internal/appointments"
	"ponto/internal/auth"
	"ponto/internal/batch"
	"ponto/internal/config"
	"ponto/internal/httpmiddleware"
	"ponto/internal/kairos"
	"ponto/internal/locations"
	"ponto/internal/queue"
	"ponto/internal/report"
	"ponto/internal/security"
	"ponto/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "ponto:audit")
	}

	users := store.NewUsers(db.Client)
	directory := kairos.New(cfg.KairosBaseURL, cfg.KairosKey, cfg.KairosID)
	table := locations.Default()
	artifacts := report.NewWriter(cfg.ArtifactDir)
	processor := batch.NewProcessor(directory, artifacts)
	peopleCache := store.NewPeopleCache(redisClient.Client, cfg.PeopleCacheTTL)
	engine := appointments.NewEngine(directory, table, peopleCache)

	audit := func(c *gin.Context, action string) {
		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		entry := store.AuditEntry{Username: claims.Username, Action: action, When: time.Now().UTC()}
		if err := q.Publish(c.Request.Context(), entry); err != nil {
			log.Printf("audit publish failed: %v", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := users.GetByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		if user == nil || !security.VerifyPassword(req.Password, user.PasswordHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "login ou senha inválidos"})
			return
		}

		tokens, err := auth.Issue(user.Username, user.IsAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		entry := store.AuditEntry{UserID: user.ID, Username: user.Username, Action: "Login realizado", When: time.Now().UTC()}
		if err := q.Publish(c.Request.Context(), entry); err != nil {
			log.Printf("audit publish failed: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"is_admin":      user.IsAdmin,
		})
	})

	authGroup := r.Group("/v1", auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/clocks", func(c *gin.Context) {
		clocks, err := directory.SearchClocks(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"clocks": clocks, "groups": table.Groups()})
	})

	authGroup.POST("/batches", func(c *gin.Context) {
		var req struct {
			Mode        string          `json:"mode" binding:"required"`
			Badges      []string        `json:"badges"`
			BadgesText  string          `json:"badges_text"`
			DismissText string          `json:"dismissals_text"`
			Options     map[string]bool `json:"options"`
			Clocks      []int           `json:"clocks"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		b := batch.Batch{
			Mode:    batch.Mode(req.Mode),
			Badges:  req.Badges,
			Options: req.Options,
			Clocks:  req.Clocks,
		}
		switch b.Mode {
		case batch.ModeScheduleCommand, batch.ModeAssociate:
			if len(b.Badges) == 0 {
				b.Badges = batch.ParseBadgeLines(strings.NewReader(req.BadgesText))
			}
		case batch.ModeDismiss:
			b.Dismissals = batch.ParseDismissalLines(strings.NewReader(req.DismissText))
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode"})
			return
		}

		outcome, err := processor.Run(c.Request.Context(), b)
		if err != nil {
			var verr *batch.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		audit(c, "Executou lote "+req.Mode)
		c.JSON(http.StatusOK, outcome)
	})

	authGroup.POST("/appointments", func(c *gin.Context) {
		var req struct {
			StartDate string `json:"start_date" binding:"required"`
			EndDate   string `json:"end_date" binding:"required"`
			Badge     string `json:"matricula"`
			Location  string `json:"local"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		records, err := engine.Search(c.Request.Context(), appointments.Query{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Badge:     req.Badge,
			Location:  req.Location,
		})
		if err != nil {
			var verr *appointments.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		audit(c, "Consultou apontamentos de "+req.StartDate+" a "+req.EndDate)
		c.JSON(http.StatusOK, gin.H{"data": records})
	})

	authGroup.POST("/appointments/export", func(c *gin.Context) {
		var req struct {
			Records []appointments.Record `json:"records" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Records) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sem dados para exportar"})
			return
		}

		rows := make([]report.AppointmentRow, 0, len(req.Records))
		for _, rec := range req.Records {
			badge := rec.DisplayBadge
			if badge == "" {
				badge = rec.Badge
			}
			rows = append(rows, report.AppointmentRow{
				Badge:  badge,
				Device: rec.Device,
				Serial: rec.Serial,
				Date:   rec.Date,
				Time:   rec.Time,
			})
		}

		data, err := report.AppointmentsXLSX(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		audit(c, "Exportou relatório para Excel")
		c.Header("Content-Disposition", `attachment; filename="relatorio_ponto.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})

	adminGroup := authGroup.Group("/admin", auth.AdminOnly())

	adminGroup.GET("/users", func(c *gin.Context) {
		list, err := users.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": list})
	})

	adminGroup.POST("/users", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
			IsAdmin  bool   `json:"is_admin"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if existing, err := users.GetByUsername(c.Request.Context(), req.Username); err == nil && existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "login já existe"})
			return
		}
		hash, err := security.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := users.Create(c.Request.Context(), req.Username, hash, req.IsAdmin)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		audit(c, "Criou login: "+req.Username)
		c.JSON(http.StatusCreated, user)
	})

	adminGroup.POST("/users/:username/password", func(c *gin.Context) {
		var req struct {
			NewPassword string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hash, err := security.HashPassword(req.NewPassword)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		username := c.Param("username")
		if err := users.SetPassword(c.Request.Context(), username, hash); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		audit(c, "Resetou senha do login: "+username)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	adminGroup.DELETE("/users/:username", func(c *gin.Context) {
		username := c.Param("username")
		if err := users.Delete(c.Request.Context(), username); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		audit(c, "Excluiu login: "+username)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // batch runs answer synchronously
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
