package handler

import (
	"net/http"

	"gomonate/internal/config"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and routes. db is only used by the health
// check.
func SetupRouter(h *Handler, users *service.UserService, db *gorm.DB, cfg *config.Config, log logging.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.Server.AllowOrigins))

	anyRole := AuthMiddleware(users)
	staffAdmin := AuthMiddleware(users, model.RoleSuperAdmin, model.RoleHR)
	scanner := AuthMiddleware(users, model.RoleSuperAdmin, model.RoleScanner)
	superAdmin := AuthMiddleware(users, model.RoleSuperAdmin)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", h.Login)
			authGroup.GET("/me", anyRole, h.Me)
			authGroup.POST("/password", anyRole, h.ChangePassword)
		}

		// employee self service
		api.POST("/register", h.Register)
		api.GET("/wallet", h.Wallet)

		employees := api.Group("/employees", staffAdmin)
		{
			employees.GET("", h.ListEmployees)
			employees.POST("", h.CreateEmployee)
			employees.POST("/import", h.ImportEmployees)
			employees.GET("/:id", h.GetEmployee)
			employees.POST("/:id/codes", h.AssignCode)
		}

		api.GET("/codes/:code_id/qr.png", staffAdmin, h.QRCode)

		api.POST("/redeem", scanner, h.Redeem)

		admin := api.Group("/admin", superAdmin)
		{
			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateUser)
			admin.PUT("/users/:id/status", h.SetUserStatus)
			admin.GET("/dashboard", h.Dashboard)
			admin.GET("/transactions", h.Transactions)
			admin.GET("/reports/employees.csv", h.ExportEmployees)
			admin.POST("/reports/archive", h.ArchiveReport)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
