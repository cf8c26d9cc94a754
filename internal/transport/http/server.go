package http

import (
	"github.com/gin-gonic/gin"

	"docspace/internal/bootstrap"
	"docspace/internal/transport/http/handler"
	"docspace/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.AuthService)
	workspaceHandler := handler.NewWorkspaceHandler(app.WorkspaceService)
	fileHandler := handler.NewFileHandler(app.IngestService)
	searchHandler := handler.NewSearchHandler(app.SearchService, app.AskService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	authed := v1.Group("")
	authed.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	authed.POST("/workspaces", workspaceHandler.Create)
	authed.GET("/workspaces", workspaceHandler.List)
	authed.GET("/workspaces/:id", workspaceHandler.Get)
	authed.DELETE("/workspaces/:id", workspaceHandler.Delete)

	authed.POST("/workspaces/:id/files", fileHandler.Upload)
	authed.GET("/workspaces/:id/files", fileHandler.List)
	authed.GET("/files/:id", fileHandler.GetStatus)
	authed.POST("/files/:id/resubmit", fileHandler.Resubmit)
	authed.DELETE("/files/:id", fileHandler.Delete)

	authed.POST("/workspaces/:id/search", searchHandler.Search)
	authed.POST("/workspaces/:id/ask", searchHandler.Ask)

	return router
}
