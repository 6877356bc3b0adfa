package router

import (
	"bookden/internal/handlers"
	"bookden/internal/hub"
	"bookden/internal/middleware"
	"bookden/internal/services"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, wsHub *hub.Hub, notifier *hub.Notifier) {
	// 组装服务
	mailService := services.NewMailService()
	commentService := services.NewCommentService(services.NewGormCommentStore(), services.NewGormUserDirectory())
	notificationService := services.NewNotificationService(wsHub, notifier, mailService)

	// 组装处理器
	authHandler := handlers.NewAuthHandler()
	bookHandler := handlers.NewBookHandler(commentService)
	commentHandler := handlers.NewCommentHandler(commentService, notificationService)
	favoriteHandler := handlers.NewFavoriteHandler()
	notificationHandler := handlers.NewNotificationHandler(wsHub)
	userHandler := handlers.NewUserHandler()
	adminHandler := handlers.NewAdminHandler(notificationService)

	// ===== 公开页面 =====
	r.GET("/", bookHandler.ListHot)
	r.GET("/new", bookHandler.ListNew)
	r.GET("/c/:name", bookHandler.ListByCategory)
	r.GET("/author/:id", bookHandler.ListByAuthor)
	r.GET("/publisher/:id", bookHandler.ListByPublisher)
	r.GET("/tag/:name", bookHandler.ListByTag)
	r.GET("/search", bookHandler.Search)
	r.GET("/b/:bid", bookHandler.Detail)
	r.GET("/comment/:id/replies", commentHandler.ListReplies)
	r.GET("/u/:id", userHandler.Profile)

	// ===== 账号 =====
	r.GET("/register", authHandler.ShowRegister)
	r.POST("/register", authHandler.Register)
	r.GET("/activate", authHandler.ShowActivate)
	r.POST("/activate", authHandler.Activate)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)
	r.GET("/forgot-password", authHandler.ShowForgotPassword)
	r.POST("/forgot-password", authHandler.ForgotPassword)
	r.GET("/reset-password", authHandler.ShowResetPassword)
	r.POST("/reset-password", authHandler.ResetPassword)
	r.GET("/captcha/refresh", authHandler.RefreshCaptcha)

	// ===== 登录后操作 =====
	auth := r.Group("/")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/books/new", bookHandler.ShowCreate)
		auth.POST("/books", bookHandler.Create)
		auth.GET("/b/:bid/edit", bookHandler.ShowEdit)
		auth.POST("/b/:bid/edit", bookHandler.Update)
		auth.DELETE("/b/:bid", bookHandler.Delete)

		auth.POST("/b/:bid/comment", commentHandler.Create)
		auth.POST("/comment/:id/edit", commentHandler.Update)
		auth.DELETE("/comment/:id", commentHandler.Delete)

		auth.POST("/b/:bid/favorite", favoriteHandler.Toggle)

		auth.GET("/notifications", notificationHandler.List)
		auth.POST("/notifications/read-all", notificationHandler.ReadAll)
		auth.POST("/notifications/:id/read", notificationHandler.Read)
		auth.DELETE("/notifications/:id", notificationHandler.Delete)
		auth.GET("/ws/notifications", notificationHandler.WebSocket)

		auth.GET("/settings", userHandler.ShowSettings)
		auth.POST("/settings", userHandler.UpdateSettings)
		auth.GET("/settings/search-history", userHandler.SearchHistory)
		auth.DELETE("/settings/search-history", userHandler.ClearSearchHistory)
	}

	// ===== 管理后台 =====
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("", adminHandler.Dashboard)
		admin.POST("/notifications", adminHandler.SendSystemNotification)

		admin.GET("/users", adminHandler.Users)
		admin.POST("/users/:id/ban", adminHandler.BanUser)
		admin.POST("/users/:id/unban", adminHandler.UnbanUser)

		admin.GET("/authors", adminHandler.Authors)
		admin.POST("/authors/:id", adminHandler.UpdateAuthor)
		admin.DELETE("/authors/:id", adminHandler.DeleteAuthor)

		admin.GET("/publishers", adminHandler.Publishers)
		admin.POST("/publishers/:id", adminHandler.UpdatePublisher)
		admin.DELETE("/publishers/:id", adminHandler.DeletePublisher)

		admin.GET("/categories", adminHandler.Categories)
		admin.POST("/categories", adminHandler.CreateCategory)
		admin.POST("/categories/:id", adminHandler.UpdateCategory)
		admin.DELETE("/categories/:id", adminHandler.DeleteCategory)

		admin.GET("/tags", adminHandler.Tags)
		admin.DELETE("/tags/:id", adminHandler.DeleteTag)
	}
}
