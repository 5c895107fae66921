package server

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) SetupRoutes(authMiddleware, adminMiddleware, sendLimit echo.MiddlewareFunc) {
	e := s.Echo
	api := e.Group("/api/v1")
	// Auth routes (unprotected)
	auth := api.Group("/auth")
	{
		auth.GET("/providers", s.AuthHandler.GetProviders)
		auth.POST("/register", s.AuthHandler.Register)
		auth.POST("/login", s.AuthHandler.Login)
		auth.POST("/refresh", s.AuthHandler.RefreshToken)
		auth.GET("/oauth/:provider", s.AuthHandler.OAuthLogin)
		auth.GET("/oauth/:provider/callback", s.AuthHandler.OAuthCallback)
	}
	// Everything below requires a logged-in user
	protected := api.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/user", s.AuthHandler.GetCurrentUser)
		// Widget REST surface
		chat := protected.Group("/chat")
		{
			chat.POST("/session", s.ChatHandler.ResolveSession)                        // find or create the caller's conversation
			chat.GET("/conversations/:id/messages", s.ChatHandler.GetMessages)         // message history
			chat.POST("/conversations/:id/messages", s.ChatHandler.SendMessage, sendLimit)
			chat.POST("/conversations/:id/read", s.ChatHandler.MarkRead)               // customer catches up
		}
		// Widget live connection
		protected.GET("/chat/ws", s.ChatWebSocketHandler.HandleWidget)
		// Operator console
		admin := protected.Group("/admin")
		admin.Use(adminMiddleware)
		{
			admin.GET("/conversations", s.AdminChatHandler.ListConversations)
			admin.GET("/conversations/:id", s.AdminChatHandler.GetConversation)
			admin.PUT("/conversations/:id/status", s.AdminChatHandler.UpdateStatus)
			admin.POST("/conversations/:id/messages", s.AdminChatHandler.SendReply, sendLimit)
			admin.POST("/conversations/:id/read", s.AdminChatHandler.MarkRead)
			admin.DELETE("/conversations/:id", s.AdminChatHandler.DeleteConversation)
		}
	}
}
