package server

import (
	"time"

	"github.com/labstack/echo/v4"

	custommiddleware "github.com/hakkacheyassin/ft-trans/middleware"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc, twoFactorMiddleware echo.MiddlewareFunc) {
	e := s.Echo
	api := e.Group("/api/v1")

	loginLimit := custommiddleware.RateLimitMiddleware(s.Limiter, "ratelimit:login", 10, time.Minute)
	joinLimit := custommiddleware.RateLimitMiddleware(s.Limiter, "ratelimit:join", 20, time.Minute)

	// Auth routes (unprotected)
	auth := api.Group("/auth")
	{
		auth.GET("/providers", s.AuthHandler.GetProviders)
		auth.GET("/oauth/:provider", s.AuthHandler.OAuthLogin)
		auth.GET("/oauth/:provider/callback", s.AuthHandler.OAuthCallback, loginLimit)
		auth.POST("/refresh", s.AuthHandler.RefreshToken)
	}

	// Authenticated but not yet past the 2FA step: only the 2FA endpoints
	twofa := api.Group("/auth/2fa")
	twofa.Use(authMiddleware)
	{
		twofa.GET("/secret", s.AuthHandler.GenerateTwoFactorSecret)
		twofa.POST("/turn-on", s.AuthHandler.EnableTwoFactor)
		twofa.GET("/turn-off", s.AuthHandler.DisableTwoFactor)
		twofa.POST("/authenticate", s.AuthHandler.AuthenticateTwoFactor, loginLimit)
	}

	// Fully authenticated
	protected := api.Group("")
	protected.Use(authMiddleware)
	protected.Use(twoFactorMiddleware)
	{
		protected.GET("/user", s.AuthHandler.GetCurrentUser)

		rooms := protected.Group("/rooms")
		{
			rooms.POST("", s.RoomHandler.CreateRoom)
			rooms.GET("", s.RoomHandler.ListRooms)
			rooms.GET("/:id", s.RoomHandler.GetRoom)
			rooms.PUT("/:id", s.RoomHandler.UpdateRoom)
			rooms.POST("/:id/join", s.RoomHandler.JoinRoom, joinLimit)
			rooms.POST("/:id/leave", s.RoomHandler.LeaveRoom)
			rooms.PUT("/:id/members/:userId", s.RoomHandler.UpdateMember)
		}
		protected.POST("/dm/:userId", s.RoomHandler.CreateOrGetDM)

		chat := protected.Group("/chat")
		{
			chat.GET("/:roomId/messages", s.ChatHandler.GetMessages)
			chat.GET("/:roomId/online-users", s.ChatHandler.GetOnlineUsers)
		}
		protected.GET("/chat/:roomId/ws", s.ChatHandler.HandleWebSocket)
		protected.GET("/game/:id/ws", s.GameHandler.HandleWebSocket)
	}
}
