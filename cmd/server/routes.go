package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"skycast.backend/internal/config"
	"skycast.backend/internal/domain/entities"
	"skycast.backend/internal/interfaces/http/handlers"
	"skycast.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	authHandler    *handlers.AuthHandler
	apiKeyHandler  *handlers.ApiKeyHandler
	adminHandler   *handlers.AdminHandler
	weatherHandler *handlers.WeatherHandler
	gateway        *middleware.Gateway
	sessionAuth    gin.HandlerFunc
	cfg            *config.Config
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public, strict per-IP window to slow brute force)
		auth := v1.Group("/auth")
		{
			auth.POST("/register",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "auth:register", Policy: d.cfg.RateLimit.Auth}),
				d.authHandler.Register)
			auth.POST("/login",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "auth:login", Policy: d.cfg.RateLimit.Auth}),
				d.authHandler.Login)
			auth.GET("/me",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "auth:me", Policy: d.cfg.RateLimit.Default}),
				d.sessionAuth, d.authHandler.GetMe)
		}

		// Weather routes (API key required)
		weather := v1.Group("/weather")
		{
			weather.GET("/current",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "weather:current", RequireAuth: true, Policy: d.cfg.RateLimit.Weather}),
				d.weatherHandler.Current)
			weather.GET("/hourly",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "weather:hourly", RequireAuth: true, Policy: d.cfg.RateLimit.Weather}),
				d.weatherHandler.Hourly)
			weather.GET("/daily",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "weather:daily", RequireAuth: true, Policy: d.cfg.RateLimit.Weather}),
				d.weatherHandler.Daily)
			weather.GET("/geocode",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "weather:geocode", RequireAuth: true, Policy: d.cfg.RateLimit.Weather}),
				d.weatherHandler.Geocode)
		}

		// Background image route (API key required, tight window)
		images := v1.Group("/images")
		{
			images.GET("/background",
				d.gateway.Wrap(middleware.RouteOptions{Endpoint: "images:background", RequireAuth: true, Policy: d.cfg.RateLimit.Images}),
				d.weatherHandler.BackgroundImage)
		}

		// API key self-service (dashboard session required)
		apiKeys := v1.Group("/api-keys")
		apiKeys.Use(d.gateway.Wrap(middleware.RouteOptions{Endpoint: "api-keys", Policy: d.cfg.RateLimit.Default}))
		apiKeys.Use(d.sessionAuth)
		{
			apiKeys.POST("", d.apiKeyHandler.CreateApiKey)
			apiKeys.GET("", d.apiKeyHandler.ListApiKeys)
			apiKeys.GET("/:id", d.apiKeyHandler.GetApiKey)
			apiKeys.PATCH("/:id", d.apiKeyHandler.UpdateApiKey)
			apiKeys.DELETE("/:id", d.apiKeyHandler.DeleteApiKey)
		}

		// Bootstrap route: no key yet, guarded by the shared secret inside
		// the handler and the strict auth window.
		v1.POST("/admin/bootstrap-key",
			d.gateway.Wrap(middleware.RouteOptions{Endpoint: "admin:bootstrap", Policy: d.cfg.RateLimit.Auth}),
			d.adminHandler.BootstrapKey)

		// Admin routes (elevated API key required)
		admin := v1.Group("/admin")
		admin.Use(d.gateway.Wrap(middleware.RouteOptions{Endpoint: "admin", RequireAuth: true, Policy: d.cfg.RateLimit.Default}))
		admin.Use(middleware.RequireKeyRole(entities.KeyRoleAdmin, entities.KeyRoleRoot))
		{
			admin.GET("/usage-stats", d.adminHandler.UsageStats)
			admin.GET("/associations", d.adminHandler.Associations)
			admin.GET("/suspicious-activity", d.adminHandler.SuspiciousActivity)
			admin.GET("/rate-limits", d.adminHandler.RateLimitInfo)
			admin.DELETE("/rate-limits", d.adminHandler.ResetRateLimit)
		}
	}
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(middleware.CORSMiddleware())
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "skycast-backend",
			"version": "0.1.0",
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
