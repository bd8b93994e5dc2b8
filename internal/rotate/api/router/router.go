package router

import (
	_ "video_rotate_service/docs"
	"video_rotate_service/internal/rotate/api/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 註冊旋轉服務路由，jobHandler 為 nil 時不開放佇列模式
// @title Video Rotate Service API
// @version 1.0
// @description Rotate a selected video by 90, 180 or 270 degrees
// @BasePath /
func RegisterRoutes(app *fiber.App, rotateHandler *handlers.RotateHandler, jobHandler *handlers.JobHandler) {
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)
	app.Get("/healthz", rotateHandler.Healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/upload", rotateHandler.Upload)
	app.Post("/rotate/:angle", rotateHandler.Rotate)
	app.Get("/state", rotateHandler.GetState)
	app.Get("/download/:token", rotateHandler.Download)

	app.Use("/ws", upgradeOnly)
	app.Get("/ws", websocket.New(rotateHandler.StateSocket))

	if jobHandler != nil {
		app.Post("/jobs", jobHandler.SubmitJob)
		app.Get("/ws/jobs/:id", websocket.New(jobHandler.JobSocket))
	}
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
