package main

import (
	"video_rotate_service/internal/rotate/api/handlers"
	"video_rotate_service/internal/rotate/api/router"

	"github.com/gofiber/fiber/v2"
)

// 此程式只用於 swag init，服務入口在 cmd/
// swag init -g main.go -o ./docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, &handlers.RotateHandler{}, &handlers.JobHandler{})
}
