package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ConnectCheck check api connect start
// @Summary Check rotate service status
// @Tags Shared
// @Success 200 {string} string "rotate service start!"
// @Router / [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("rotate service start!")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Description Enable or disable debug logging, engine log lines are logged at debug level
// @Tags Shared
// @Param status query bool true "Debug status"
// @Success 200 {string} string "debug mode updated"
// @Failure 400 {string} string "Invalid status value"
// @Router /debug [post]
func DebugLogFlag(c *fiber.Ctx) error {
	statusStr := c.Query("status")
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Log.Info("debug", zap.Bool("status", status))
	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}

// errorStatus map domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAngle):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoSourceSelected):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
