package handlers

import (
	"context"
	"errors"
	"net/http"

	"video_rotate_service/internal/rotate/app"
	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/repository"
	"video_rotate_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// JobHandler queued mode
type JobHandler struct {
	UseCase  app.JobUseCase
	Progress repository.ProgressSubscriber
}

// SubmitJob 上傳影片並排入旋轉佇列
// @Summary Queue a rotation job
// @Tags Jobs
// @Accept multipart/form-data
// @Param angle query int true "90, 180 or 270"
// @Param file formData file true "video file"
// @Success 202 {object} domain.UploadJobRes
// @Failure 400 {object} map[string]string
// @Router /jobs [post]
func (h *JobHandler) SubmitJob(c *fiber.Ctx) error {
	angle := c.QueryInt("angle", 0)
	if err := (domain.RotationRequest{AngleDegrees: angle}).Validate(); err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	fileName, data, err := readVideoFile(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	res, err := h.UseCase.SubmitJob(c.UserContext(), domain.UploadJobReq{
		FileName:    fileName,
		ContentType: "video/" + domain.Extension(fileName),
		Data:        data,
		Angle:       angle,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAngle) || errors.Is(err, domain.ErrNoSourceSelected) {
			return errorJSON(c, http.StatusBadRequest, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.Status(http.StatusAccepted).JSON(res)
}

// JobSocket 轉發 job 的進度事件，終止事件送出後關閉
func (h *JobHandler) JobSocket(conn *websocket.Conn) {
	jobID := conn.Params("id")
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		conn.Close()
	}()

	events := make(chan domain.ProgressEvent, 16)
	err := h.Progress.Subscribe(ctx, jobID, func(ev domain.ProgressEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		logger.Log.Error("job progress subscribe failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Terminal() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
