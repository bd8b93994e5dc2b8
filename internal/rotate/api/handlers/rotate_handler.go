package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg"
	"video_rotate_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// allowedExtensions accepted when the browser sends no video/* content type
var allowedExtensions = []string{"mp4", "mov", "m4v", "mkv", "webm", "avi", "wmv", "flv", "mpg", "mpeg", "3gp", "ts"}

// SourceSelector session source selection
type SourceSelector interface {
	Select(fileName string, data []byte) <-chan struct{}
}

// RunStarter pre-flight and start a background run
type RunStarter interface {
	Start(ctx context.Context, angle int) (string, error)
}

// StateReader processing state access
type StateReader interface {
	Snapshot() domain.ProcessingState
	Subscribe(buffer int) (<-chan domain.ProcessingState, func())
}

// DownloadStore one-shot download tokens
type DownloadStore interface {
	Take(token string) (domain.OutputArtifact, bool)
}

// EngineStatus engine readiness
type EngineStatus interface {
	Status() string
	Err() error
	Version() string
}

// RotateHandler definition rotate handler
type RotateHandler struct {
	Session   SourceSelector
	Runs      RunStarter
	State     StateReader
	Downloads DownloadStore // nil when outputs are not served by this process
	Engine    EngineStatus
}

// Upload 選取來源影片
// @Summary Select the source video
// @Tags Rotate
// @Accept multipart/form-data
// @Param file formData file true "video file"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /upload [post]
func (h *RotateHandler) Upload(c *fiber.Ctx) error {
	fileName, data, err := readVideoFile(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	h.Session.Select(fileName, data)
	return c.JSON(fiber.Map{
		"file_name": fileName,
		"extension": domain.Extension(fileName),
		"size":      len(data),
	})
}

// Rotate 開始旋轉
// @Summary Rotate the selected video
// @Tags Rotate
// @Param angle path int true "90, 180 or 270"
// @Success 202 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 412 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /rotate/{angle} [post]
func (h *RotateHandler) Rotate(c *fiber.Ctx) error {
	angle, err := c.ParamsInt("angle")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("angle %q: %w", c.Params("angle"), domain.ErrInvalidAngle))
	}

	runID, err := h.Runs.Start(c.UserContext(), angle)
	if err != nil {
		return errorJSON(c, errorStatus(err), err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"run_id": runID})
}

// GetState current processing state
// @Summary Current processing state
// @Tags Rotate
// @Success 200 {object} domain.ProcessingState
// @Router /state [get]
func (h *RotateHandler) GetState(c *fiber.Ctx) error {
	return c.JSON(h.State.Snapshot())
}

// Download 一次性下載，取走後 token 即失效
// @Summary Download a rotated video
// @Tags Rotate
// @Param token path string true "download token"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /download/{token} [get]
func (h *RotateHandler) Download(c *fiber.Ctx) error {
	if h.Downloads == nil {
		return c.SendStatus(http.StatusNotFound)
	}
	artifact, ok := h.Downloads.Take(c.Params("token"))
	if !ok {
		return errorJSON(c, http.StatusNotFound, errors.New("download expired or already taken"))
	}
	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	return c.Send(artifact.Data)
}

// Healthz engine readiness
// @Summary Engine readiness
// @Tags Shared
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *RotateHandler) Healthz(c *fiber.Ctx) error {
	status := h.Engine.Status()
	body := fiber.Map{"engine": status}
	if version := h.Engine.Version(); version != "" {
		body["version"] = version
	}
	if err := h.Engine.Err(); err != nil {
		body["error"] = err.Error()
	}
	if status != "ready" {
		return c.Status(http.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}

// StateSocket 推送每一次狀態變化，Done 時附帶下載連結
func (h *RotateHandler) StateSocket(conn *websocket.Conn) {
	states, cancel := h.State.Subscribe(8)
	defer cancel()

	// client 關閉時結束訂閱
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for st := range states {
		if err := conn.WriteJSON(st); err != nil {
			logger.Log.Debug("state socket write failed", zap.Error(err))
			return
		}
	}
}

func readVideoFile(c *fiber.Ctx) (string, []byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.New("未檢測到檔案")
	}
	if !acceptedVideo(fileHeader) {
		return "", nil, fmt.Errorf("file %q is not a video", fileHeader.Filename)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", nil, fmt.Errorf("開啟檔案失敗: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("讀取檔案失敗: %w", err)
	}
	return fileHeader.Filename, data, nil
}

func acceptedVideo(fh *multipart.FileHeader) bool {
	if strings.HasPrefix(fh.Header.Get(fiber.HeaderContentType), "video/") {
		return true
	}
	return pkg.Contains(allowedExtensions, domain.Extension(fh.Filename))
}
