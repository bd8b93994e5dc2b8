package errprocess

import (
	"errors"
	"fmt"

	"video_rotate_service/pkg/logger"

	"go.uber.org/zap"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Cause 記錄錯誤後回傳包裝過的 sentinel 與原始錯誤，errors.Is 對兩者都成立
func Cause(sentinel, cause error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	logger.Log.Error(msg, zap.NamedError("kind", sentinel), zap.Error(cause))
	return fmt.Errorf("%s: %w: %w", msg, sentinel, cause)
}
