package domain

import (
	"strings"
	"time"
)

// MediaSource 使用者上傳的影片與其長度（秒）
// Duration 在 metadata 解析完成前為 nil
type MediaSource struct {
	FileName   string
	Data       []byte
	Duration   *float64
	SelectedAt time.Time
}

// Extension 取最後一個 "." 之後的字串並轉小寫
// 沒有 "." 或唯一的 "." 在開頭（例如 ".hidden"）時回傳空字串
func Extension(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}

// Extension of the selected file
func (m MediaSource) Extension() string {
	return Extension(m.FileName)
}

// HasDuration metadata resolved with a usable value
func (m MediaSource) HasDuration() bool {
	return m.Duration != nil && *m.Duration > 0
}
