package domain

import (
	"fmt"
	"sort"
)

const (
	// InputName 引擎工作區內固定的輸入檔名
	InputName = "input.mp4"
	// OutputBaseName 輸出檔名前綴，副檔名沿用輸入檔
	OutputBaseName = "output"
)

// transposeCodes angle -> ffmpeg transpose filter value.
// 180 maps to 2 as a literal compatibility value; do not derive it from rotation math.
var transposeCodes = map[int]int{
	90:  1,
	180: 2,
	270: 3,
}

// SupportedAngles sorted list of accepted angles
func SupportedAngles() []int {
	angles := make([]int, 0, len(transposeCodes))
	for a := range transposeCodes {
		angles = append(angles, a)
	}
	sort.Ints(angles)
	return angles
}

// RotationRequest 旋轉請求
type RotationRequest struct {
	AngleDegrees int `json:"angle_degrees"`
}

// Validate reject anything outside {90,180,270}
func (r RotationRequest) Validate() error {
	_, err := TransposeCode(r.AngleDegrees)
	return err
}

// TransposeCode angle -> transpose value
func TransposeCode(angle int) (int, error) {
	code, ok := transposeCodes[angle]
	if !ok {
		return 0, fmt.Errorf("angle %d: %w", angle, ErrInvalidAngle)
	}
	return code, nil
}

// EngineCommand 交給引擎執行的指令
type EngineCommand struct {
	Input     string
	Output    string
	Extension string
	Args      []string
}

// OutputFileName output.<ext>
func OutputFileName(ext string) string {
	return OutputBaseName + "." + ext
}

// BuildCommand 依角度與來源檔名組出指令，角度不合法時不產生任何指令
func BuildCommand(angle int, sourceName string) (EngineCommand, error) {
	code, err := TransposeCode(angle)
	if err != nil {
		return EngineCommand{}, err
	}

	ext := Extension(sourceName)
	output := OutputFileName(ext)

	return EngineCommand{
		Input:     InputName,
		Output:    output,
		Extension: ext,
		Args: []string{
			"-i", InputName,
			"-vf", fmt.Sprintf("transpose=%d", code),
			output,
		},
	}, nil
}
