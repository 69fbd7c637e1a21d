package lib

import (
	"github.com/mitroadmaps/gomapinfer/common"
	"github.com/pkg/errors"
)

// ComputeROI returns the crop rectangle (left, top, right, bottom) for a mask
// of the given size. With the default config a 176x144 mask gives
// (1, 28)-(175, 108).
func ComputeROI(cfg RoiConfig, width int, height int) (common.Rectangle, error) {
	if cfg.TopDiv < 1 || cfg.BottomDiv < 1 {
		return common.Rectangle{}, errors.Wrapf(ErrConfig, "bad roi %+v", cfg)
	}
	left := cfg.Left
	top := height / cfg.TopDiv
	right := width - cfg.Right
	bottom := height - height/cfg.BottomDiv
	if left < 0 || right > width || right <= left || bottom <= top {
		return common.Rectangle{}, errors.Wrapf(ErrInvalidInput, "roi %+v is empty for a %dx%d mask", cfg, width, height)
	}
	return common.Rectangle{
		Min: common.Point{X: float64(left), Y: float64(top)},
		Max: common.Point{X: float64(right), Y: float64(bottom)},
	}, nil
}

// CropROI crops the ROI of cfg out of mask.
func CropROI(mask Image, cfg RoiConfig) (Image, error) {
	rect, err := ComputeROI(cfg, mask.Width, mask.Height)
	if err != nil {
		return Image{}, err
	}
	return mask.Crop(int(rect.Min.X), int(rect.Min.Y), int(rect.Max.X), int(rect.Max.Y))
}
