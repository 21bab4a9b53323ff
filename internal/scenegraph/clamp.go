package scenegraph

import "tour-service/internal/models"

const (
	MinPopupWidth  = 2.0
	MaxPopupWidth  = 10.0
	MinPopupHeight = 1.5
	MaxPopupHeight = 10.0
	MinImageScale  = 0.1
	MaxImageScale  = 10.0

	DefaultPopupWidth  = 4.0
	DefaultPopupHeight = 2.5
	DefaultImageScale  = 1.0
	DefaultVolume      = 0.5
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampVolume limits v to [0,1].
func ClampVolume(v float64) float64 { return clamp(v, 0, 1) }

// ClampHotspot fills unset sizes with defaults and limits them to their
// ranges. It only touches fields the hotspot's type uses.
func ClampHotspot(h *models.Hotspot) {
	if h.Type.HasText() {
		if h.PopupWidth == 0 {
			h.PopupWidth = DefaultPopupWidth
		}
		if h.PopupHeight == 0 {
			h.PopupHeight = DefaultPopupHeight
		}
		h.PopupWidth = clamp(h.PopupWidth, MinPopupWidth, MaxPopupWidth)
		h.PopupHeight = clamp(h.PopupHeight, MinPopupHeight, MaxPopupHeight)
	}
	if h.Type == models.HotspotImage {
		scale := DefaultImageScale
		if h.ImageScale != nil {
			scale = clamp(*h.ImageScale, MinImageScale, MaxImageScale)
		}
		h.ImageScale = &scale
		if h.ImageAspectRatio < 0 {
			h.ImageAspectRatio = 0
		}
	}
}

// ClampScene limits the scene's volumes.
func ClampScene(s *models.Scene) {
	s.VideoVolume = ClampVolume(s.VideoVolume)
	if s.GlobalSound != nil {
		s.GlobalSound.Volume = ClampVolume(s.GlobalSound.Volume)
	}
	for _, h := range s.Hotspots {
		ClampHotspot(h)
	}
}
