package scenegraph

import (
	"regexp"
	"strings"

	"tour-service/internal/models"
)

var weblinkPattern = regexp.MustCompile(`^https?://`)

// HotspotPayload is the type-specific content of a hotspot as submitted by
// the editor.
type HotspotPayload struct {
	Text        string  `json:"text,omitempty"`
	PopupWidth  float64 `json:"popupWidth,omitempty"`
	PopupHeight float64 `json:"popupHeight,omitempty"`

	Audio *models.AssetRef `json:"audio,omitempty"`

	NavigationTarget string `json:"navigationTarget,omitempty"`

	WeblinkURL     string           `json:"weblinkUrl,omitempty"`
	WeblinkTitle   string           `json:"weblinkTitle,omitempty"`
	WeblinkPreview *models.AssetRef `json:"weblinkPreview,omitempty"`

	Image      *models.AssetRef `json:"image,omitempty"`
	ImageScale *float64         `json:"imageScale,omitempty"`
}

// ValidationResult reports whether a payload may be committed and, if not,
// the message to show the user.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ValidationError carries a failed ValidationResult through error returns.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Message: r.Message}
}

func invalid(msg string) ValidationResult { return ValidationResult{Message: msg} }

// Validation messages shown to the user.
const (
	MsgUnknownType   = "Unknown hotspot type."
	MsgTextRequired  = "Please enter text for the hotspot."
	MsgAudioRequired = "Please choose an audio file or URL."
	MsgTargetMissing = "Please choose a destination scene."
	MsgURLInvalid    = "Please enter a valid URL starting with http:// or https://."
	MsgImageRequired = "Please choose an image file or URL."
)

// ValidateHotspotPayload applies the required-field policy of typ.
func ValidateHotspotPayload(typ models.HotspotType, p HotspotPayload) ValidationResult {
	if !typ.Valid() {
		return invalid(MsgUnknownType)
	}
	if typ.HasText() && strings.TrimSpace(p.Text) == "" {
		return invalid(MsgTextRequired)
	}
	if typ.HasAudio() && p.Audio.IsZero() {
		return invalid(MsgAudioRequired)
	}
	switch typ {
	case models.HotspotNavigation:
		if strings.TrimSpace(p.NavigationTarget) == "" {
			return invalid(MsgTargetMissing)
		}
	case models.HotspotWeblink:
		if !weblinkPattern.MatchString(strings.TrimSpace(p.WeblinkURL)) {
			return invalid(MsgURLInvalid)
		}
	case models.HotspotImage:
		if p.Image.IsZero() {
			return invalid(MsgImageRequired)
		}
	}
	return ValidationResult{Valid: true}
}

// PayloadOf extracts the payload currently held by h.
func PayloadOf(h *models.Hotspot) HotspotPayload {
	return HotspotPayload{
		Text:             h.Text,
		PopupWidth:       h.PopupWidth,
		PopupHeight:      h.PopupHeight,
		Audio:            h.Audio,
		NavigationTarget: h.NavigationTarget,
		WeblinkURL:       h.WeblinkURL,
		WeblinkTitle:     h.WeblinkTitle,
		WeblinkPreview:   h.WeblinkPreview,
		Image:            h.Image,
		ImageScale:       h.ImageScale,
	}
}

// Merge overlays the non-empty fields of patch on p.
func (p HotspotPayload) Merge(patch HotspotPayload) HotspotPayload {
	if patch.Text != "" {
		p.Text = patch.Text
	}
	if patch.PopupWidth != 0 {
		p.PopupWidth = patch.PopupWidth
	}
	if patch.PopupHeight != 0 {
		p.PopupHeight = patch.PopupHeight
	}
	if !patch.Audio.IsZero() {
		p.Audio = patch.Audio
	}
	if patch.NavigationTarget != "" {
		p.NavigationTarget = patch.NavigationTarget
	}
	if patch.WeblinkURL != "" {
		p.WeblinkURL = patch.WeblinkURL
	}
	if patch.WeblinkTitle != "" {
		p.WeblinkTitle = patch.WeblinkTitle
	}
	if !patch.WeblinkPreview.IsZero() {
		p.WeblinkPreview = patch.WeblinkPreview
	}
	if !patch.Image.IsZero() {
		p.Image = patch.Image
	}
	if patch.ImageScale != nil {
		p.ImageScale = patch.ImageScale
	}
	return p
}

// ApplyPayload writes the fields of p that belong to typ onto h, clears the
// fields of other types, and clamps sizes.
func ApplyPayload(h *models.Hotspot, typ models.HotspotType, p HotspotPayload) {
	prevImage, prevRatio := h.Image, h.ImageAspectRatio
	h.Type = typ
	h.Text, h.PopupWidth, h.PopupHeight = "", 0, 0
	h.Audio = nil
	h.NavigationTarget = ""
	h.WeblinkURL, h.WeblinkTitle, h.WeblinkPreview = "", "", nil
	h.Image, h.ImageScale, h.ImageAspectRatio = nil, nil, 0

	if typ.HasText() {
		h.Text = p.Text
		h.PopupWidth = p.PopupWidth
		h.PopupHeight = p.PopupHeight
	}
	if typ.HasAudio() {
		h.Audio = p.Audio
	}
	switch typ {
	case models.HotspotNavigation:
		h.NavigationTarget = strings.TrimSpace(p.NavigationTarget)
	case models.HotspotWeblink:
		h.WeblinkURL = strings.TrimSpace(p.WeblinkURL)
		h.WeblinkTitle = p.WeblinkTitle
		h.WeblinkPreview = p.WeblinkPreview
	case models.HotspotImage:
		h.Image = p.Image
		h.ImageScale = p.ImageScale
		if p.Image.Equal(prevImage) {
			h.ImageAspectRatio = prevRatio
		}
	}
	ClampHotspot(h)
}
