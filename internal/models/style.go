package models

// StyleConfig holds the visual knobs of a tour. Values are not validated
// beyond their types.
type StyleConfig struct {
	Hotspot    HotspotStyle    `json:"hotspot"`
	TextPopup  TextPopupStyle  `json:"textPopup"`
	ImagePopup ImagePopupStyle `json:"imagePopup"`
	Navigation NavigationStyle `json:"navigation"`
	Weblink    WeblinkStyle    `json:"weblink"`
	AudioIcon  AudioIconStyle  `json:"audioIcon"`
}

type HotspotStyle struct {
	Size        float64 `json:"size"`
	Color       string  `json:"color"`
	Opacity     float64 `json:"opacity"`
	BorderWidth float64 `json:"borderWidth"`
	BorderColor string  `json:"borderColor"`
}

type TextPopupStyle struct {
	BackgroundColor string  `json:"backgroundColor"`
	TextColor       string  `json:"textColor"`
	FontSize        float64 `json:"fontSize"`
	Opacity         float64 `json:"opacity"`
	BorderRadius    float64 `json:"borderRadius"`
	Padding         float64 `json:"padding"`
}

type ImagePopupStyle struct {
	BorderRadius float64 `json:"borderRadius"`
	BorderWidth  float64 `json:"borderWidth"`
	BorderColor  string  `json:"borderColor"`
	Opacity      float64 `json:"opacity"`
}

type NavigationStyle struct {
	RingColor   string  `json:"ringColor"`
	RingOpacity float64 `json:"ringOpacity"`
	LabelColor  string  `json:"labelColor"`
	ShowPreview bool    `json:"showPreview"`
}

type WeblinkStyle struct {
	Color        string  `json:"color"`
	Opacity      float64 `json:"opacity"`
	ShowPreview  bool    `json:"showPreview"`
	PreviewScale float64 `json:"previewScale"`
}

type AudioIconStyle struct {
	Color   string  `json:"color"`
	Size    float64 `json:"size"`
	Opacity float64 `json:"opacity"`
}
