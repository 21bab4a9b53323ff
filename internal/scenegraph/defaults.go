package scenegraph

import "tour-service/internal/models"

// NewDocument returns the document created on first run: one empty image
// scene that is also the current scene.
func NewDocument(defaultSceneID string) *models.SceneDocument {
	return &models.SceneDocument{
		Scenes: map[string]*models.Scene{
			defaultSceneID: NewScene(DefaultSceneName),
		},
		CurrentScene: defaultSceneID,
	}
}

const DefaultSceneName = "Room 1"

// NewScene returns an empty image scene.
func NewScene(name string) *models.Scene {
	return &models.Scene{
		Name:        name,
		Kind:        models.MediaImage,
		VideoVolume: DefaultVolume,
		Hotspots:    []*models.Hotspot{},
	}
}

// DefaultStyles is the style configuration of a new tour.
func DefaultStyles() models.StyleConfig {
	return models.StyleConfig{
		Hotspot: models.HotspotStyle{
			Size:        0.3,
			Color:       "#4caf50",
			Opacity:     0.9,
			BorderWidth: 0.02,
			BorderColor: "#ffffff",
		},
		TextPopup: models.TextPopupStyle{
			BackgroundColor: "#333333",
			TextColor:       "#ffffff",
			FontSize:        1,
			Opacity:         0.95,
			BorderRadius:    0.05,
			Padding:         0.2,
		},
		ImagePopup: models.ImagePopupStyle{
			BorderRadius: 0.05,
			BorderWidth:  0.02,
			BorderColor:  "#ffffff",
			Opacity:      1,
		},
		Navigation: models.NavigationStyle{
			RingColor:   "#2196f3",
			RingOpacity: 0.8,
			LabelColor:  "#ffffff",
			ShowPreview: true,
		},
		Weblink: models.WeblinkStyle{
			Color:        "#ff9800",
			Opacity:      0.9,
			ShowPreview:  true,
			PreviewScale: 1,
		},
		AudioIcon: models.AudioIconStyle{
			Color:   "#e91e63",
			Size:    0.3,
			Opacity: 0.9,
		},
	}
}
