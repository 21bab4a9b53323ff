package scenegraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tour-service/internal/models"
)

func TestValidateHotspotPayload(t *testing.T) {
	audio := models.Stored("hotspot-1-audio", "a.mp3")
	image := models.Remote("https://example.com/a.png")

	tests := []struct {
		name    string
		typ     models.HotspotType
		payload HotspotPayload
		valid   bool
		msg     string
	}{
		{"text ok", models.HotspotText, HotspotPayload{Text: "Hello"}, true, ""},
		{"text blank", models.HotspotText, HotspotPayload{Text: "  "}, false, MsgTextRequired},
		{"audio ok", models.HotspotAudio, HotspotPayload{Audio: audio}, true, ""},
		{"audio missing", models.HotspotAudio, HotspotPayload{}, false, MsgAudioRequired},
		{"text-audio needs text", models.HotspotTextAudio, HotspotPayload{Audio: audio}, false, MsgTextRequired},
		{"text-audio needs audio", models.HotspotTextAudio, HotspotPayload{Text: "hi"}, false, MsgAudioRequired},
		{"text-audio ok", models.HotspotTextAudio, HotspotPayload{Text: "hi", Audio: audio}, true, ""},
		{"navigation ok", models.HotspotNavigation, HotspotPayload{NavigationTarget: "room2"}, true, ""},
		{"navigation missing", models.HotspotNavigation, HotspotPayload{}, false, MsgTargetMissing},
		{"weblink not a url", models.HotspotWeblink, HotspotPayload{WeblinkURL: "not-a-url"}, false, MsgURLInvalid},
		{"weblink ftp", models.HotspotWeblink, HotspotPayload{WeblinkURL: "ftp://example.com"}, false, MsgURLInvalid},
		{"weblink https", models.HotspotWeblink, HotspotPayload{WeblinkURL: "https://example.com"}, true, ""},
		{"weblink http", models.HotspotWeblink, HotspotPayload{WeblinkURL: "http://example.com"}, true, ""},
		{"image ok", models.HotspotImage, HotspotPayload{Image: image}, true, ""},
		{"image missing", models.HotspotImage, HotspotPayload{}, false, MsgImageRequired},
		{"image zero ref", models.HotspotImage, HotspotPayload{Image: &models.AssetRef{}}, false, MsgImageRequired},
		{"unknown type", models.HotspotType("video"), HotspotPayload{}, false, MsgUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateHotspotPayload(tt.typ, tt.payload)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.msg, res.Message)
		})
	}
}

func TestValidationResult_Err(t *testing.T) {
	assert.NoError(t, ValidationResult{Valid: true}.Err())

	err := ValidateHotspotPayload(models.HotspotWeblink, HotspotPayload{WeblinkURL: "x"}).Err()
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgURLInvalid, verr.Message)
}

func TestApplyPayload(t *testing.T) {
	h := &models.Hotspot{ID: 1, Type: models.HotspotText, Text: "old", PopupWidth: 3}
	ApplyPayload(h, models.HotspotWeblink, HotspotPayload{Text: "ignored", WeblinkURL: " https://example.com "})
	assert.Equal(t, models.HotspotWeblink, h.Type)
	assert.Empty(t, h.Text)
	assert.Zero(t, h.PopupWidth)
	assert.Equal(t, "https://example.com", h.WeblinkURL)

	img := models.Stored("hotspot-1-image", "a.png")
	ApplyPayload(h, models.HotspotImage, HotspotPayload{Image: img, ImageScale: ptr(20)})
	assert.Equal(t, MaxImageScale, *h.ImageScale)
	h.ImageAspectRatio = 0.5

	ApplyPayload(h, models.HotspotImage, PayloadOf(h).Merge(HotspotPayload{ImageScale: ptr(2)}))
	assert.Equal(t, 0.5, h.ImageAspectRatio, "same image keeps its cached ratio")
	assert.Equal(t, 2.0, *h.ImageScale)
}
