package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MediaKind is the panorama type of a scene.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// HotspotType tags the payload a hotspot carries.
type HotspotType string

const (
	HotspotText       HotspotType = "text"
	HotspotAudio      HotspotType = "audio"
	HotspotTextAudio  HotspotType = "text-audio"
	HotspotNavigation HotspotType = "navigation"
	HotspotWeblink    HotspotType = "weblink"
	HotspotImage      HotspotType = "image"
)

// HotspotTypes lists every known hotspot type.
var HotspotTypes = []HotspotType{
	HotspotText, HotspotAudio, HotspotTextAudio, HotspotNavigation, HotspotWeblink, HotspotImage,
}

func (t HotspotType) Valid() bool {
	for _, known := range HotspotTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t HotspotType) HasText() bool  { return t == HotspotText || t == HotspotTextAudio }
func (t HotspotType) HasAudio() bool { return t == HotspotAudio || t == HotspotTextAudio }

// SceneDocument is the persisted root of a tour.
type SceneDocument struct {
	Scenes       map[string]*Scene `json:"scenes"`
	CurrentScene string            `json:"currentScene"`
	// NextHotspotID is the highest identifier handed out so far.
	NextHotspotID int `json:"nextHotspotId,omitempty"`
}

// Scene is one panorama plus its hotspots.
type Scene struct {
	Name          string       `json:"name"`
	Kind          MediaKind    `json:"type"`
	Image         *AssetRef    `json:"image,omitempty"`
	Video         *AssetRef    `json:"videoSrc,omitempty"`
	VideoVolume   float64      `json:"videoVolume,omitempty"`
	Hotspots      []*Hotspot   `json:"hotspots"`
	StartingPoint *Orientation `json:"startingPoint,omitempty"`
	GlobalSound   *GlobalSound `json:"globalSound,omitempty"`
}

// Media returns the authoritative media ref for the scene's kind.
func (s *Scene) Media() *AssetRef {
	if s.Kind == MediaVideo {
		return s.Video
	}
	return s.Image
}

// FindHotspot returns the hotspot with the given id, or nil.
func (s *Scene) FindHotspot(id int) *Hotspot {
	for _, h := range s.Hotspots {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// Orientation is a camera starting orientation in degrees.
type Orientation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// GlobalSound is ambient audio that loops while a scene is shown.
type GlobalSound struct {
	Audio   *AssetRef `json:"audio,omitempty"`
	Volume  float64   `json:"volume"`
	Enabled bool      `json:"enabled"`
}

// Vec3 is a world position. It also decodes the "x y z" string form used by
// older documents.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v *Vec3) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		fields := strings.Fields(s)
		if len(fields) != 3 {
			return fmt.Errorf("position %q: want three components", s)
		}
		var out [3]float64
		for i, f := range fields {
			n, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("position %q: %w", s, err)
			}
			out[i] = n
		}
		*v = Vec3{X: out[0], Y: out[1], Z: out[2]}
		return nil
	}
	type plain Vec3
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*v = Vec3(p)
	return nil
}

func (v Vec3) String() string {
	return fmt.Sprintf("%g %g %g", v.X, v.Y, v.Z)
}

// Hotspot is an interactive point anchored in a scene.
type Hotspot struct {
	ID       int         `json:"id"`
	Type     HotspotType `json:"type"`
	Position Vec3        `json:"position"`

	Text        string  `json:"text,omitempty"`
	PopupWidth  float64 `json:"popupWidth,omitempty"`
	PopupHeight float64 `json:"popupHeight,omitempty"`

	Audio *AssetRef `json:"audio,omitempty"`

	NavigationTarget string `json:"navigationTarget,omitempty"`

	WeblinkURL     string    `json:"weblinkUrl,omitempty"`
	WeblinkTitle   string    `json:"weblinkTitle,omitempty"`
	WeblinkPreview *AssetRef `json:"weblinkPreview,omitempty"`

	Image            *AssetRef `json:"image,omitempty"`
	ImageScale       *float64  `json:"imageScale,omitempty"`
	ImageAspectRatio float64   `json:"imageAspectRatio,omitempty"`

	// written by older editors; folded into ImageScale on load
	LegacyImageWidth  *float64 `json:"imageWidth,omitempty"`
	LegacyImageHeight *float64 `json:"imageHeight,omitempty"`
}

// Clone returns a deep copy of the hotspot.
func (h *Hotspot) Clone() *Hotspot {
	if h == nil {
		return nil
	}
	c := *h
	c.Audio = h.Audio.Clone()
	c.WeblinkPreview = h.WeblinkPreview.Clone()
	c.Image = h.Image.Clone()
	c.ImageScale = cloneFloat(h.ImageScale)
	c.LegacyImageWidth = cloneFloat(h.LegacyImageWidth)
	c.LegacyImageHeight = cloneFloat(h.LegacyImageHeight)
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := *s
	c.Image = s.Image.Clone()
	c.Video = s.Video.Clone()
	c.Hotspots = make([]*Hotspot, 0, len(s.Hotspots))
	for _, h := range s.Hotspots {
		c.Hotspots = append(c.Hotspots, h.Clone())
	}
	if s.StartingPoint != nil {
		sp := *s.StartingPoint
		c.StartingPoint = &sp
	}
	if s.GlobalSound != nil {
		gs := *s.GlobalSound
		gs.Audio = s.GlobalSound.Audio.Clone()
		c.GlobalSound = &gs
	}
	return &c
}

// Clone returns a deep copy of the document.
func (d *SceneDocument) Clone() *SceneDocument {
	if d == nil {
		return nil
	}
	c := &SceneDocument{
		Scenes:        make(map[string]*Scene, len(d.Scenes)),
		CurrentScene:  d.CurrentScene,
		NextHotspotID: d.NextHotspotID,
	}
	for id, s := range d.Scenes {
		c.Scenes[id] = s.Clone()
	}
	return c
}

// SceneIDs returns the scene identifiers in a stable order.
func (d *SceneDocument) SceneIDs() []string {
	ids := make([]string, 0, len(d.Scenes))
	for id := range d.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasScene reports whether id is a key of the scene mapping.
func (d *SceneDocument) HasScene(id string) bool {
	_, ok := d.Scenes[id]
	return ok
}

// HotspotCount returns the number of hotspots across all scenes.
func (d *SceneDocument) HotspotCount() int {
	n := 0
	for _, s := range d.Scenes {
		n += len(s.Hotspots)
	}
	return n
}
