package models

import "time"

// Namespace is a logical partition of the Blob Store.
type Namespace string

const (
	NamespaceImages Namespace = "images"
	NamespaceAudio  Namespace = "audio"
	NamespaceVideo  Namespace = "video"
)

// Namespaces lists every partition the Blob Store guarantees to exist.
var Namespaces = []Namespace{NamespaceImages, NamespaceAudio, NamespaceVideo}

func (n Namespace) Valid() bool {
	return n == NamespaceImages || n == NamespaceAudio || n == NamespaceVideo
}

// BundleDir is the directory holding this namespace's files in an export bundle.
func (n Namespace) BundleDir() string {
	if n == NamespaceVideo {
		return "videos"
	}
	return string(n)
}

// BlobRecord is one binary asset held by the Blob Store.
type BlobRecord struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	MimeType string    `json:"type"`
	Size     int64     `json:"size"`
	Updated  time.Time `json:"updated"`
	Blob     []byte    `json:"-"`
}

// BlobMeta describes bytes handed to the Blob Store.
type BlobMeta struct {
	Name     string
	MimeType string
}
