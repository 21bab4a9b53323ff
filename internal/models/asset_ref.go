package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// AssetKind tags which representation of an asset is authoritative.
type AssetKind string

const (
	AssetEmbedded  AssetKind = "embedded"
	AssetRemote    AssetKind = "remote"
	AssetStored    AssetKind = "stored"
	AssetTransient AssetKind = "transient"
	AssetBundled   AssetKind = "bundled"
)

// TransientPrefix marks handles minted by the in-process handle registry.
const TransientPrefix = "blob:"

// AssetRef points at a binary asset. Exactly one representation is
// authoritative; a transient ref may additionally remember the storage key
// it was resolved from so it can be turned back into a stored ref.
type AssetRef struct {
	kind     AssetKind
	data     []byte
	mimeType string
	url      string
	key      string
	name     string
	handle   string
	path     string
}

// Embedded returns a ref carrying its bytes inline.
func Embedded(data []byte, mimeType string) *AssetRef {
	return &AssetRef{kind: AssetEmbedded, data: data, mimeType: mimeType}
}

// Remote returns a ref to an http(s) URL.
func Remote(url string) *AssetRef {
	return &AssetRef{kind: AssetRemote, url: url}
}

// Stored returns a ref to a Blob Store record.
func Stored(key, name string) *AssetRef {
	return &AssetRef{kind: AssetStored, key: key, name: name}
}

// Transient returns a ref to a process-lifetime handle. key may be empty
// when the asset never reached the Blob Store.
func Transient(handle, key, name string) *AssetRef {
	return &AssetRef{kind: AssetTransient, handle: handle, key: key, name: name}
}

// Bundled returns a ref to a file inside an export bundle.
func Bundled(path string) *AssetRef {
	return &AssetRef{kind: AssetBundled, path: path}
}

func (r *AssetRef) Kind() AssetKind {
	if r == nil {
		return ""
	}
	return r.kind
}

// The accessors below return zero values on a nil ref.

func (r *AssetRef) Data() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

func (r *AssetRef) MimeType() string {
	if r == nil {
		return ""
	}
	return r.mimeType
}

func (r *AssetRef) URL() string {
	if r == nil {
		return ""
	}
	return r.url
}

func (r *AssetRef) Key() string {
	if r == nil {
		return ""
	}
	return r.key
}

func (r *AssetRef) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

func (r *AssetRef) Handle() string {
	if r == nil {
		return ""
	}
	return r.handle
}

func (r *AssetRef) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func (r *AssetRef) HasStorageKey() bool { return r != nil && r.key != "" }

// IsZero reports whether r carries no representation at all.
func (r *AssetRef) IsZero() bool { return r == nil || r.kind == "" }

// Sanitized returns the form of r that may be persisted: a transient ref
// with a known storage key collapses to a stored ref, and a transient ref
// without one has nothing worth keeping. Every other ref is returned
// unchanged.
func (r *AssetRef) Sanitized() *AssetRef {
	if r == nil || r.kind == "" {
		return nil
	}
	if r.kind == AssetTransient {
		if r.key == "" {
			return nil
		}
		return Stored(r.key, r.name)
	}
	return r
}

// Clone returns a deep copy.
func (r *AssetRef) Clone() *AssetRef {
	if r == nil {
		return nil
	}
	c := *r
	if r.data != nil {
		c.data = append([]byte(nil), r.data...)
	}
	return &c
}

// Equal reports whether two refs carry the same representation.
func (r *AssetRef) Equal(o *AssetRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.kind == o.kind && r.url == o.url && r.key == o.key && r.name == o.name &&
		r.handle == o.handle && r.path == o.path && r.mimeType == o.mimeType && bytes.Equal(r.data, o.data)
}

func (r *AssetRef) String() string {
	if r == nil {
		return "<none>"
	}
	switch r.kind {
	case AssetEmbedded:
		return fmt.Sprintf("embedded(%s, %d bytes)", r.mimeType, len(r.data))
	case AssetRemote:
		return "remote(" + r.url + ")"
	case AssetStored:
		return "stored(" + r.key + ")"
	case AssetTransient:
		return "transient(" + r.handle + ", " + r.key + ")"
	case AssetBundled:
		return "bundled(" + r.path + ")"
	}
	return "<invalid>"
}

type assetRefJSON struct {
	Kind     AssetKind `json:"kind"`
	Data     string    `json:"data,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	URL      string    `json:"url,omitempty"`
	Key      string    `json:"key,omitempty"`
	Name     string    `json:"name,omitempty"`
	Handle   string    `json:"handle,omitempty"`
	Path     string    `json:"path,omitempty"`
}

func (r *AssetRef) MarshalJSON() ([]byte, error) {
	if r == nil || r.kind == "" {
		return []byte("null"), nil
	}
	out := assetRefJSON{Kind: r.kind, Name: r.name}
	switch r.kind {
	case AssetEmbedded:
		out.Data = base64.StdEncoding.EncodeToString(r.data)
		out.MimeType = r.mimeType
	case AssetRemote:
		out.URL = r.url
	case AssetStored:
		out.Key = r.key
	case AssetTransient:
		out.Key = r.key
		out.Handle = r.handle
	case AssetBundled:
		out.Path = r.path
	default:
		return nil, fmt.Errorf("unknown asset kind %q", r.kind)
	}
	return json.Marshal(out)
}

func (r *AssetRef) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*r = AssetRef{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		ref, err := ParseLegacyAssetString(s)
		if err != nil {
			return err
		}
		*r = *ref
		return nil
	}

	var in assetRefJSON
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return err
	}
	switch in.Kind {
	case AssetEmbedded:
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return fmt.Errorf("embedded asset data: %w", err)
		}
		*r = AssetRef{kind: AssetEmbedded, data: data, mimeType: in.MimeType, name: in.Name}
	case AssetRemote:
		*r = AssetRef{kind: AssetRemote, url: in.URL, name: in.Name}
	case AssetStored:
		*r = AssetRef{kind: AssetStored, key: in.Key, name: in.Name}
	case AssetTransient:
		// a handle read back from JSON belongs to another process; keep the key
		if in.Key != "" {
			*r = AssetRef{kind: AssetStored, key: in.Key, name: in.Name}
		} else {
			*r = AssetRef{kind: AssetTransient, handle: in.Handle, name: in.Name}
		}
	case AssetBundled:
		*r = AssetRef{kind: AssetBundled, path: in.Path, name: in.Name}
	default:
		return fmt.Errorf("unknown asset kind %q", in.Kind)
	}
	return nil
}

// ParseLegacyAssetString maps the string-typed asset fields of older
// documents and hand-edited bundles onto a ref.
func ParseLegacyAssetString(s string) (*AssetRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return &AssetRef{}, nil
	case strings.HasPrefix(s, "data:"):
		return parseDataURL(s)
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return Remote(s), nil
	case strings.HasPrefix(s, TransientPrefix):
		return Transient(s, "", ""), nil
	default:
		return Bundled(strings.TrimPrefix(s, "./")), nil
	}
}

func parseDataURL(s string) (*AssetRef, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URL")
	}
	meta := s[len("data:"):comma]
	payload := s[comma+1:]
	mimeType := meta
	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		mimeType = strings.TrimSuffix(meta, ";base64")
		isBase64 = true
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data URL payload: %w", err)
		}
		return Embedded(data, mimeType), nil
	}
	return Embedded([]byte(payload), mimeType), nil
}
