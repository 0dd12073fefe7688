package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Image is a decoded inline image.
type Image struct {
	MimeType string
	Data     []byte
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
	"image/heic": "heic",
}

// Ext returns the file extension for the mime type.
func (img *Image) Ext() string {
	if ext, ok := extensions[img.MimeType]; ok {
		return ext
	}
	return strings.TrimPrefix(img.MimeType, "image/")
}

// DecodeDataURL parses "data:image/<type>;base64,<payload>". maxBytes limits the
// decoded size, zero means no limit.
func DecodeDataURL(s string, maxBytes int) (*Image, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, &Error{Message: "expect a data URL"}
	}
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return nil, &Error{Message: "malformed data URL"}
	}
	header, payload := s[len("data:"):i], s[i+1:]
	if !strings.HasSuffix(header, ";base64") {
		return nil, &Error{Message: "data URL must be base64 encoded"}
	}
	mime := strings.ToLower(strings.TrimSuffix(header, ";base64"))
	if !strings.HasPrefix(mime, "image/") || len(mime) == len("image/") {
		return nil, &Error{Message: fmt.Sprintf("unsupported content type %q", mime)}
	}
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return nil, &Error{Message: fmt.Sprintf("image exceeds %d bytes", maxBytes)}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &Error{Message: "invalid base64 payload"}
	}
	if len(data) == 0 {
		return nil, &Error{Message: "empty image"}
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, &Error{Message: fmt.Sprintf("image exceeds %d bytes", maxBytes)}
	}
	return &Image{MimeType: mime, Data: data}, nil
}
