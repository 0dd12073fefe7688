// Package media stores inline images and returns their URLs.
package media

//go:generate mockgen -destination=mock/mock_media.go -package=mock github.com/OgheneDev/FlowChat/media Uploader,IS3Client

import (
	"context"
	"strings"
)

type Uploader interface {
	// Upload stores an inline image (a data URL) and returns its public URL.
	Upload(ctx context.Context, dataURL string) (string, error)
}

// Error reports an image the client sent that can not be stored.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "media: " + e.Message
}

// IsInline reports whether image is an inline payload rather than a URL.
func IsInline(image string) bool {
	return image != "" && !strings.HasPrefix(image, "http")
}
