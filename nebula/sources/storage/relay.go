// Package storage uploads attachments to object storage and reads them back.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyAttachment = errors.New("empty attachment")

// Relay turns raw attachment bytes into a durable URL.
type Relay interface {
	Store(ctx context.Context, data []byte, mediaType string) (string, error)
}

var knownExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
}

func extensionFor(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	if ext, ok := knownExtensions[mt]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ObjectKey returns attachments/YYYY/MM/DD/<uuid><ext>.
func ObjectKey(now time.Time, mediaType string) string {
	d := now.UTC()
	return fmt.Sprintf("attachments/%04d/%02d/%02d/%s%s", d.Year(), int(d.Month()), d.Day(), uuid.New(), extensionFor(mediaType))
}

func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
