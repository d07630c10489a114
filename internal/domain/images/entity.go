package images

import (
	"errors"
	"fmt"
	"path"
	"time"
)

var (
	// ErrStorage is returned when archiving a generated image fails.
	ErrStorage = errors.New("storage error")
	// ErrUnresolvableLocator means a locator cannot be turned into a public URL.
	ErrUnresolvableLocator = errors.New("unresolvable image locator")
	ErrNotSelected         = errors.New("no image selected")
	ErrNotFound            = errors.New("image not found")
)

// Item is one generated image as shown in the review list.
// URL is a presigned read locator and expires.
type Item struct {
	S3URL     string    `json:"s3Url"`
	FileName  string    `json:"fileName"`
	CreatedAt time.Time `json:"createdAt"`
	URL       string    `json:"url"`
}

// ObjectInfo is a single listing entry from the object store.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

const generationRoot = "ai_gen"

// GenerationKey builds ai_gen/{user}/{yyyy}/{MM}/{dd}/image_{ms}.jpg.
// Month and day are zero padded so DatePrefix matches.
func GenerationKey(userID string, at time.Time) string {
	return fmt.Sprintf("%simage_%d.jpg", DatePrefix(userID, at), at.UnixMilli())
}

// DatePrefix builds ai_gen/{user}/{yyyy}/{MM}/{dd}/ for listing. The day is
// taken in UTC, the same calendar GenerationKey writes under.
func DatePrefix(userID string, day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/", generationRoot, userID, day.Year(), int(day.Month()), day.Day())
}

// FileName is the last path segment of a key.
func FileName(key string) string {
	return path.Base(key)
}
