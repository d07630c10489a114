package images

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const internalScheme = "s3://"

// bucket.s3.amazonaws.com, bucket.s3.region.amazonaws.com, bucket.s3-region.amazonaws.com
var virtualHostRe = regexp.MustCompile(`^(.+?)\.s3(?:[.-][a-z0-9-]+)*\.amazonaws\.com$`)

// Locator is a parsed object reference.
type Locator struct {
	Bucket string
	Key    string
}

// CanonicalURL returns s3://bucket/key.
func CanonicalURL(bucket, key string) string {
	return internalScheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseLocator accepts s3://bucket/key, virtual-hosted
// https://bucket.s3.region.amazonaws.com/key and path-style
// http(s)://host/bucket/key. Query strings (presign params) are ignored.
func ParseLocator(raw string) (Locator, error) {
	if strings.HasPrefix(raw, internalScheme) {
		rest := strings.TrimPrefix(raw, internalScheme)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Locator{}, fmt.Errorf("%w: %s", ErrUnresolvableLocator, raw)
		}
		return Locator{Bucket: bucket, Key: key}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Locator{}, fmt.Errorf("%w: %s", ErrUnresolvableLocator, raw)
	}
	p := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	if m := virtualHostRe.FindStringSubmatch(strings.ToLower(host)); m != nil {
		if p == "" {
			return Locator{}, fmt.Errorf("%w: %s", ErrUnresolvableLocator, raw)
		}
		return Locator{Bucket: m[1], Key: p}, nil
	}
	// path-style (minio)
	bucket, key, ok := strings.Cut(p, "/")
	if !ok || bucket == "" || key == "" {
		return Locator{}, fmt.Errorf("%w: %s", ErrUnresolvableLocator, raw)
	}
	return Locator{Bucket: bucket, Key: key}, nil
}

// PublicResolver turns internal locators of one bucket into https URLs
// the vision model can fetch.
type PublicResolver struct {
	Bucket  string
	BaseURL string
}

func (p PublicResolver) base() string {
	if p.BaseURL != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com", p.Bucket)
}

// Resolve leaves http(s) and data URLs untouched.
func (p PublicResolver) Resolve(locator string) (string, error) {
	switch {
	case strings.HasPrefix(locator, "https://"), strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "data:"):
		return locator, nil
	case p.Bucket != "" && strings.HasPrefix(locator, internalScheme+p.Bucket+"/"):
		key := strings.TrimPrefix(locator, internalScheme+p.Bucket+"/")
		if key == "" {
			return "", fmt.Errorf("%w: %s", ErrUnresolvableLocator, locator)
		}
		return p.base() + "/" + key, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnresolvableLocator, locator)
}
