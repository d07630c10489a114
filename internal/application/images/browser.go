package images

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	domain "github.com/bryanwahyu/mlr-studio/internal/domain/images"
)

// Browser lists a user's generated images per day and tracks the selection.
// Presigned URLs are minted on every listing, never cached across calls.
type Browser struct {
	Store domain.ObjectStore
	Clock application.Clock
	TTL   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	date     time.Time
	items    []domain.Item
	selected string
}

// Listing is the response shape of a day listing.
type Listing struct {
	Images []domain.Item `json:"images"`
	Total  int           `json:"total"`
}

// ListForDate lists images under the day prefix, newest first.
// Entries that cannot be presigned are dropped.
func (b *Browser) ListForDate(ctx context.Context, userID string, date time.Time) ([]domain.Item, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", application.ErrInvalidInput)
	}
	objects, err := b.Store.List(ctx, domain.DatePrefix(userID, date))
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", domain.ErrStorage, err)
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	ttl := b.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	items := make([]domain.Item, 0, len(objects))
	for _, o := range objects {
		if o.Key == "" {
			continue
		}
		url, err := b.Store.PresignGet(ctx, o.Key, ttl)
		if err != nil || url == "" {
			log.Printf("event=image_presign_skipped user=%s key=%s err=%v", userID, o.Key, err)
			continue
		}
		items = append(items, domain.Item{
			S3URL:     domain.CanonicalURL(b.Store.Bucket(), o.Key),
			FileName:  domain.FileName(o.Key),
			CreatedAt: o.LastModified,
			URL:       url,
		})
	}

	b.remember(userID, date, items)
	return items, nil
}

// Select marks one item of the current listing.
func (b *Browser) Select(userID, fileName string) (domain.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[userID]
	if s == nil {
		return domain.Item{}, domain.ErrNotFound
	}
	for _, it := range s.items {
		if it.FileName == fileName {
			s.selected = fileName
			return it, nil
		}
	}
	return domain.Item{}, fmt.Errorf("%w: %s", domain.ErrNotFound, fileName)
}

// Selected returns the currently selected item.
func (b *Browser) Selected(userID string) (domain.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[userID]
	if s == nil || s.selected == "" {
		return domain.Item{}, domain.ErrNotSelected
	}
	for _, it := range s.items {
		if it.FileName == s.selected {
			return it, nil
		}
	}
	return domain.Item{}, domain.ErrNotSelected
}

// Refresh re-lists the last viewed day (today when nothing was listed yet).
func (b *Browser) Refresh(ctx context.Context, userID string) ([]domain.Item, error) {
	b.mu.Lock()
	var date time.Time
	if s := b.sessions[userID]; s != nil {
		date = s.date
	}
	b.mu.Unlock()
	if date.IsZero() {
		date = b.now()
	}
	return b.ListForDate(ctx, userID, date)
}

// remember keeps the selection when it is still listed, else picks the newest.
func (b *Browser) remember(userID string, date time.Time, items []domain.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions == nil {
		b.sessions = make(map[string]*session)
	}
	prev := b.sessions[userID]
	s := &session{date: date, items: items}
	if prev != nil && prev.selected != "" {
		for _, it := range items {
			if it.FileName == prev.selected {
				s.selected = prev.selected
				break
			}
		}
	}
	if s.selected == "" && len(items) > 0 {
		s.selected = items[0].FileName
	}
	b.sessions[userID] = s
}

func (b *Browser) now() time.Time {
	if b.Clock == nil {
		return time.Now()
	}
	return b.Clock.Now()
}
