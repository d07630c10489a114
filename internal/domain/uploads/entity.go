package uploads

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidStatus = errors.New("invalid document status")
	ErrForeignObject = errors.New("object is outside the user's upload area")
)

// UploadPrefix is the key prefix every object of the user lives under.
func UploadPrefix(userID string) string { return "uploads/" + userID + "/" }

// DocumentID identifier type
type DocumentID string

// Status enum
type Status string

const (
	StatusPendingUpload Status = "pending_upload"
	StatusUploadingToS3 Status = "uploading_to_s3"
	StatusUploadedToS3  Status = "uploaded_to_s3"
	StatusUploadFailed  Status = "upload_failed"

	// chunking and embedding of the document text
	StatusProcessing       Status = "processing"
	StatusProcessed        Status = "processed"
	StatusProcessingFailed Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingUpload, StatusUploadingToS3, StatusUploadedToS3, StatusUploadFailed,
		StatusProcessing, StatusProcessed, StatusProcessingFailed:
		return true
	}
	return false
}

// Visibility enum
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Document is an uploaded file tracked for the user.
type Document struct {
	ID         DocumentID     `json:"document_id"`
	UserID     string         `json:"user_id"`
	FileName   string         `json:"file_name"`
	Status     Status         `json:"status"`
	S3URL      string         `json:"s3_url,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Visibility Visibility     `json:"visibility"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Patch holds the optional fields of an update.
type Patch struct {
	Status *Status
	S3URL  *string
}

func (p Patch) Empty() bool { return p.Status == nil && p.S3URL == nil }
