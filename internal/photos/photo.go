package photos

import "time"

// ProgressPhoto is the stored metadata of an uploaded photo. The image
// bytes themselves live in the blob store under FileName. ThumbnailURL
// is kept for API compatibility and is always null, thumbnails are not
// generated server side.
type ProgressPhoto struct {
	ID               int       `json:"id"`
	UserID           int       `json:"userId"`
	FileName         string    `json:"fileName"`
	OriginalFileName string    `json:"originalFileName"`
	MediaType        string    `json:"mediaType"`
	FileSize         int64     `json:"fileSize"`
	MimeType         string    `json:"mimeType"`
	BlobURL          string    `json:"blobUrl"`
	ThumbnailURL     *string   `json:"thumbnailUrl"`
	PhotoType        string    `json:"photoType"`
	Notes            string    `json:"notes,omitempty"`
	RecordedAt       time.Time `json:"recordedAt"`
	UploadedAt       time.Time `json:"uploadedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
