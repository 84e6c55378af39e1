package models

import "time"

type ImageStatus string

const (
	ImageStatusPending ImageStatus = "pending"
	ImageStatusStored  ImageStatus = "stored"
)

// Valid reports whether s is a status the images table accepts.
func (s ImageStatus) Valid() bool {
	return s == ImageStatusPending || s == ImageStatusStored
}

type Image struct {
	ID               string      `json:"id"`
	BucketKey        string      `json:"bucket_key"`
	ShortID          *string     `json:"short_id"`
	OriginalFilename string      `json:"original_filename"`
	Mime             string      `json:"mime"`
	Bytes            int64       `json:"bytes"`
	HashSHA256       *string     `json:"hash_sha256"`
	Status           ImageStatus `json:"status"`
	ExifJSON         *string     `json:"exif_json,omitempty"`
	TakenAt          *string     `json:"taken_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
