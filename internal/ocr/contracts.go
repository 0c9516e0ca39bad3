package ocr

import "context"

// DocumentStore is the object-storage collaborator holding raw uploads.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// TextDetector is the OCR collaborator. DetectText runs text detection for
// a previously stored document and returns its text lines in reading order.
type TextDetector interface {
	DetectText(ctx context.Context, key string) ([]string, error)
}
