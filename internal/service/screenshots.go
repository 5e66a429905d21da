package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var (
	ErrStorageDisabled    = errors.New("screenshot uploads are not enabled")
	ErrScreenshotInvalid  = errors.New("screenshot must be a base64 encoded png, jpeg or webp image")
	ErrScreenshotTooLarge = errors.New("screenshot exceeds the size limit")
)

var allowedScreenshotTypes = []string{"image/png", "image/jpeg", "image/webp"}

// ObjectUploader is satisfied by *manager.Uploader
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type ScreenshotStore struct {
	uploader      ObjectUploader
	bucket        string
	publicBaseURL string
	maxSize       int64
}

// NewScreenshotStore creates a store writing into bucket. Objects are served
// from publicBaseURL (a CDN or the bucket's public domain). A nil uploader
// disables uploads
func NewScreenshotStore(uploader ObjectUploader, bucket, publicBaseURL string, maxSize int64) *ScreenshotStore {
	return &ScreenshotStore{
		uploader:      uploader,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize:       maxSize,
	}
}

func (s *ScreenshotStore) Enabled() bool {
	return s != nil && s.uploader != nil
}

// DecodeScreenshot accepts raw base64 or a data: URL and returns the image
// bytes with their detected mime type
func DecodeScreenshot(data string, maxSize int64) ([]byte, *mimetype.MIME, error) {
	if i := strings.Index(data, ";base64,"); strings.HasPrefix(data, "data:") && i > 0 {
		data = data[i+len(";base64,"):]
	}

	// base64 grows data by a third, reject obviously oversized input early
	if maxSize > 0 && int64(len(data)) > maxSize/3*4+4 {
		return nil, nil, ErrScreenshotTooLarge
	}

	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, nil, ErrScreenshotInvalid
	}

	if maxSize > 0 && int64(len(b)) > maxSize {
		return nil, nil, ErrScreenshotTooLarge
	}

	mime := mimetype.Detect(b)
	if !slices.Contains(allowedScreenshotTypes, mime.String()) {
		return nil, nil, ErrScreenshotInvalid
	}

	return b, mime, nil
}

// Upload stores a screenshot under screenshots/<id><ext> and returns its
// public URL
func (s *ScreenshotStore) Upload(ctx context.Context, id, data string) (string, error) {
	if !s.Enabled() {
		return "", ErrStorageDisabled
	}

	b, mime, err := DecodeScreenshot(data, s.maxSize)
	if err != nil {
		return "", err
	}

	key := "screenshots/" + id + mime.Extension()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String(mime.String()),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload screenshot, %w", err)
	}

	zap.L().Debug("Screenshot uploaded", zap.String("key", key), zap.Int("size", len(b)))

	return s.publicBaseURL + "/" + key, nil
}
