package service

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}

	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	u.input = in
	u.body = b
	return &manager.UploadOutput{}, nil
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func TestDecodeScreenshot(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngBytes)

	for _, in := range []string{raw, "data:image/png;base64," + raw} {
		b, mime, err := DecodeScreenshot(in, 1<<20)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, b)
		assert.Equal(t, "image/png", mime.String())
	}

	_, _, err := DecodeScreenshot("not base64!", 1<<20)
	assert.ErrorIs(t, err, ErrScreenshotInvalid)

	_, _, err = DecodeScreenshot(base64.StdEncoding.EncodeToString([]byte("plain text, not an image")), 1<<20)
	assert.ErrorIs(t, err, ErrScreenshotInvalid)

	_, _, err = DecodeScreenshot(raw, 8)
	assert.ErrorIs(t, err, ErrScreenshotTooLarge)
}

func TestScreenshotUpload(t *testing.T) {
	u := &fakeUploader{}
	s := NewScreenshotStore(u, "shots", "https://cdn.example.com/", 1<<20)

	url, err := s.Upload(context.Background(), "abc", base64.StdEncoding.EncodeToString(pngBytes))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/screenshots/abc.png", url)
	assert.Equal(t, "shots", *u.input.Bucket)
	assert.Equal(t, "screenshots/abc.png", *u.input.Key)
	assert.Equal(t, "image/png", *u.input.ContentType)
	assert.Equal(t, pngBytes, u.body)
}

func TestScreenshotUploadErrors(t *testing.T) {
	var disabled *ScreenshotStore
	_, err := disabled.Upload(context.Background(), "abc", "")
	assert.ErrorIs(t, err, ErrStorageDisabled)

	_, err = NewScreenshotStore(nil, "", "", 0).Upload(context.Background(), "abc", "")
	assert.ErrorIs(t, err, ErrStorageDisabled)

	boom := errors.New("s3 down")
	s := NewScreenshotStore(&fakeUploader{err: boom}, "shots", "https://cdn.example.com", 1<<20)
	_, err = s.Upload(context.Background(), "abc", base64.StdEncoding.EncodeToString(pngBytes))
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to upload screenshot"))
}
