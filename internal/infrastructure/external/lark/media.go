package lark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// maxImageSize bounds a single downloaded image
const maxImageSize = 10 << 20

// MediaImporter turns an image received in a user message into an image key
// the bot itself may send. Keys from incoming messages are owned by the sender.
type MediaImporter struct {
	sdk           *SDKClient
	logger        *zap.Logger
	retryAttempts int
	backoff       time.Duration
}

// NewMediaImporter creates a new MediaImporter
func NewMediaImporter(sdk *SDKClient, logger *zap.Logger) *MediaImporter {
	return &MediaImporter{
		sdk:           sdk,
		logger:        logger,
		retryAttempts: 3,
		backoff:       time.Second,
	}
}

// ImportImage downloads the image resource of a message and uploads it again
func (m *MediaImporter) ImportImage(ctx context.Context, messageID, fileKey string) (string, error) {
	data, err := m.downloadWithRetry(ctx, messageID, fileKey)
	if err != nil {
		return "", err
	}
	return m.upload(ctx, data)
}

func (m *MediaImporter) downloadWithRetry(ctx context.Context, messageID, fileKey string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= m.retryAttempts; attempt++ {
		data, err := m.download(ctx, messageID, fileKey)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			m.logger.Info("Permanent error, not retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}

		if attempt < m.retryAttempts {
			backoff := time.Duration(1<<uint(attempt-1)) * m.backoff
			m.logger.Info("Retrying image download",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	m.logger.Error("Failed to download image after retries",
		zap.String("message_id", messageID),
		zap.Int("max_attempts", m.retryAttempts),
		zap.Error(lastErr))
	return nil, fmt.Errorf("download failed after %d attempts: %w", m.retryAttempts, lastErr)
}

func (m *MediaImporter) download(ctx context.Context, messageID, fileKey string) ([]byte, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(fileKey).
		Type("image").
		Build()

	resp, err := m.sdk.GetClient().Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if !resp.Success() {
		return nil, &APIError{Op: "download image", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.File == nil {
		return nil, fmt.Errorf("download returned no file")
	}

	data, err := io.ReadAll(io.LimitReader(resp.File, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, &APIError{Op: "download image", Msg: "image exceeds size limit"}
	}
	return data, nil
}

func (m *MediaImporter) upload(ctx context.Context, data []byte) (string, error) {
	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType("message").
			Image(bytes.NewReader(data)).
			Build()).
		Build()

	resp, err := m.sdk.GetClient().Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Op: "upload image", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.ImageKey == nil {
		return "", fmt.Errorf("upload returned no image key")
	}

	m.logger.Debug("Image imported", zap.Int("size", len(data)))
	return *resp.Data.ImageKey, nil
}
