package lark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/port"
)

// Lark response codes that signal throttling
const (
	codeFrequencyLimit = 99991400
	codeMessageRate    = 230020
)

const rateLimitResetHeader = "x-ogw-ratelimit-reset"

// Receive id types
const (
	ReceiveIDChat = "chat_id"
	ReceiveIDOpen = "open_id"
)

// APIError is a non-zero Lark response code
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error code=%d, msg=%s", e.Op, e.Code, e.Msg)
}

// IsNotFound reports whether the error says the message no longer exists
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 230011 || apiErr.Code == 231003
}

// Client performs the raw messaging calls of the IM API
type Client struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewClient creates a new IM client
func NewClient(sdk *SDKClient, logger *zap.Logger) *Client {
	return &Client{
		sdk:    sdk,
		logger: logger,
	}
}

// ReceiveIDType picks the id type from the id prefix. Chat ids start with "oc_".
func ReceiveIDType(receiveID string) string {
	if strings.HasPrefix(receiveID, "oc_") {
		return ReceiveIDChat
	}
	return ReceiveIDOpen
}

// SendMessage sends a message to a user or group
func (c *Client) SendMessage(ctx context.Context, receiveID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(ReceiveIDType(receiveID)).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		return "", c.fail("send message", receiveID, resp.Code, resp.Msg, resp.ApiResp)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	c.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))

	return messageID, nil
}

// PatchCard replaces the content of an interactive card
func (c *Client) PatchCard(ctx context.Context, messageID, content string) error {
	req := larkim.NewPatchMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewPatchMessageReqBodyBuilder().
			Content(content).
			Build()).
		Build()

	resp, err := c.sdk.GetClient().Im.Message.Patch(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to patch message: %w", err)
	}
	if !resp.Success() {
		return c.fail("patch message", messageID, resp.Code, resp.Msg, resp.ApiResp)
	}
	return nil
}

// DeleteMessage recalls a message sent by the bot
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.sdk.GetClient().Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if !resp.Success() {
		return c.fail("delete message", messageID, resp.Code, resp.Msg, resp.ApiResp)
	}
	return nil
}

// ForwardMessage forwards an existing message to a user or group
func (c *Client) ForwardMessage(ctx context.Context, messageID, receiveID string) (string, error) {
	req := larkim.NewForwardMessageReqBuilder().
		MessageId(messageID).
		ReceiveIdType(ReceiveIDType(receiveID)).
		Body(larkim.NewForwardMessageReqBodyBuilder().
			ReceiveId(receiveID).
			Build()).
		Build()

	resp, err := c.sdk.GetClient().Im.Message.Forward(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to forward message: %w", err)
	}
	if !resp.Success() {
		return "", c.fail("forward message", receiveID, resp.Code, resp.Msg, resp.ApiResp)
	}

	forwardedID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		forwardedID = *resp.Data.MessageId
	}
	return forwardedID, nil
}

func (c *Client) fail(op, target string, code int, msg string, apiResp *larkcore.ApiResp) error {
	var header http.Header
	if apiResp != nil {
		header = apiResp.Header
	}
	err := classify(op, code, msg, header)

	c.logger.Warn("Lark API returned failure",
		zap.String("op", op),
		zap.String("target", target),
		zap.Int("code", code),
		zap.String("msg", msg))
	return err
}

// classify maps throttling codes to port.RateLimitedError so the broadcaster can back off
func classify(op string, code int, msg string, header http.Header) error {
	apiErr := &APIError{Op: op, Code: code, Msg: msg}
	if code != codeFrequencyLimit && code != codeMessageRate {
		return apiErr
	}
	return &port.RateLimitedError{RetryAfter: retryAfter(header), Err: apiErr}
}

// retryAfter reads the reset hint in seconds. Zero lets the caller apply its default.
func retryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get(rateLimitResetHeader))
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
