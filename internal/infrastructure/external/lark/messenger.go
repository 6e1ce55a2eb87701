package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/port"
)

// Messenger implements port.Messenger with interactive cards so that every
// message can later be patched in place
type Messenger struct {
	client *Client
	logger *zap.Logger
}

// NewMessenger creates a new Lark messenger
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// Send implements port.Messenger
func (m *Messenger) Send(ctx context.Context, receiveID string, msg port.OutgoingMessage) (string, error) {
	if receiveID == "" {
		return "", fmt.Errorf("receiveID cannot be empty")
	}

	content, err := buildCard(msg)
	if err != nil {
		return "", err
	}
	return m.client.SendMessage(ctx, receiveID, "interactive", content)
}

// Edit implements port.Messenger
func (m *Messenger) Edit(ctx context.Context, messageID string, msg port.OutgoingMessage) error {
	if messageID == "" {
		return fmt.Errorf("messageID cannot be empty")
	}

	content, err := buildCard(msg)
	if err != nil {
		return err
	}
	return m.client.PatchCard(ctx, messageID, content)
}

// Delete implements port.Messenger. A message that is already gone is not an error.
func (m *Messenger) Delete(ctx context.Context, messageID string) error {
	if err := m.client.DeleteMessage(ctx, messageID); err != nil {
		if IsNotFound(err) {
			m.logger.Debug("Message already deleted", zap.String("message_id", messageID))
			return nil
		}
		return err
	}
	return nil
}

// Sender implements port.Sender for announcements
type Sender struct {
	client *Client
	logger *zap.Logger
}

// NewSender creates a new announcement sender
func NewSender(client *Client, logger *zap.Logger) *Sender {
	return &Sender{
		client: client,
		logger: logger,
	}
}

// Deliver implements port.Sender. The source message is forwarded when known
// so captions and formatting survive; otherwise text and image are sent as is.
func (s *Sender) Deliver(ctx context.Context, recipientID string, content port.Content) error {
	if content.SourceMessageID != "" {
		_, err := s.client.ForwardMessage(ctx, content.SourceMessageID, recipientID)
		return err
	}

	switch {
	case content.ImageKey != "" && content.Text != "":
		body, err := buildCard(port.OutgoingMessage{Text: content.Text, ImageKey: content.ImageKey})
		if err != nil {
			return err
		}
		_, err = s.client.SendMessage(ctx, recipientID, "interactive", body)
		return err

	case content.ImageKey != "":
		body, err := imageContent(content.ImageKey)
		if err != nil {
			return err
		}
		_, err = s.client.SendMessage(ctx, recipientID, "image", body)
		return err

	case content.Text != "":
		body, err := textContent(content.Text)
		if err != nil {
			return err
		}
		_, err = s.client.SendMessage(ctx, recipientID, "text", body)
		return err
	}

	return fmt.Errorf("announcement has no content")
}

var (
	_ port.Messenger = (*Messenger)(nil)
	_ port.Sender    = (*Sender)(nil)
)
