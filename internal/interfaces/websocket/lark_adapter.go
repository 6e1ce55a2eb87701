// Package websocket receives Lark events over the long connection and turns
// them into bot updates.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"

	larkinfra "github.com/garyjia/campus-assistant/internal/infrastructure/external/lark"
	"github.com/garyjia/campus-assistant/internal/interfaces/bot"
)

// Lark event types handled by the adapter
const (
	EventMessageReceive = "im.message.receive_v1"
	EventCardAction     = "card.action.trigger"
)

// UpdateSink accepts normalized updates, typically the bot router
type UpdateSink interface {
	Submit(ctx context.Context, u bot.Update)
}

// ImageImporter copies an image attached to a message into reusable storage
type ImageImporter interface {
	ImportImage(ctx context.Context, messageID, fileKey string) (string, error)
}

// LarkAdapterConfig holds the app credentials for the long connection
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
}

// LarkAdapter wraps the Lark WebSocket client and forwards chat messages and
// card button presses to the sink.
type LarkAdapter struct {
	appID     string
	appSecret string
	sink      UpdateSink
	images    ImageImporter
	logger    *zap.Logger

	mu      sync.RWMutex
	started bool
	runCtx  context.Context
}

// NewLarkAdapter creates a new Lark WebSocket adapter. images may be nil, in
// which case attached images are dropped.
func NewLarkAdapter(cfg LarkAdapterConfig, sink UpdateSink, images ImageImporter, logger *zap.Logger) *LarkAdapter {
	return &LarkAdapter{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		sink:      sink,
		images:    images,
		logger:    logger,
		runCtx:    context.Background(),
	}
}

// EventDispatcher builds the SDK dispatcher with the adapter's handlers registered
func (a *LarkAdapter) EventDispatcher() *larkdispatcher.EventDispatcher {
	// Verification token and encrypt key are not used over the long connection
	d := larkdispatcher.NewEventDispatcher("", "")
	d.OnCustomizedEvent(EventMessageReceive, a.handleMessage)
	d.OnCustomizedEvent(EventCardAction, a.handleCardAction)
	return d
}

// Start opens the long connection. It blocks until ctx is cancelled or the client fails.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}
	a.started = true
	a.runCtx = ctx
	a.mu.Unlock()

	client := larkws.NewClient(a.appID, a.appSecret, larkws.WithEventHandler(a.EventDispatcher()))

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.appID))
	if err := client.Start(ctx); err != nil {
		a.logger.Error("Lark WebSocket client error", zap.Error(err))
		return fmt.Errorf("websocket client error: %w", err)
	}
	return nil
}

// Stop marks the adapter stopped. The connection itself closes with the Start context.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// IsRunning returns whether the adapter is currently running
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

func (a *LarkAdapter) baseContext() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runCtx
}

type messageEvent struct {
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
			SenderType string `json:"sender_type"`
		} `json:"sender"`
		Message struct {
			MessageID   string `json:"message_id"`
			ChatID      string `json:"chat_id"`
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

type cardActionEvent struct {
	Event struct {
		Operator struct {
			OpenID string `json:"open_id"`
		} `json:"operator"`
		Action struct {
			Value map[string]interface{} `json:"value"`
		} `json:"action"`
		Context struct {
			OpenMessageID string `json:"open_message_id"`
			OpenChatID    string `json:"open_chat_id"`
		} `json:"context"`
	} `json:"event"`
}

// postContent is the rich text message body
type postContent struct {
	Title   string `json:"title"`
	Content [][]struct {
		Tag      string `json:"tag"`
		Text     string `json:"text"`
		ImageKey string `json:"image_key"`
	} `json:"content"`
}

// ConversationID keys a user inside a chat
func ConversationID(chatID, openID string) string {
	return chatID + ":" + openID
}

// parseMessage extracts the update and the keys of attached images
func parseMessage(body []byte) (bot.Update, []string, error) {
	var evt messageEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return bot.Update{}, nil, fmt.Errorf("failed to parse message event: %w", err)
	}

	msg := evt.Event.Message
	openID := evt.Event.Sender.SenderID.OpenID
	if msg.ChatID == "" || openID == "" {
		return bot.Update{}, nil, fmt.Errorf("message event without chat or sender")
	}

	u := bot.Update{
		ConversationID: ConversationID(msg.ChatID, openID),
		ChatID:         msg.ChatID,
		UserID:         openID,
		MessageID:      msg.MessageID,
	}

	var images []string
	switch msg.MessageType {
	case "text":
		var c struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(msg.Content), &c); err != nil {
			return bot.Update{}, nil, fmt.Errorf("failed to parse text content: %w", err)
		}
		u.Text = c.Text

	case "image":
		var c struct {
			ImageKey string `json:"image_key"`
		}
		if err := json.Unmarshal([]byte(msg.Content), &c); err != nil {
			return bot.Update{}, nil, fmt.Errorf("failed to parse image content: %w", err)
		}
		images = append(images, c.ImageKey)

	case "post":
		var c postContent
		if err := json.Unmarshal([]byte(msg.Content), &c); err != nil {
			return bot.Update{}, nil, fmt.Errorf("failed to parse post content: %w", err)
		}
		var lines []string
		if c.Title != "" {
			lines = append(lines, c.Title)
		}
		for _, paragraph := range c.Content {
			var line strings.Builder
			for _, el := range paragraph {
				switch el.Tag {
				case "text", "a":
					line.WriteString(el.Text)
				case "img":
					images = append(images, el.ImageKey)
				}
			}
			if line.Len() > 0 {
				lines = append(lines, line.String())
			}
		}
		u.Text = strings.Join(lines, "\n")
	}

	return u, images, nil
}

// parseCardAction extracts the update for a card button press
func parseCardAction(body []byte) (bot.Update, error) {
	var evt cardActionEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return bot.Update{}, fmt.Errorf("failed to parse card action: %w", err)
	}

	payload, _ := evt.Event.Action.Value[larkinfra.CallbackKey].(string)
	chatID := evt.Event.Context.OpenChatID
	openID := evt.Event.Operator.OpenID
	if payload == "" || chatID == "" || openID == "" {
		return bot.Update{}, fmt.Errorf("card action without payload, chat or operator")
	}

	return bot.Update{
		ConversationID: ConversationID(chatID, openID),
		ChatID:         chatID,
		UserID:         openID,
		MessageID:      evt.Event.Context.OpenMessageID,
		Callback:       payload,
	}, nil
}

func (a *LarkAdapter) handleMessage(ctx context.Context, evt *larkevent.EventReq) error {
	u, images, err := parseMessage(evt.Body)
	if err != nil {
		a.logger.Warn("Ignoring message event", zap.Error(err))
		return nil
	}

	for _, key := range images {
		if a.images == nil || key == "" {
			continue
		}
		imported, err := a.images.ImportImage(ctx, u.MessageID, key)
		if err != nil {
			a.logger.Warn("Failed to import image",
				zap.String("message_id", u.MessageID),
				zap.String("file_key", key),
				zap.Error(err))
			continue
		}
		u.Media = append(u.Media, imported)
	}

	a.logger.Debug("Message received",
		zap.String("conversation_id", u.ConversationID),
		zap.Int("media", len(u.Media)))
	a.sink.Submit(a.baseContext(), u)
	return nil
}

func (a *LarkAdapter) handleCardAction(ctx context.Context, evt *larkevent.EventReq) error {
	u, err := parseCardAction(evt.Body)
	if err != nil {
		a.logger.Warn("Ignoring card action", zap.Error(err))
		return nil
	}

	a.logger.Debug("Card action received", zap.String("conversation_id", u.ConversationID))
	a.sink.Submit(a.baseContext(), u)
	return nil
}
