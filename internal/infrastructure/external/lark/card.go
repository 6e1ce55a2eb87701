package lark

import (
	"encoding/json"
	"fmt"

	"github.com/garyjia/campus-assistant/internal/application/port"
)

// CallbackKey is the key under which a button carries its payload in the card action value
const CallbackKey = "cb"

type card struct {
	Config   cardConfig    `json:"config"`
	Elements []interface{} `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
	UpdateMulti    bool `json:"update_multi"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardMarkdown struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardImage struct {
	Tag    string   `json:"tag"`
	ImgKey string   `json:"img_key"`
	Alt    cardText `json:"alt"`
}

type cardAction struct {
	Tag     string       `json:"tag"`
	Actions []cardButton `json:"actions"`
}

type cardButton struct {
	Tag   string            `json:"tag"`
	Text  cardText          `json:"text"`
	Type  string            `json:"type"`
	Value map[string]string `json:"value"`
}

// buildCard renders an outgoing message as an interactive card. Every row
// of buttons becomes one action block.
func buildCard(msg port.OutgoingMessage) (string, error) {
	c := card{
		Config: cardConfig{WideScreenMode: true, UpdateMulti: true},
	}
	if msg.Text != "" {
		c.Elements = append(c.Elements, cardMarkdown{Tag: "markdown", Content: msg.Text})
	}
	if msg.ImageKey != "" {
		c.Elements = append(c.Elements, cardImage{
			Tag:    "img",
			ImgKey: msg.ImageKey,
			Alt:    cardText{Tag: "plain_text", Content: ""},
		})
	}
	for _, row := range msg.Buttons {
		if len(row) == 0 {
			continue
		}
		action := cardAction{Tag: "action"}
		for _, b := range row {
			action.Actions = append(action.Actions, cardButton{
				Tag:   "button",
				Text:  cardText{Tag: "plain_text", Content: b.Label},
				Type:  "default",
				Value: map[string]string{CallbackKey: b.Payload},
			})
		}
		c.Elements = append(c.Elements, action)
	}
	if len(c.Elements) == 0 {
		return "", fmt.Errorf("message has no content")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card: %w", err)
	}
	return string(data), nil
}

// textContent renders a plain text message body
func textContent(text string) (string, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal text: %w", err)
	}
	return string(data), nil
}

// imageContent renders an image message body
func imageContent(imageKey string) (string, error) {
	data, err := json.Marshal(map[string]string{"image_key": imageKey})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image: %w", err)
	}
	return string(data), nil
}
