package lark

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/campus-assistant/internal/application/port"
)

func TestReceiveIDType(t *testing.T) {
	assert.Equal(t, ReceiveIDChat, ReceiveIDType("oc_123"))
	assert.Equal(t, ReceiveIDOpen, ReceiveIDType("ou_123"))
	assert.Equal(t, ReceiveIDOpen, ReceiveIDType(""))
}

func TestClassify(t *testing.T) {
	header := http.Header{}
	header.Set(rateLimitResetHeader, "3")

	tests := []struct {
		name      string
		code      int
		header    http.Header
		limited   bool
		wantAfter time.Duration
	}{
		{"frequency limit with hint", codeFrequencyLimit, header, true, 3 * time.Second},
		{"message rate without hint", codeMessageRate, nil, true, 0},
		{"other failure", 230002, header, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("send message", tt.code, "msg", tt.header)
			rl, ok := port.AsRateLimited(err)
			assert.Equal(t, tt.limited, ok)
			if ok {
				assert.Equal(t, tt.wantAfter, rl.RetryAfter)
			}

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestRetryAfter_IgnoresGarbage(t *testing.T) {
	h := http.Header{}
	h.Set(rateLimitResetHeader, "soon")
	assert.Zero(t, retryAfter(h))

	h.Set(rateLimitResetHeader, "-4")
	assert.Zero(t, retryAfter(h))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{Code: 230011}))
	assert.False(t, IsNotFound(&APIError{Code: 230002}))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestBuildCard(t *testing.T) {
	content, err := buildCard(port.OutgoingMessage{
		Text:     "Open day\n\nStart: 10.01.2024 12:00",
		ImageKey: "img_v2_1",
		Buttons: [][]port.Button{
			{{Label: "Confirm", Payload: `{"a":"wf","v":"confirm"}`}, {Label: "Cancel", Payload: `{"a":"wf","v":"cancel"}`}},
			{},
		},
	})
	require.NoError(t, err)

	var decoded struct {
		Config struct {
			UpdateMulti bool `json:"update_multi"`
		} `json:"config"`
		Elements []map[string]interface{} `json:"elements"`
	}
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.True(t, decoded.Config.UpdateMulti)
	require.Len(t, decoded.Elements, 3, "markdown, image and one button row")
	assert.Equal(t, "markdown", decoded.Elements[0]["tag"])
	assert.Equal(t, "img", decoded.Elements[1]["tag"])

	actions := decoded.Elements[2]["actions"].([]interface{})
	require.Len(t, actions, 2)
	value := actions[0].(map[string]interface{})["value"].(map[string]interface{})
	assert.Equal(t, `{"a":"wf","v":"confirm"}`, value[CallbackKey])
}

func TestBuildCard_Empty(t *testing.T) {
	_, err := buildCard(port.OutgoingMessage{})
	assert.Error(t, err)
}

func TestTextContent_Escapes(t *testing.T) {
	content, err := textContent("line \"one\"\nline two")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "line \"one\"\nline two", decoded["text"])
}
