package feishu

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func TestParseTextContent(t *testing.T) {
	got := parseTextContent(`{"text":"@_user_1 hello"}`, map[string]string{"@_user_1": "GPT"})
	assert.Equal(t, "@GPT hello", got)

	assert.Empty(t, parseTextContent("not json", nil))
}

func TestParsePostContent(t *testing.T) {
	content := `{"title":"Notes","content":[[{"tag":"at","user_id":"@_user_1"},{"tag":"text","text":" summarize"}],[{"tag":"a","text":"link","href":"https://x"}],[{"tag":"img","image_key":"img_1"}]]}`

	got := parsePostContent(content, map[string]string{"@_user_1": "GPT"})
	assert.Equal(t, "Notes\n@GPT summarize\nlink", got)
}

func TestParseContent_Unsupported(t *testing.T) {
	_, ok := parseContent("image", `{"image_key":"x"}`, nil)
	assert.False(t, ok)
}

func TestTextContent(t *testing.T) {
	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(textContent("a \"quoted\"\nline")), &parsed))
	assert.Equal(t, "a \"quoted\"\nline", parsed["text"])
}

func TestToHistoryMessage(t *testing.T) {
	item := &larkim.Message{
		MessageId:  strPtr("om_1"),
		MsgType:    strPtr("text"),
		ThreadId:   strPtr("omt_1"),
		CreateTime: strPtr("1700000000000"),
		Body:       &larkim.MessageBody{Content: strPtr(`{"text":"@_user_1 hi"}`)},
		Sender:     &larkim.Sender{Id: strPtr("cli_bot"), SenderType: strPtr("app")},
		Mentions:   []*larkim.Mention{{Key: strPtr("@_user_1"), Name: strPtr("Alice")}},
	}

	msg := toHistoryMessage(item)
	assert.Equal(t, "om_1", msg.MsgID)
	assert.Equal(t, "omt_1", msg.ThreadID)
	assert.Equal(t, int64(1700000000000), msg.CreateTime)
	assert.Equal(t, "@Alice hi", msg.Content)
	assert.Equal(t, "cli_bot", msg.Sender.SenderID)
	assert.Equal(t, "app", msg.Sender.SenderType)
}

func TestHandleMessage(t *testing.T) {
	c := NewClient("cli_app", "secret", testLogger(), slog.LevelInfo)
	c.botOpenID = "ou_bot"

	var got *Message
	c.OnMessage(func(msg *Message) { got = msg })

	c.handleMessage(&larkim.P2MessageReceiveV1{Event: &larkim.P2MessageReceiveV1Data{
		Sender: &larkim.EventSender{
			SenderId:   &larkim.UserId{OpenId: strPtr("ou_user")},
			SenderType: strPtr("user"),
		},
		Message: &larkim.EventMessage{
			MessageId:   strPtr("om_1"),
			ChatId:      strPtr("oc_1"),
			ChatType:    strPtr("group"),
			MessageType: strPtr("text"),
			CreateTime:  strPtr("1700000000000"),
			Content:     strPtr(`{"text":"@_user_1 what is go"}`),
			Mentions: []*larkim.MentionEvent{{
				Key:  strPtr("@_user_1"),
				Name: strPtr("GPT"),
				Id:   &larkim.UserId{OpenId: strPtr("ou_bot")},
			}},
		},
	}})

	require.NotNil(t, got)
	assert.Equal(t, "om_1", got.MsgID)
	assert.Equal(t, "group", got.ChatType)
	assert.Equal(t, "ou_user", got.Sender.SenderID)
	assert.Equal(t, "@GPT what is go", got.Content)
	assert.True(t, got.MentionsBot)
}

func TestHandleMessage_IgnoresApps(t *testing.T) {
	c := NewClient("cli_app", "secret", testLogger(), slog.LevelInfo)
	called := false
	c.OnMessage(func(msg *Message) { called = true })

	c.handleMessage(&larkim.P2MessageReceiveV1{Event: &larkim.P2MessageReceiveV1Data{
		Sender:  &larkim.EventSender{SenderType: strPtr("app")},
		Message: &larkim.EventMessage{MessageType: strPtr("text"), Content: strPtr(`{"text":"x"}`)},
	}})
	assert.False(t, called)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

func TestAuthorize(t *testing.T) {
	var tokenRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open-apis/auth/v3/tenant_access_token/internal":
			tokenRequests++
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "cli_auth_ok", body["app_id"])
			writeJSON(w, `{"code":0,"msg":"ok","tenant_access_token":"t-123","expire":7200}`)
		case "/open-apis/bot/v3/info":
			assert.Equal(t, "Bearer t-123", r.Header.Get("Authorization"))
			writeJSON(w, `{"code":0,"msg":"ok","bot":{"open_id":"ou_bot","app_name":"Helper"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("cli_auth_ok", "secret", testLogger(), slog.LevelInfo, lark.WithOpenBaseUrl(srv.URL))

	require.NoError(t, c.Authorize(context.Background()))
	assert.Equal(t, "ou_bot", c.BotOpenID())
	assert.Equal(t, "Helper", c.BotName())
	assert.Equal(t, 1, tokenRequests)
}

func TestAuthorize_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":10003,"msg":"invalid param"}`)
	}))
	defer srv.Close()

	c := NewClient("cli_auth_bad", "wrong", testLogger(), slog.LevelInfo, lark.WithOpenBaseUrl(srv.URL))

	err := c.Authorize(context.Background())
	assert.ErrorContains(t, err, "invalid param")
	assert.Empty(t, c.BotOpenID())
	assert.Empty(t, c.BotName())
}

func TestLarkLogLevel(t *testing.T) {
	assert.Equal(t, larkcore.LogLevelDebug, larkLogLevel(slog.LevelDebug))
	assert.Equal(t, larkcore.LogLevelInfo, larkLogLevel(slog.LevelInfo))
	assert.Equal(t, larkcore.LogLevelError, larkLogLevel(slog.LevelError))
}
