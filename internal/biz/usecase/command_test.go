package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandParser_Parse(t *testing.T) {
	p := NewCommandParser("!", "GPT")

	tests := []struct {
		name       string
		raw        string
		directives []string
		text       string
	}{
		{"plain", "hello world", nil, "hello world"},
		{"leading directive", "!new hello world", []string{"new"}, "hello world"},
		{"mention and directives", "@GPT !gpt4 !stream summarize", []string{"gpt4", "stream"}, "summarize"},
		{"bold mention", "@**GPT** what time is it", nil, "what time is it"},
		{"slash command", "/gpt explain", nil, "explain"},
		{"case insensitive", "!NEW Hi", []string{"new"}, "Hi"},
		{"trailing directive", "hello !me", []string{"me"}, "hello"},
		{"only directives", "!new !gpt4", []string{"new", "gpt4"}, ""},
		{"bare marker stays", "wow ! nice", nil, "wow ! nice"},
		{"keeps inner newlines", "!set context poem line one\nline two", []string{"set"}, "context poem line one\nline two"},
		{"mention inside word untouched", "email me at x@GPTmail.com", nil, "email me at x@GPTmail.com"},
		{"mention with comma", "@GPT, do x", nil, "do x"},
		{"mention with colon", "@GPT: x", nil, "x"},
		{"mention with full-width colon", "@GPT：翻译一下", nil, "翻译一下"},
		{"mention ends sentence", "thanks @GPT.", nil, "thanks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := p.Parse(tt.raw)
			assert.Equal(t, tt.directives, cmd.Directives)
			assert.Equal(t, tt.text, cmd.Text)
		})
	}
}

func TestCommandParser_Idempotent(t *testing.T) {
	p := NewCommandParser("!", "GPT")
	first := p.Parse("@GPT !new !gpt4 hello there")
	second := p.Parse(first.Text)
	assert.Empty(t, second.Directives)
	assert.Equal(t, first.Text, second.Text)
}

func TestCommandParser_CustomMarker(t *testing.T) {
	p := NewCommandParser("#", "bot")
	cmd := p.Parse("#new !literal")
	assert.Equal(t, []string{"new"}, cmd.Directives)
	assert.Equal(t, "!literal", cmd.Text)
}

func TestCommandParser_Mentions(t *testing.T) {
	p := NewCommandParser("!", "GPT")
	assert.True(t, p.Mentions("@gpt hi"))
	assert.True(t, p.Mentions("hey @**GPT**"))
	assert.True(t, p.Mentions("/GPT do it"))
	assert.False(t, p.Mentions("no mention here"))
	assert.False(t, p.Mentions("see https://host/gptx"))

	assert.True(t, p.Mentions("@GPT, hi"))
	assert.False(t, p.Mentions("@GPTs are fun"))

	assert.False(t, NewCommandParser("!", "").Mentions("@gpt hi"))
}

func TestCommandParser_LearnedBotName(t *testing.T) {
	p := NewCommandParser("!", "GPT", "Helper", "", "helper")

	assert.True(t, p.Mentions("@Helper hi"))
	assert.True(t, p.Mentions("@gpt hi"))
	assert.Equal(t, "hi", p.Parse("@Helper hi").Text)
	assert.Equal(t, "hi", p.Parse("@GPT @Helper: hi").Text)

	spaced := NewCommandParser("!", "GPT", "GPT Helper")
	assert.Equal(t, "what now", spaced.Parse("@GPT Helper what now").Text)
}

func TestCommandParser_After(t *testing.T) {
	p := NewCommandParser("!", "GPT")

	args, ok := p.After("@GPT !set context style talk like !pirate", "set")
	assert.True(t, ok)
	assert.Equal(t, "context style talk like !pirate", args)

	args, ok = p.After("!new !SET context a\n b", "set")
	assert.True(t, ok)
	assert.Equal(t, "context a\n b", args)

	_, ok = p.After("set context a b", "set")
	assert.False(t, ok)
}

func TestCommandParser_StartsFresh(t *testing.T) {
	p := NewCommandParser("!", "GPT")
	assert.True(t, p.StartsFresh("!new let's start over"))
	assert.True(t, p.StartsFresh("@GPT !NEW again"))
	assert.False(t, p.StartsFresh("please !new"))
	assert.False(t, p.StartsFresh(""))
}

func TestCommand_Has(t *testing.T) {
	cmd := Command{Directives: []string{"new", "me"}}
	assert.True(t, cmd.Has("me"))
	assert.False(t, cmd.Has("stream"))
}
