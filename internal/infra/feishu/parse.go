package feishu

import (
	"encoding/json"
	"strings"
)

// parseContent extracts text from a message body. ok is false for message
// types without text.
func parseContent(msgType, content string, mentionMap map[string]string) (string, bool) {
	switch msgType {
	case "text":
		return parseTextContent(content, mentionMap), true
	case "post":
		return parsePostContent(content, mentionMap), true
	default:
		return "", false
	}
}

// parseTextContent extracts text from a text message
// It also replaces mention placeholders (@_user_1) with real names
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent extracts text from a rich text message
func parsePostContent(content string, mentionMap map[string]string) string {
	type element struct {
		Tag      string `json:"tag"`
		Text     string `json:"text,omitempty"`
		Href     string `json:"href,omitempty"`
		UserID   string `json:"user_id,omitempty"` // for "at" tags
		UserName string `json:"user_name,omitempty"`
	}
	var parsed struct {
		Title   string      `json:"title"`
		Content [][]element `json:"content"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var textParts []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text", "code_block":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "a":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				} else if elem.Href != "" {
					lineParts = append(lineParts, elem.Href)
				}
			case "at":
				// The user_id is either a mention key (@_user_1) or an open_id
				if name, ok := mentionMap[elem.UserID]; ok {
					lineParts = append(lineParts, "@"+name)
				} else if elem.UserName != "" {
					lineParts = append(lineParts, "@"+elem.UserName)
				} else if elem.UserID != "" {
					lineParts = append(lineParts, "@"+elem.UserID)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	// Also replace any remaining mention placeholders in the text
	return replaceMentions(strings.Join(textParts, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	if len(mentionMap) == 0 {
		return text
	}
	result := text
	for key, name := range mentionMap {
		result = strings.ReplaceAll(result, key, "@"+name)
	}
	return result
}

func textContent(text string) string {
	b, _ := json.Marshal(map[string]string{"text": text})
	return string(b)
}
