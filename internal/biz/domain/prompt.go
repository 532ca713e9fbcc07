package domain

// Role is the speaker of a prompt entry
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one message of a completion prompt
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the ordered message sequence sent to the completion service.
//
// It is kept as two segments so that history can be inserted without
// disturbing the fixed part: Preamble holds the base system instruction,
// activated contexts and an optional summary; History holds prior messages
// in chronological order; Current is the triggering user message and always
// comes last.
type Prompt struct {
	Preamble []Entry
	History  []Entry
	Current  *Entry
}

// NewPrompt creates a prompt whose first entry is the given system instruction.
func NewPrompt(system string) *Prompt {
	return &Prompt{Preamble: []Entry{{Role: RoleSystem, Content: system}}}
}

// AddSystem appends a system entry to the preamble.
func (p *Prompt) AddSystem(content string) {
	p.Preamble = append(p.Preamble, Entry{Role: RoleSystem, Content: content})
}

// RemoveLastSystem removes the most recently added preamble entry, never the
// base instruction.
func (p *Prompt) RemoveLastSystem() {
	if len(p.Preamble) > 1 {
		p.Preamble = p.Preamble[:len(p.Preamble)-1]
	}
}

// SetCurrent sets the triggering user message.
func (p *Prompt) SetCurrent(content string) {
	p.Current = &Entry{Role: RoleUser, Content: content}
}

// PrependHistory inserts e as the oldest history entry.
func (p *Prompt) PrependHistory(e Entry) {
	p.History = append([]Entry{e}, p.History...)
}

// DropOldestHistory removes the oldest history entry.
func (p *Prompt) DropOldestHistory() (Entry, bool) {
	if len(p.History) == 0 {
		return Entry{}, false
	}
	e := p.History[0]
	p.History = p.History[1:]
	return e, true
}

// Entries returns the full sequence: preamble, history, then the current message.
func (p *Prompt) Entries() []Entry {
	out := make([]Entry, 0, len(p.Preamble)+len(p.History)+1)
	out = append(out, p.Preamble...)
	out = append(out, p.History...)
	if p.Current != nil {
		out = append(out, *p.Current)
	}
	return out
}

// Completion is the result of one completion request
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
