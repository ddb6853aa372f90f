package domain

// Message roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Prompt is the unified request shape passed to every chat client.
type Prompt struct {
	Input   string         `json:"input"`
	System  string         `json:"system,omitempty"`
	History []Message      `json:"history,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Messages flattens the prompt into the ordered message sequence sent to a
// provider: system prompt first, then history, then the current input.
func (p *Prompt) Messages() []Message {
	messages := make([]Message, 0, len(p.History)+2)

	if p.System != "" {
		messages = append(messages, SystemMessage(p.System))
	}

	messages = append(messages, p.History...)

	if p.Input != "" {
		messages = append(messages, UserMessage(p.Input))
	}

	return messages
}

// CallResult is a single element of an asynchronous call future.
type CallResult struct {
	Message *Message
	Err     error
}

// RoutingContext carries per-call routing hints. It is supplied by the caller
// and never persisted.
type RoutingContext struct {
	// ForcedProvider overrides all routing logic when set.
	ForcedProvider string `json:"forced_provider,omitempty"`

	// Requirement is a capability hint such as "code" or "vision".
	Requirement string `json:"requirement,omitempty"`

	// Extra holds arbitrary caller-supplied key/values.
	Extra map[string]any `json:"extra,omitempty"`
}
