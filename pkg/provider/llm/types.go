package llm

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// System returns a "system"-role message with the given content.
func System(content string) Message { return Message{Role: "system", Content: content} }

// User returns a "user"-role message with the given content.
func User(content string) Message { return Message{Role: "user", Content: content} }

// Assistant returns an "assistant"-role message with the given content.
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }
