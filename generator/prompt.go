package generator

import (
	"fmt"
	"strings"
)

const (
	// NoErrorsDetected stands in for the error block when nothing failed.
	NoErrorsDetected = "No errors were detected in the last iteration."

	// SystemPersona is appended to every composed instruction.
	SystemPersona = "You are an expert programming assistant."

	defaultScriptLanguage  = "Python"
	defaultCommentLanguage = "Spanish"
)

// Roles used in Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt is the set of messages sent to the LLM.
type Prompt struct {
	System  string
	User    string
	History []Message
}

// Message is one role-tagged turn of history.
type Message struct {
	Role    string
	Content string
}

// ComposeInput carries everything that varies between composed instructions.
// Empty languages fall back to Python scripts with Spanish comments.
type ComposeInput struct {
	BasePrompt string
	History    string
	Knowledge  string
	// Error is the message of the previous failed attempt, if any.
	Error string

	ScriptLanguage  string
	CommentLanguage string
}

// Compose builds the instruction text for one attempt. It is pure: equal
// inputs always produce equal output.
func Compose(in ComposeInput) string {
	lang := in.ScriptLanguage
	if lang == "" {
		lang = defaultScriptLanguage
	}
	comments := in.CommentLanguage
	if comments == "" {
		comments = defaultCommentLanguage
	}
	errorContext := NoErrorsDetected
	if in.Error != "" {
		errorContext = "The following error occurred during execution: " + in.Error
	}

	var sb strings.Builder
	sb.WriteString("You are an expert at writing highly professional scripts optimized for production use. ")
	sb.WriteString(fmt.Sprintf("Your task is to generate a %s script that meets the following criteria:\n\n", lang))
	sb.WriteString("- The script must include every library needed for optimal performance and production use.\n")
	sb.WriteString("- The code must be well structured, efficient and follow best practices.\n")
	sb.WriteString(fmt.Sprintf("- The script is meant for a tutorial, so every explanation must be written as comments in %s.\n", comments))
	sb.WriteString("- If you are unsure about any aspect of the requirements, ask between 3 and 7 clarifying questions to fully understand the goal before proceeding.\n\n")
	sb.WriteString("Remember:\n")
	sb.WriteString("- Respond only with the script.\n")
	sb.WriteString(fmt.Sprintf("- Every explanation must be written as comments in %s.\n\n", comments))
	sb.WriteString("The script is:\n")
	sb.WriteString(in.BasePrompt)
	sb.WriteString("\n\nKnowledge base:\n")
	sb.WriteString(in.Knowledge)
	sb.WriteString("\n\nPrevious messages:\n")
	sb.WriteString(in.History)
	sb.WriteString("\n\n")
	sb.WriteString(errorContext)
	sb.WriteString("\n")
	return sb.String()
}

// BuildPrompt wraps a composed instruction for the interactive loop: the
// instruction and persona form the system message, the windowed history
// follows, and the base request is the final user message.
func BuildPrompt(in ComposeInput, history []Message) Prompt {
	return Prompt{
		System:  Compose(in) + " " + SystemPersona,
		User:    in.BasePrompt,
		History: history,
	}
}

// BuildImprovementPrompt is the single-message prompt used by the batch
// transform: no history, no knowledge, no pending error.
func BuildImprovementPrompt(basePrompt string, in ComposeInput) Prompt {
	in.BasePrompt = basePrompt
	in.History = ""
	in.Knowledge = ""
	in.Error = ""
	return Prompt{User: Compose(in)}
}

// Window keeps the most recent K user/assistant exchanges.
type Window struct {
	k    int
	msgs []Message
}

// NewWindow returns a window holding at most k exchanges (2k messages).
func NewWindow(k int) *Window {
	if k < 1 {
		k = 1
	}
	return &Window{k: k}
}

// Add appends one exchange and drops the oldest ones beyond the bound.
func (w *Window) Add(user, assistant string) {
	w.msgs = append(w.msgs,
		Message{Role: RoleUser, Content: user},
		Message{Role: RoleAssistant, Content: assistant},
	)
	if over := len(w.msgs) - 2*w.k; over > 0 {
		w.msgs = append([]Message(nil), w.msgs[over:]...)
	}
}

// Messages returns a copy of the retained turns, oldest first.
func (w *Window) Messages() []Message {
	out := make([]Message, len(w.msgs))
	copy(out, w.msgs)
	return out
}
