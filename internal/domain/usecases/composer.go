package usecases

import "strings"

// Section headers of the composed generation prompt, in order.
const (
	promptInstruction = "You are a knowledgeable medical assistant. Based on the conversation context and medical information provided, " +
		"give a clear, helpful, and concise answer to the user's question. Avoid repetition."
	headerHistory  = "Previous Conversation:"
	headerContext  = "Medical Information:"
	headerQuestion = "Current Question:"
	responseCue    = "Response:"
)

// ComposePrompt assembles instruction, history, retrieved context and the
// current question into one generation input.
func ComposePrompt(query, retrievedContext, history string) string {
	var sb strings.Builder
	sb.WriteString(promptInstruction)
	sb.WriteString("\n\n")
	sb.WriteString(headerHistory)
	sb.WriteString("\n")
	sb.WriteString(history)
	sb.WriteString("\n\n")
	sb.WriteString(headerContext)
	sb.WriteString("\n")
	sb.WriteString(retrievedContext)
	sb.WriteString("\n\n")
	sb.WriteString(headerQuestion)
	sb.WriteString(" ")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	sb.WriteString(responseCue)
	return sb.String()
}
