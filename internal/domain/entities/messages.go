package entities

// Fixed response texts.
const (
	EmergencyKeywordMessage = "Based on your description, this may be a medical emergency. Please seek immediate medical attention or call your local emergency services."
	EmergencyIntentMessage  = "This may be a medical emergency. Please seek immediate medical attention or call your local emergency services."
	GreetingMessage         = "Hello! I am a medical AI assistant. How can I help you with your health questions today?"
	UnknownMessage          = "I'm not sure how to respond to that. Could you please rephrase your question?"
	ErrorMessage            = "I apologize, but I encountered an error processing your request. Please try rephrasing your question."
	CleanupFallbackMessage  = "I apologize, but I couldn't generate a clear response to your question."
	Disclaimer              = "\n\nDisclaimer: This is an AI-generated response and does not constitute medical advice."

	NoContextSentinel     = "No relevant medical information found."
	RetrievalFailSentinel = "Unable to retrieve medical information."
)
