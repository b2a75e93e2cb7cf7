package llm

// Groq's OpenAI-compatible base path
const groqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqClient returns a chat completions client pointing to Groq.
func NewGroqClient(apiKey, model string) *GPTClient {
	return NewGPTClient(groqBaseURL, apiKey, model)
}
