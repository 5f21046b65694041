package azureopenai

// Message is a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the service-level chat completion request
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Stream      bool
}

// Usage reports token consumption for a completion or embedding call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the unified chat completion result
type ChatResult struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// EmbeddingResult carries the vectors produced for a batch of input texts,
// in input order.
type EmbeddingResult struct {
	Vectors [][]float32
	Model   string
	Usage   Usage
}

// Dimensions returns the vector dimensionality, 0 when no vectors came back
func (r *EmbeddingResult) Dimensions() int {
	if len(r.Vectors) == 0 {
		return 0
	}
	return len(r.Vectors[0])
}

// Azure OpenAI wire types

type wireChatRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type wireChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

type wireChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// wireStreamChunk is one SSE data payload of a streamed completion
type wireStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type wireEmbeddingsRequest struct {
	Input []string `json:"input"`
}

type wireEmbeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

type wireErrorResponse struct {
	Error wireError `json:"error"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
