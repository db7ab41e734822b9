package types

// Delivery mode for streamed responses.
const (
	// DeliveryProxied paces chunk writes so buffering intermediaries still
	// observe forward progress. Default.
	DeliveryProxied = "proxied"
	// DeliveryDirect forwards chunks as soon as they are produced. Meant for
	// trusted low-latency local callers.
	DeliveryDirect = "direct"
)

// ChatMessage is one turn of an OpenAI-style conversation.
type ChatMessage struct {
	// Message role: system, user, or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Message content.
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// ChatRequest is an OpenAI-compatible chat completion request. Sampling
// fields are pointers so the persona overlay can distinguish "absent" from
// an explicit zero.
type ChatRequest struct {
	// Model name from the manifest. Empty defers to the persona's model,
	// then to the currently loaded model.
	// example: tinymodel
	Model string `json:"model,omitempty" example:"tinymodel"`
	// Ordered conversation turns.
	Messages []ChatMessage `json:"messages"`
	// Maximum number of new tokens to generate.
	// example: 512
	MaxTokens *int `json:"max_tokens,omitempty" example:"512"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// If true, stream the response as server-sent events.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Delivery mode for streamed responses: proxied or direct. Falls back
	// to the X-Delivery-Mode header, then to proxied.
	// example: proxied
	Delivery string `json:"delivery,omitempty" example:"proxied"`
}

// Usage contains token accounting for a completed generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChoice is one completion alternative (always exactly one here).
type ChatChoice struct {
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse is the non-streaming completion payload.
type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
	Model   string       `json:"model"`
	Usage   Usage        `json:"usage"`
}

// StreamDelta carries the incremental content of one streamed chunk.
type StreamDelta struct {
	// Role is set only on the opening chunk.
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice wraps a delta with its finish reason.
type StreamChoice struct {
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamChunk is the unit of the outbound event sequence.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
	Model   string         `json:"model"`
}

// StreamError is emitted as a single terminal event when a stream fails
// after it has been committed.
type StreamError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ModelInfo is the catalog listing entry returned by GET /v1/models.
type ModelInfo struct {
	// example: tinymodel
	ID          string   `json:"id" example:"tinymodel"`
	Object      string   `json:"object" example:"model"`
	Created     int64    `json:"created"`
	OwnedBy     string   `json:"owned_by" example:"inferd"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	// Whether this model currently occupies the slot.
	Loaded bool `json:"loaded"`
}

// ModelsResponse wraps the list of models.
type ModelsResponse struct {
	Object string      `json:"object" example:"list"`
	Data   []ModelInfo `json:"data"`
}

// HealthStatus is a point-in-time view of the engine.
type HealthStatus struct {
	// Whether a model handle is currently held.
	ModelLoaded bool `json:"model_loaded"`
	// Name of the loaded model, empty when none.
	// example: tinymodel
	CurrentModel string `json:"current_model,omitempty" example:"tinymodel"`
	// Number of models in the catalog.
	// example: 3
	AvailableModels int `json:"available_models" example:"3"`
	// True only while a handle is held and initialization succeeded.
	Ready bool `json:"ready"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	// Overall service state: ready or initializing.
	// example: ready
	Status string `json:"status" example:"ready"`
	// example: tinymodel
	CurrentModel string       `json:"current_model,omitempty"`
	Health       HealthStatus `json:"health"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model 'tinymodel' not available
	Error string `json:"error" example:"model 'tinymodel' not available"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
