package types

// ModelDescriptor describes one installed model file in the manifest.
type ModelDescriptor struct {
	// Stable display name derived from the filename.
	// example: tinymodel
	Name string `json:"name" example:"tinymodel"`
	// Filename of the model binary relative to the models directory.
	// example: tinymodel-1b.Q4_K_M.gguf
	File string `json:"file" example:"tinymodel-1b.Q4_K_M.gguf"`
	// Human-readable capability summary inferred from the name.
	Description string `json:"description"`
	// Capability tags inferred from the name plus the base tag set.
	// example: ["compact","efficient","local","neural","responsive"]
	Tags []string `json:"tags"`
}

// Persona is a reusable generation profile: a system prompt plus sampling
// defaults, persisted as one JSON file per id.
type Persona struct {
	// Unique identifier; assigned on first save when empty.
	// example: coder-expert
	ID string `json:"id"`
	// Display name. Required.
	// example: Code Expert
	Name string `json:"name"`
	// Target model name. Empty means "use the caller's choice".
	Model string `json:"model"`
	// System prompt injected when the caller supplies none. Required.
	SystemMessage string `json:"system_message"`
	// Short description shown in listings.
	Description string `json:"description"`
	// Voice id for clients that drive their own speech synthesis.
	// example: jarvis
	Voice string `json:"voice,omitempty"`
	// Default sampling temperature.
	// example: 0.7
	Temperature float64 `json:"temperature"`
	// Default generation budget in tokens.
	// example: 512
	MaxTokens int `json:"max_tokens"`
	// Default nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p"`
	// Free-form tags; defaults to ["custom"] when empty.
	Tags []string `json:"tags"`
	// RFC 3339 creation timestamp.
	CreatedAt string `json:"created_at,omitempty"`
	// Icon shown by UIs.
	Icon string `json:"icon"`
}
