package resolver

import (
	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/persona"
	"inferd/pkg/types"
)

// Defaults applied when neither the caller nor a persona supplies a value.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// ResolvedRequest is a fully-specified generation request: model decided,
// persona overlay applied, every sampling parameter concrete. Built fresh
// per call, never persisted.
type ResolvedRequest struct {
	Model       string
	Messages    []types.ChatMessage
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stream      bool
	Delivery    string
}

// Resolver merges incoming chat requests with an optional persona and makes
// sure the target model occupies the slot. It reads the persona store, never
// writes it.
type Resolver struct {
	personas *persona.Store
	engine   *engine.Engine
	log      zerolog.Logger
}

func New(personas *persona.Store, eng *engine.Engine, log zerolog.Logger) *Resolver {
	return &Resolver{
		personas: personas,
		engine:   eng,
		log:      log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve produces the final generation request. personaID comes from a
// request-scoped side channel (the X-Persona-Id header), not the body; empty
// means no overlay. deliveryFallback is consulted when the body carries no
// delivery mode.
func (r *Resolver) Resolve(req types.ChatRequest, personaID, deliveryFallback string) (ResolvedRequest, error) {
	out := ResolvedRequest{
		Model:       req.Model,
		Messages:    append([]types.ChatMessage(nil), req.Messages...),
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		Stream:      req.Stream,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}

	if personaID != "" {
		p, ok := r.personas.Get(personaID)
		if !ok {
			return ResolvedRequest{}, ErrPersonaNotFound(personaID)
		}
		r.applyPersona(&out, req, p)
	}

	switch req.Delivery {
	case types.DeliveryDirect, types.DeliveryProxied:
		out.Delivery = req.Delivery
	default:
		switch deliveryFallback {
		case types.DeliveryDirect, types.DeliveryProxied:
			out.Delivery = deliveryFallback
		default:
			out.Delivery = types.DeliveryProxied
		}
	}

	if out.Model == "" {
		// No model anywhere in the request chain: fall back to whatever
		// occupies the slot right now.
		out.Model = r.engine.CurrentModel()
		if out.Model == "" {
			return ResolvedRequest{}, ErrModelUnavailable("(unspecified)")
		}
	}
	if !r.engine.EnsureLoaded(out.Model) {
		return ResolvedRequest{}, ErrModelUnavailable(out.Model)
	}
	return out, nil
}

// applyPersona overlays persona defaults onto fields the caller left unset
// and injects the persona's system message without ever duplicating or
// overriding a caller-supplied one.
func (r *Resolver) applyPersona(out *ResolvedRequest, req types.ChatRequest, p types.Persona) {
	if out.Model == "" {
		out.Model = p.Model
	}
	if req.Temperature == nil && p.Temperature > 0 {
		out.Temperature = p.Temperature
	}
	if req.MaxTokens == nil && p.MaxTokens > 0 {
		out.MaxTokens = p.MaxTokens
	}
	if req.TopP == nil && p.TopP > 0 {
		out.TopP = p.TopP
	}
	if p.SystemMessage == "" {
		return
	}
	if len(out.Messages) > 0 && out.Messages[0].Role == "system" {
		if out.Messages[0].Content == "" {
			out.Messages[0].Content = p.SystemMessage
		}
		return
	}
	out.Messages = append([]types.ChatMessage{{Role: "system", Content: p.SystemMessage}}, out.Messages...)
}
