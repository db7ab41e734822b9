package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/manifest"
	"inferd/internal/persona"
	"inferd/internal/resolver"
	"inferd/internal/stream"
	"inferd/pkg/types"
)

// Server bundles the handler dependencies. Construct with NewServer, then
// mount via NewMux.
type Server struct {
	engine   *engine.Engine
	personas *persona.Store
	resolver *resolver.Resolver
	manifest *manifest.Store

	modelsDir    string
	manifestPath string

	// ws is the websocket bridge endpoint, mounted at /ws when non-nil.
	ws http.Handler

	start time.Time
	log   zerolog.Logger
}

func NewServer(eng *engine.Engine, personas *persona.Store, res *resolver.Resolver, man *manifest.Store, modelsDir, manifestPath string, ws http.Handler, log zerolog.Logger) *Server {
	return &Server{
		engine:       eng,
		personas:     personas,
		resolver:     res,
		manifest:     man,
		modelsDir:    modelsDir,
		manifestPath: manifestPath,
		ws:           ws,
		start:        time.Now(),
		log:          log.With().Str("component", "httpapi").Logger(),
	}
}

func NewMux(s *Server) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Persona-Id", "X-Delivery-Mode", "X-Log-Level"},
	}))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", s.handleChat)
		r.Get("/models", s.handleListModels)
		r.Post("/models/reconcile", s.handleReconcile)
		r.Post("/models/{name}/load", s.handleLoadModel)
		r.Get("/status", s.handleStatus)

		r.Get("/personas", s.handleListPersonas)
		r.Post("/personas", s.handleCreatePersona)
		r.Get("/personas/{id}", s.handleGetPersona)
		r.Put("/personas/{id}", s.handleUpdatePersona)
		r.Delete("/personas/{id}", s.handleDeletePersona)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.engine.Health().Ready {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	if s.ws != nil {
		r.Get("/ws", s.ws.ServeHTTP)
	}

	MountSwagger(r)

	return r
}

// handleChat godoc
// @Summary OpenAI-compatible chat completion
// @Accept json
// @Produce json
// @Param request body types.ChatRequest true "Chat request"
// @Success 200 {object} types.ChatResponse
// @Failure 429 {object} types.ErrorResponse
// @Router /v1/chat/completions [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}

	resolved, err := s.resolver.Resolve(req, r.Header.Get("X-Persona-Id"), r.Header.Get("X-Delivery-Mode"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	prompt := engine.FormatPrompt(resolved.Messages)
	params := engine.Params{
		MaxTokens:   resolved.MaxTokens,
		Temperature: resolved.Temperature,
		TopP:        resolved.TopP,
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo && zlog != nil {
		z := zlog.Info().Str("model", resolved.Model).Bool("stream", resolved.Stream).Str("delivery", resolved.Delivery)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("chat start")
	}

	// Join server base context with request context so shutdown cancels
	// in-flight generations too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	if !resolved.Stream {
		resp, err := s.engine.Generate(ctx, prompt, params)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeDomainError(w, err)
			s.logChatEnd(r, lvl, statusForError(err), start, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		s.logChatEnd(r, lvl, http.StatusOK, start, nil)
		return
	}

	ts, err := s.engine.GenerateStream(ctx, prompt, params)
	if err != nil {
		writeDomainError(w, err)
		s.logChatEnd(r, lvl, statusForError(err), start, err)
		return
	}
	defer ts.Close()

	sw, err := stream.NewWriter(w, resolved.Model, resolved.Delivery, streamPace, s.log)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := stream.Deliver(ctx, sw, ts); err != nil {
		// Client disconnect or shutdown mid-stream; the response is
		// already committed, nothing more to write.
		s.logChatEnd(r, lvl, http.StatusOK, start, err)
		return
	}
	s.logChatEnd(r, lvl, http.StatusOK, start, nil)
}

func (s *Server) logChatEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo || zlog == nil {
		return
	}
	z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("chat end")
}

// handleListModels godoc
// @Summary List catalog models
// @Produce json
// @Success 200 {object} types.ModelsResponse
// @Router /v1/models [get]
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	current := s.engine.CurrentModel()
	models := s.engine.Models()
	out := types.ModelsResponse{Object: "list", Data: make([]types.ModelInfo, 0, len(models))}
	for _, m := range models {
		out.Data = append(out.Data, types.ModelInfo{
			ID:          m.Name,
			Object:      "model",
			Created:     s.start.Unix(),
			OwnedBy:     "inferd",
			Description: m.Description,
			Tags:        m.Tags,
			Loaded:      m.Name == current,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleLoadModel godoc
// @Summary Load a model into the slot
// @Produce json
// @Param name path string true "Model name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} types.ErrorResponse
// @Router /v1/models/{name}/load [post]
func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var known bool
	for _, m := range s.engine.Models() {
		if m.Name == name {
			known = true
			break
		}
	}
	if !known {
		writeJSONError(w, http.StatusNotFound, "model '"+name+"' not found")
		return
	}
	if !s.engine.LoadModel(name) {
		writeJSONError(w, http.StatusServiceUnavailable, "failed to load model '"+name+"'")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "model": name})
}

// handleReconcile godoc
// @Summary Reconcile the model manifest against the models directory
// @Produce json
// @Param preserve query bool false "Keep existing manifest entries untouched"
// @Success 200 {object} map[string]any
// @Router /v1/models/reconcile [post]
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	preserve := r.URL.Query().Get("preserve") != "false"
	if !s.manifest.Reconcile(s.modelsDir, s.manifestPath, preserve) {
		writeJSONError(w, http.StatusInternalServerError, "manifest reconciliation failed")
		return
	}
	catalog, err := s.manifest.Load(s.manifestPath)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "manifest reload failed")
		return
	}
	s.engine.SetCatalog(catalog)
	writeJSON(w, http.StatusOK, map[string]any{"status": "reconciled", "models": len(catalog)})
}

// handleStatus godoc
// @Summary Service status
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /v1/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health()
	status := "initializing"
	if h.Ready {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{
		Status:         status,
		CurrentModel:   h.CurrentModel,
		Health:         h,
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"personas": s.personas.List()})
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.personas.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "persona '"+id+"' not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCreatePersona godoc
// @Summary Create a persona
// @Accept json
// @Produce json
// @Param persona body types.Persona true "Persona"
// @Success 201 {object} types.Persona
// @Failure 400 {object} types.ErrorResponse
// @Router /v1/personas [post]
func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var p types.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = ""
	if !s.personas.Save(&p) {
		writeJSONError(w, http.StatusBadRequest, "persona requires name, model and system_message")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.personas.Get(id); !ok {
		writeJSONError(w, http.StatusNotFound, "persona '"+id+"' not found")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var p types.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = id
	if !s.personas.Save(&p) {
		writeJSONError(w, http.StatusBadRequest, "persona requires name, model and system_message")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.personas.Delete(id) {
		writeJSONError(w, http.StatusNotFound, "persona '"+id+"' not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}
