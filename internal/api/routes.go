package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/llm-adapter/internal/unified"
)

type route struct {
	method string
	path   string
	op     unified.Operation
}

// routes maps the OpenAI-style surface onto unified operations.
var routes = []route{
	{http.MethodPost, "/chat/completions", unified.OpChatComplete},
	{http.MethodPost, "/completions", unified.OpComplete},
	{http.MethodPost, "/embeddings", unified.OpEmbed},
	{http.MethodPost, "/images/generations", unified.OpImageGenerate},
	{http.MethodPost, "/audio/speech", unified.OpCreateSpeech},
	{http.MethodPost, "/audio/transcriptions", unified.OpCreateTranscription},
	{http.MethodPost, "/audio/translations", unified.OpCreateTranslation},
	{http.MethodPost, "/fine_tuning/jobs", unified.OpCreateFinetune},
	{http.MethodGet, "/fine_tuning/jobs/:id", unified.OpRetrieveFinetune},
	{http.MethodPost, "/batches", unified.OpCreateBatch},
	{http.MethodGet, "/batches", unified.OpListBatches},
	{http.MethodGet, "/batches/:id", unified.OpRetrieveBatch},
	{http.MethodPost, "/batches/:id/cancel", unified.OpCancelBatch},
	{http.MethodGet, "/batches/:id/output", unified.OpGetBatchOutput},
	{http.MethodPost, "/files", unified.OpUploadFile},
	{http.MethodGet, "/files", unified.OpListFiles},
	{http.MethodGet, "/files/:id", unified.OpRetrieveFile},
	{http.MethodDelete, "/files/:id", unified.OpDeleteFile},
	{http.MethodGet, "/files/:id/content", unified.OpRetrieveFileContent},
}

// setupRoutes configures the API routes for the server.
func (s *Server) setupRoutes() {
	// Resource ids may be URL-encoded ARNs or gs:// URIs containing "/".
	s.engine.UseRawPath = true
	s.engine.UnescapePathValues = true

	v1 := s.engine.Group("/v1")
	v1.Use(s.authMiddleware())
	for _, r := range routes {
		v1.Handle(r.method, r.path, s.dispatch(r.op))
	}
	v1.GET("/profiles", s.listProfiles)

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/", func(c *gin.Context) {
		endpoints := make([]string, 0, len(routes))
		for _, r := range routes {
			endpoints = append(endpoints, r.method+" /v1"+r.path)
		}
		c.JSON(http.StatusOK, gin.H{"message": "llm-adapter", "endpoints": endpoints})
	})
}

// listProfiles reports profile names and providers; credentials stay server side.
func (s *Server) listProfiles(c *gin.Context) {
	cfg := s.cfg.Load()
	data := make([]gin.H, 0, len(cfg.Profiles))
	for _, name := range cfg.ProfileNames() {
		data = append(data, gin.H{"name": name, "provider": cfg.Profiles[name].Provider})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

// authMiddleware checks the caller's key against api-keys. An empty list
// leaves the API open.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := s.cfg.Load().APIKeys
		if len(keys) == 0 {
			c.Next()
			return
		}
		provided := strings.TrimSpace(c.GetHeader("Authorization"))
		if scheme, token, ok := strings.Cut(provided, " "); ok && strings.EqualFold(scheme, "bearer") {
			provided = strings.TrimSpace(token)
		}
		if provided == "" {
			provided = strings.TrimSpace(c.GetHeader("X-Api-Key"))
		}
		for _, k := range keys {
			if provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(k)) == 1 {
				c.Next()
				return
			}
		}
		writeError(c, errInvalidAPIKey, "")
	}
}
