package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/gateway"
	"github.com/nghyane/llm-adapter/internal/logging"
	"github.com/tidwall/gjson"
)

const chatBody = `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *logging.FileRequestLogger) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	reqLog := logging.NewFileRequestLogger(false, t.TempDir(), "")
	return NewServer(cfg, gateway.New(), WithRequestLogger(reqLog)), reqLog
}

func newUpstream(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func azureHeaders(host string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(HeaderProvider, "azure-openai")
	h.Set("X-Gateway-Api-Key", "azure-key")
	h.Set("X-Gateway-Azure-Resource-Name", "res")
	h.Set("X-Gateway-Azure-Deployment-Id", "gpt4o")
	if host != "" {
		h.Set("X-Gateway-Custom-Host", host)
	}
	return h
}

func serve(s *Server, method, path string, h http.Header, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range h {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatWithHeaderCredentials(t *testing.T) {
	var gotKey, gotPath string
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey, gotPath = r.Header.Get("api-key"), r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})
	s, _ := newTestServer(t, nil)
	rec := serve(s, http.MethodPost, "/v1/chat/completions", azureHeaders(up.URL), strings.NewReader(chatBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gotKey != "azure-key" || gotPath != "/deployments/gpt4o/chat/completions" {
		t.Errorf("upstream saw key %q path %q", gotKey, gotPath)
	}
	if got := gjson.Get(rec.Body.String(), "provider").String(); got != "azure-openai" {
		t.Errorf("provider = %q", got)
	}
}

func TestChatWithProfile(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "profile-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":"c1","choices":[]}`)
	})
	cfg := config.NewDefaultConfig()
	cfg.Profiles = map[string]config.Profile{"azure": {
		Provider:          "azure-openai",
		APIKey:            "profile-key",
		AzureResourceName: "res",
		AzureDeploymentID: "gpt4o",
		CustomHost:        up.URL,
	}}
	s, _ := newTestServer(t, cfg)

	h := http.Header{}
	h.Set(HeaderProfile, "azure")
	rec := serve(s, http.MethodPost, "/v1/chat/completions", h, strings.NewReader(chatBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	h.Set(HeaderProfile, "nope")
	rec = serve(s, http.MethodPost, "/v1/chat/completions", h, strings.NewReader(chatBody))
	if rec.Code != http.StatusBadRequest || gjson.Get(rec.Body.String(), "error.param").String() != "profile" {
		t.Fatalf("unknown profile: status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestMissingProvider(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := serve(s, http.MethodPost, "/v1/chat/completions", http.Header{}, strings.NewReader(chatBody))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := gjson.Get(rec.Body.String(), "error.param").String(); got != "provider" {
		t.Errorf("param = %q, body = %s", got, rec.Body)
	}
}

func TestMissingCredentials(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := azureHeaders("")
	h.Del("X-Gateway-Api-Key")
	rec := serve(s, http.MethodPost, "/v1/chat/completions", h, strings.NewReader(chatBody))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := gjson.Get(rec.Body.String(), "error.message").String(); !strings.Contains(got, "Missing required credentials") {
		t.Errorf("message = %q", got)
	}
}

func TestAPIKeys(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.APIKeys = []string{"gw-key"}
	s, _ := newTestServer(t, cfg)

	rec := serve(s, http.MethodGet, "/v1/profiles", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", rec.Code)
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer gw-key")
	if rec = serve(s, http.MethodGet, "/v1/profiles", h, nil); rec.Code != http.StatusOK {
		t.Fatalf("bearer: status = %d", rec.Code)
	}
	h = http.Header{}
	h.Set("X-Api-Key", "gw-key")
	if rec = serve(s, http.MethodGet, "/v1/profiles", h, nil); rec.Code != http.StatusOK {
		t.Fatalf("x-api-key: status = %d", rec.Code)
	}
	if rec = serve(s, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: status = %d", rec.Code)
	}
}

func TestPrepareMode(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := azureHeaders("")
	h.Set(HeaderMode, "prepare")
	rec := serve(s, http.MethodPost, "/v1/chat/completions", h, strings.NewReader(chatBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	out := gjson.Parse(rec.Body.String())
	if got := out.Get("url").String(); got != "https://res.openai.azure.com/openai/deployments/gpt4o/chat/completions?api-version=2024-10-21" {
		t.Errorf("url = %s", got)
	}
	if got := out.Get("headers.Api-Key.0").String(); got != "azure-key" {
		t.Errorf("headers = %s", out.Get("headers").Raw)
	}
	if got := gjson.Get(out.Get("body").String(), "messages.0.content").String(); got != "hi" {
		t.Errorf("body = %s", out.Get("body").String())
	}
}

func TestPrepareBedrockEscapedJobID(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := http.Header{}
	h.Set(HeaderProvider, "bedrock")
	h.Set(HeaderMode, "prepare")
	h.Set("X-Gateway-Aws-Access-Key-Id", "AKIDEXAMPLE")
	h.Set("X-Gateway-Aws-Secret-Access-Key", "secret")
	h.Set("X-Gateway-Aws-Region", "us-east-1")
	rec := serve(s, http.MethodGet, "/v1/batches/arn%3Aaws%3Abedrock%3Aus-east-1%3A123%3Amodel-invocation-job%2Fabc", h, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	out := gjson.Parse(rec.Body.String())
	if got := out.Get("url").String(); !strings.HasPrefix(got, "https://bedrock.us-east-1.amazonaws.com/model-invocation-job/arn:aws:bedrock") || !strings.HasSuffix(got, "model-invocation-job%2Fabc") {
		t.Errorf("url = %s", got)
	}
	if got := out.Get("headers.Authorization.0").String(); !strings.HasPrefix(got, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") {
		t.Errorf("authorization = %q", got)
	}
}

func TestPrepareRejectsHandlerOperations(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := azureHeaders("")
	h.Set(HeaderMode, "prepare")
	rec := serve(s, http.MethodGet, "/v1/batches/batch_1/output", h, nil)
	if rec.Code != http.StatusBadRequest || gjson.Get(rec.Body.String(), "error.param").String() != "operation" {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestTranscriptionMultipart(t *testing.T) {
	var gotFile, gotModel string
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		if f, _, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			gotFile = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"hello"}`)
	})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("model", "whisper-1")
	fw, _ := mw.CreateFormFile("file", "clip.wav")
	_, _ = fw.Write([]byte("RIFFDATA"))
	_ = mw.Close()

	s, _ := newTestServer(t, nil)
	h := azureHeaders(up.URL)
	h.Set("Content-Type", mw.FormDataContentType())
	rec := serve(s, http.MethodPost, "/v1/audio/transcriptions", h, &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gotFile != "RIFFDATA" || gotModel != "whisper-1" {
		t.Errorf("upstream got file %q model %q", gotFile, gotModel)
	}
	if got := gjson.Get(rec.Body.String(), "text").String(); got != "hello" {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestUpstreamErrorIsLogged(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit","code":"429"}}`)
	})
	s, reqLog := newTestServer(t, nil)
	rec := serve(s, http.MethodPost, "/v1/chat/completions", azureHeaders(up.URL), strings.NewReader(chatBody))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("Retry-After") != "3" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	out := gjson.Parse(rec.Body.String())
	if !strings.Contains(out.Get("error.message").String(), "slow down") || out.Get("provider").String() != "azure-openai" {
		t.Errorf("body = %s", rec.Body)
	}
	entries, err := os.ReadDir(reqLog.Dir())
	if err != nil || len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "error-") {
		t.Fatalf("request log entries = %v, %v", entries, err)
	}
}

func TestStreamPassthrough(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[]}\n\ndata: [DONE]\n\n")
	})
	s, reqLog := newTestServer(t, nil)
	reqLog.SetEnabled(true)
	body := `{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	rec := serve(s, http.MethodPost, "/v1/chat/completions", azureHeaders(up.URL), strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content-type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "data: [DONE]") {
		t.Errorf("body = %q", rec.Body)
	}
	if entries, _ := os.ReadDir(reqLog.Dir()); len(entries) != 1 {
		t.Errorf("stream was not logged: %v", entries)
	}
}

func TestUpdateConfigSwapsProfiles(t *testing.T) {
	s, _ := newTestServer(t, nil)
	next := config.NewDefaultConfig()
	next.Profiles = map[string]config.Profile{"b": {Provider: "bedrock"}}
	s.UpdateConfig(next)

	rec := serve(s, http.MethodGet, "/v1/profiles", nil, nil)
	if got := gjson.Get(rec.Body.String(), "data.0.name").String(); got != "b" {
		t.Fatalf("profiles = %s", rec.Body)
	}
	if s.Config() != next {
		t.Fatal("config not swapped")
	}
}

func TestRequestTimeoutIsGatewayTimeout(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	cfg := config.NewDefaultConfig()
	cfg.RequestTimeout = 1
	s, _ := newTestServer(t, cfg)

	rec := serve(s, http.MethodPost, "/v1/chat/completions", azureHeaders(up.URL), strings.NewReader(chatBody))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := gjson.Get(rec.Body.String(), "error.type").String(); got != "timeout_error" {
		t.Errorf("type = %q", got)
	}
}

func TestClientDisconnectIsNotServerError(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"c1","choices":[]}`)
	})
	s, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody)).WithContext(ctx)
	for k, v := range azureHeaders(up.URL) {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != 499 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestFileContentIsStreamed(t *testing.T) {
	payload := strings.Repeat("x", 256<<10)
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/file-1/content" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, payload)
	})
	s, _ := newTestServer(t, nil)

	rec := serve(s, http.MethodGet, "/v1/files/file-1/content", azureHeaders(up.URL), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec.Body.Len() != len(payload) {
		t.Errorf("received %d bytes, want %d", rec.Body.Len(), len(payload))
	}
}
