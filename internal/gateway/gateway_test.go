package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers/providerstest"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

type upstream struct {
	hits    atomic.Int32
	lastReq atomic.Pointer[http.Request]
	body    atomic.Pointer[[]byte]
	handler http.HandlerFunc
}

func newUpstream(t *testing.T, h http.HandlerFunc) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{handler: h}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		data, _ := io.ReadAll(r.Body)
		u.body.Store(&data)
		u.lastReq.Store(r.Clone(context.Background()))
		u.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return u, srv
}

func azureOptions(host string) *provider.Options {
	return &provider.Options{
		Provider:          provider.AzureOpenAI,
		APIKey:            "azure-key",
		AzureResourceName: "res",
		AzureDeploymentID: "gpt4o",
		CustomHost:        host,
	}
}

func chatCall(opts *provider.Options, fields map[string]any, stream bool) *Call {
	return &Call{
		Operation: unified.OpChatComplete,
		Request:   unified.NewRequest(unified.OpChatComplete, fields, stream),
		Options:   opts,
	}
}

var hello = map[string]any{
	"model":    "gpt-4o",
	"messages": []any{map[string]any{"role": "user", "content": "hi"}},
}

func TestPrepareAzureChat(t *testing.T) {
	b, err := New().Prepare(context.Background(), chatCall(azureOptions(""), hello, false))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if b.Method != http.MethodPost {
		t.Errorf("method = %s", b.Method)
	}
	if want := "https://res.openai.azure.com/openai/deployments/gpt4o/chat/completions?api-version=2024-10-21"; b.URL != want {
		t.Errorf("url = %s\nwant %s", b.URL, want)
	}
	if b.Headers.Get("api-key") != "azure-key" {
		t.Errorf("api-key header = %q", b.Headers.Get("api-key"))
	}
	if got := gjson.GetBytes(b.Body, "messages.0.content").String(); got != "hi" {
		t.Errorf("body = %s", b.Body)
	}
}

func TestDoAzureChat(t *testing.T) {
	up, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hey"}}]}`)
	})
	res, err := New().Do(context.Background(), chatCall(azureOptions(srv.URL), hello, false))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := gjson.GetBytes(res.Body, "provider").String(); got != string(provider.AzureOpenAI) {
		t.Errorf("provider = %s", got)
	}
	r := up.lastReq.Load()
	if r.URL.Path != "/deployments/gpt4o/chat/completions" || r.URL.Query().Get("api-version") == "" {
		t.Errorf("upstream got %s", r.URL)
	}
	if r.Header.Get("api-key") != "azure-key" {
		t.Errorf("api-key = %q", r.Header.Get("api-key"))
	}
}

func TestValidationErrorMakesNoNetworkCall(t *testing.T) {
	up, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := New().Do(context.Background(), chatCall(azureOptions(srv.URL), map[string]any{"model": "gpt-4o"}, false))
	var ve *unified.ValidationError
	if !errors.As(err, &ve) || ve.Field != "messages" {
		t.Fatalf("err = %v, want missing messages", err)
	}
	if up.hits.Load() != 0 {
		t.Errorf("upstream was called %d times", up.hits.Load())
	}
}

func TestMissingCredentials(t *testing.T) {
	up, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	opts := azureOptions(srv.URL)
	opts.APIKey = ""
	_, err := New().Do(context.Background(), chatCall(opts, hello, false))
	uerr, status := unified.AsError(err, string(provider.AzureOpenAI))
	if uerr.Message != unified.ErrMissingCredentials || status != http.StatusBadRequest {
		t.Errorf("error = %+v (%d)", uerr, status)
	}
	if up.hits.Load() != 0 {
		t.Error("upstream was called without credentials")
	}
}

func TestUpstreamErrorIsNormalized(t *testing.T) {
	_, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit_error","code":"429"}}`)
	})
	_, err := New().Do(context.Background(), chatCall(azureOptions(srv.URL), hello, false))
	uerr, status := unified.AsError(err, string(provider.AzureOpenAI))
	if status != http.StatusTooManyRequests {
		t.Errorf("status = %d", status)
	}
	if uerr.Message != "slow down" || uerr.Provider != string(provider.AzureOpenAI) {
		t.Errorf("error = %+v", uerr)
	}
}

func TestStreamPassthrough(t *testing.T) {
	_, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[]}\n\ndata: [DONE]\n\n")
	})
	fields := map[string]any{"model": "gpt-4o", "stream": true, "messages": hello["messages"]}
	res, err := New().Do(context.Background(), chatCall(azureOptions(srv.URL), fields, true))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Stream == nil {
		t.Fatal("expected a stream")
	}
	defer func() { _ = res.Stream.Close() }()
	data, _ := io.ReadAll(res.Stream)
	if !strings.Contains(string(data), "[DONE]") {
		t.Errorf("stream = %q", data)
	}
	if res.ContentType != "text/event-stream" {
		t.Errorf("content type = %s", res.ContentType)
	}
}

func TestRawPassthrough(t *testing.T) {
	_, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90})
	})
	call := &Call{
		Operation: unified.OpCreateSpeech,
		Request:   unified.NewRequest(unified.OpCreateSpeech, map[string]any{"model": "tts-1", "input": "hi", "voice": "alloy"}, false),
		Options:   azureOptions(srv.URL),
	}
	res, err := New().Do(context.Background(), call)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.ContentType != "audio/mpeg" || len(res.Body) != 3 {
		t.Errorf("result = %s %v", res.ContentType, res.Body)
	}
}

func TestBedrockChatIsSigned(t *testing.T) {
	up, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output":{"message":{"role":"assistant","content":[{"text":"hey"}]}},"stopReason":"end_turn","usage":{"inputTokens":1,"outputTokens":1,"totalTokens":2}}`)
	})
	opts := &provider.Options{
		Provider:           provider.Bedrock,
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret",
		AWSRegion:          "us-east-1",
		CustomHost:         srv.URL,
	}
	fields := map[string]any{"model": "anthropic.claude-3-haiku", "messages": hello["messages"], "max_tokens": float64(10)}
	res, err := New().Do(context.Background(), chatCall(opts, fields, false))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := gjson.GetBytes(res.Body, "choices.0.message.content").String(); got != "hey" {
		t.Errorf("body = %s", res.Body)
	}
	r := up.lastReq.Load()
	if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") {
		t.Errorf("authorization = %q", r.Header.Get("Authorization"))
	}
	if r.URL.Path != "/model/anthropic.claude-3-haiku/converse" {
		t.Errorf("path = %s", r.URL.Path)
	}
	if got := gjson.GetBytes(*up.body.Load(), "inferenceConfig.maxTokens").Int(); got != 10 {
		t.Errorf("upstream body = %s", *up.body.Load())
	}
}

func TestUnsupportedOperation(t *testing.T) {
	opts := &provider.Options{Provider: provider.Bedrock, AWSAccessKeyID: "a", AWSSecretAccessKey: "b", AWSRegion: "us-east-1"}
	call := &Call{
		Operation: unified.OpCreateSpeech,
		Request:   unified.NewRequest(unified.OpCreateSpeech, map[string]any{"model": "x", "input": "hi"}, false),
		Options:   opts,
	}
	_, err := New().Do(context.Background(), call)
	var ve *unified.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestHandlerOperation(t *testing.T) {
	up, srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/batches/batch_1"):
			_, _ = io.WriteString(w, `{"id":"batch_1","status":"completed","output_file_id":"file-1"}`)
		case r.URL.Path == "/files/file-1/content":
			_, _ = io.WriteString(w, `{"custom_id":"a"}`+"\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	call := &Call{
		Operation:  unified.OpGetBatchOutput,
		Options:    azureOptions(srv.URL),
		PathParams: map[string]string{"id": "batch_1"},
	}
	g := New()
	if _, err := g.Prepare(context.Background(), call); !errors.Is(err, ErrHandlerOperation) {
		t.Errorf("Prepare err = %v", err)
	}
	res, err := g.Do(context.Background(), call)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if body := providerstest.ReadBody(t, res); string(body) != `{"custom_id":"a"}`+"\n" {
		t.Errorf("body = %q", body)
	}
	if up.hits.Load() != 2 {
		t.Errorf("hits = %d", up.hits.Load())
	}
	if up.lastReq.Load().Header.Get("api-key") != "azure-key" {
		t.Error("handler requests must carry credentials")
	}
}

func TestUnknownProvider(t *testing.T) {
	_, err := New().Do(context.Background(), chatCall(&provider.Options{Provider: "nope"}, hello, false))
	var ve *unified.ValidationError
	if !errors.As(err, &ve) || ve.Field != "provider" {
		t.Fatalf("err = %v", err)
	}
}
