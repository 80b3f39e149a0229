package llmadapter

import (
	"context"
	"strings"
	"testing"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

func TestNewGatewayPreparesRequest(t *testing.T) {
	gw, closeFn, err := NewGateway(context.Background(), NewConfig())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer func() { _ = closeFn() }()

	req, err := ParseRequest(unified.OpChatComplete, []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	b, err := gw.Prepare(context.Background(), &Call{
		Operation: unified.OpChatComplete,
		Request:   req,
		Options: &Options{
			Provider:          provider.AzureOpenAI,
			APIKey:            "k",
			AzureResourceName: "res",
			AzureDeploymentID: "gpt4o",
		},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !strings.HasPrefix(b.URL, "https://res.openai.azure.com/openai/deployments/gpt4o/chat/completions") {
		t.Errorf("url = %s", b.URL)
	}
	if b.Headers.Get("api-key") != "k" {
		t.Errorf("api-key = %q", b.Headers.Get("api-key"))
	}
}

func TestNewGatewayRejectsBadBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.CredentialCache.Backend = "etcd"
	if _, _, err := NewGateway(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}
