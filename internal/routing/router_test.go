package routing

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

func vertexOpts() *provider.Options {
	return &provider.Options{Provider: provider.VertexAI, VertexProjectID: "proj", VertexRegion: "us-central1"}
}

func TestVertexInferenceRoutes(t *testing.T) {
	r := NewRouter()
	cases := []struct {
		name   string
		op     unified.Operation
		model  string
		stream bool
		want   string
	}{
		{"gemini", unified.OpChatComplete, "gemini-1.5-pro", false, "/v1/projects/proj/locations/us-central1/publishers/google/models/gemini-1.5-pro:generateContent"},
		{"gemini stream", unified.OpChatComplete, "google.gemini-1.5-pro", true, "/v1/projects/proj/locations/us-central1/publishers/google/models/gemini-1.5-pro:streamGenerateContent?alt=sse"},
		{"thinking exp", unified.OpChatComplete, "gemini-2.0-flash-thinking-exp-01-21", false, "/v1beta1/projects/proj/locations/us-central1/publishers/google/models/gemini-2.0-flash-thinking-exp-01-21:generateContent"},
		{"embed", unified.OpEmbed, "text-embedding-004", false, "/v1/projects/proj/locations/us-central1/publishers/google/models/text-embedding-004:predict"},
		{"claude", unified.OpChatComplete, "anthropic.claude-3-5-sonnet@20240620", false, "/v1/projects/proj/locations/us-central1/publishers/anthropic/models/claude-3-5-sonnet@20240620:rawPredict"},
		{"claude stream", unified.OpChatComplete, "anthropic.claude-3-5-sonnet@20240620", true, "/v1/projects/proj/locations/us-central1/publishers/anthropic/models/claude-3-5-sonnet@20240620:streamRawPredict"},
		{"llama", unified.OpChatComplete, "meta.llama-3.1-405b", false, "/v1beta1/projects/proj/locations/us-central1/endpoints/openapi/chat/completions"},
		{"endpoint", unified.OpChatComplete, "endpoints.12345", false, "/v1/projects/proj/locations/us-central1/endpoints/12345/chat/completions"},
		{"unknown family", unified.OpChatComplete, "mistral.large", false, "/v1/projects/proj/locations/us-central1/publishers/google/models/mistral.large:generateContent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ep, err := r.Resolve(Target{Provider: provider.VertexAI, Operation: tc.op, Model: tc.model, Stream: tc.stream, Options: vertexOpts()})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if ep.BaseURL != "https://us-central1-aiplatform.googleapis.com" {
				t.Errorf("BaseURL = %s", ep.BaseURL)
			}
			if ep.Path != tc.want {
				t.Errorf("Path = %s\nwant %s", ep.Path, tc.want)
			}
		})
	}
}

func TestVertexServiceAccountProjectWins(t *testing.T) {
	opts := vertexOpts()
	opts.VertexServiceAccountJSON = []byte(`{"project_id":"sa-proj","client_email":"svc@sa-proj.iam.gserviceaccount.com"}`)
	ep, err := NewRouter().Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpRetrieveBatch, PathParams: map[string]string{"id": "42"}, Options: opts})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "/v1/projects/sa-proj/locations/us-central1/batchPredictionJobs/42"; ep.Path != want {
		t.Errorf("Path = %s, want %s", ep.Path, want)
	}
	if ep.Method != http.MethodGet {
		t.Errorf("Method = %s", ep.Method)
	}
}

func TestVertexResourceRoutesIgnoreModel(t *testing.T) {
	r := NewRouter()
	for _, model := range []string{"", "meta.llama", "anthropic.claude"} {
		ep, err := r.Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpListBatches, Model: model, Query: map[string]string{"limit": "5", "after": "tok"}, Options: vertexOpts()})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", model, err)
		}
		if want := "/v1/projects/proj/locations/us-central1/batchPredictionJobs?pageSize=5&pageToken=tok"; ep.Path != want {
			t.Errorf("model %q: Path = %s", model, ep.Path)
		}
	}

	ep, err := r.Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpCancelBatch, PathParams: map[string]string{"id": "7"}, Options: vertexOpts()})
	if err != nil || !strings.HasSuffix(ep.Path, "/batchPredictionJobs/7:cancel") {
		t.Errorf("cancel: %v %s", err, ep.Path)
	}

	ep, err = r.Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpListBatches, Options: vertexOpts()})
	if err != nil || !strings.HasSuffix(ep.Path, "?pageSize=20&pageToken=") {
		t.Errorf("list defaults: %v %s", err, ep.Path)
	}
}

func TestCustomHandlerOperationsResolveToEmptyPath(t *testing.T) {
	r := NewRouter()
	targets := []Target{
		{Provider: provider.VertexAI, Operation: unified.OpUploadFile, Options: vertexOpts()},
		{Provider: provider.VertexAI, Operation: unified.OpCreateBatch, Options: vertexOpts()},
		{Provider: provider.Bedrock, Operation: unified.OpUploadFile, Options: &provider.Options{AWSRegion: "us-east-1"}},
		{Provider: provider.AzureOpenAI, Operation: unified.OpGetBatchOutput, Options: &provider.Options{AzureResourceName: "res"}},
	}
	for _, tgt := range targets {
		ep, err := r.Resolve(tgt)
		if err != nil {
			t.Fatalf("%s %s: %v", tgt.Provider, tgt.Operation, err)
		}
		if !ep.NeedsHandler() {
			t.Errorf("%s %s: expected empty path, got %s", tgt.Provider, tgt.Operation, ep.Path)
		}
	}
}

func TestStreamingChangesOnlySuffix(t *testing.T) {
	r := NewRouter()
	targets := []Target{
		{Provider: provider.VertexAI, Operation: unified.OpChatComplete, Model: "gemini-1.5-flash", Options: vertexOpts()},
		{Provider: provider.VertexAI, Operation: unified.OpChatComplete, Model: "anthropic.claude-3-haiku@20240307", Options: vertexOpts()},
		{Provider: provider.Bedrock, Operation: unified.OpChatComplete, Model: "anthropic.claude-3-haiku-20240307-v1:0", Options: &provider.Options{AWSRegion: "eu-west-1"}},
		{Provider: provider.Bedrock, Operation: unified.OpEmbed, Model: "amazon.titan-embed-text-v2:0", Options: &provider.Options{AWSRegion: "eu-west-1"}},
	}
	for _, tgt := range targets {
		plain, err := r.Resolve(tgt)
		if err != nil {
			t.Fatalf("%s: %v", tgt.Model, err)
		}
		tgt.Stream = true
		streamed, err := r.Resolve(tgt)
		if err != nil {
			t.Fatalf("%s stream: %v", tgt.Model, err)
		}
		if plain.BaseURL != streamed.BaseURL || plain.Method != streamed.Method {
			t.Errorf("%s: host or method changed with stream flag", tgt.Model)
		}
		if plain.Path == streamed.Path {
			t.Errorf("%s: stream flag did not change the path", tgt.Model)
		}
		sep := ":"
		if tgt.Provider == provider.Bedrock {
			sep = "/"
		}
		cut := func(p string) string { return p[:strings.LastIndex(p, sep)] }
		if cut(plain.Path) != cut(streamed.Path) {
			t.Errorf("%s: prefix differs\n%s\n%s", tgt.Model, plain.Path, streamed.Path)
		}
	}
}

func TestBedrockRoutes(t *testing.T) {
	r := NewRouter()
	opts := &provider.Options{AWSRegion: "us-west-2"}
	cases := []struct {
		op     unified.Operation
		model  string
		id     string
		base   string
		path   string
		method string
	}{
		{unified.OpChatComplete, "anthropic.claude-3-haiku-20240307-v1:0", "", "https://bedrock-runtime.us-west-2.amazonaws.com", "/model/anthropic.claude-3-haiku-20240307-v1:0/converse", http.MethodPost},
		{unified.OpEmbed, "cohere.embed-english-v3", "", "https://bedrock-runtime.us-west-2.amazonaws.com", "/model/cohere.embed-english-v3/invoke", http.MethodPost},
		{unified.OpCreateFinetune, "", "", "https://bedrock.us-west-2.amazonaws.com", "/model-customization-jobs", http.MethodPost},
		{unified.OpRetrieveFinetune, "", "job-1", "https://bedrock.us-west-2.amazonaws.com", "/model-customization-jobs/job-1", http.MethodGet},
		{unified.OpCreateBatch, "", "", "https://bedrock.us-west-2.amazonaws.com", "/model-invocation-job", http.MethodPost},
		{unified.OpRetrieveBatch, "", "b1", "https://bedrock.us-west-2.amazonaws.com", "/model-invocation-job/b1", http.MethodGet},
		{unified.OpCancelBatch, "", "b1", "https://bedrock.us-west-2.amazonaws.com", "/model-invocation-job/b1/stop", http.MethodPost},
		{unified.OpListBatches, "", "", "https://bedrock.us-west-2.amazonaws.com", "/model-invocation-jobs?maxResults=20", http.MethodGet},
		{unified.OpRetrieveBatch, "", "arn%3Aaws%3Abedrock%3Aus-west-2%3A1%3Amodel-invocation-job%2Fab", "https://bedrock.us-west-2.amazonaws.com", "/model-invocation-job/arn:aws:bedrock:us-west-2:1:model-invocation-job%2Fab", http.MethodGet},
	}
	for _, tc := range cases {
		ep, err := r.Resolve(Target{Provider: provider.Bedrock, Operation: tc.op, Model: tc.model, PathParams: map[string]string{"id": tc.id}, Options: opts})
		if err != nil {
			t.Fatalf("%s: %v", tc.op, err)
		}
		if ep.BaseURL != tc.base || ep.Path != tc.path || ep.Method != tc.method {
			t.Errorf("%s: got %s %s%s", tc.op, ep.Method, ep.BaseURL, ep.Path)
		}
	}
}

func TestAzureRoutes(t *testing.T) {
	r := NewRouter()
	opts := &provider.Options{AzureResourceName: "acme", AzureDeploymentID: "gpt4o", AzureAPIVersion: "2024-06-01"}

	ep, err := r.Resolve(Target{Provider: provider.AzureOpenAI, Operation: unified.OpChatComplete, Model: "gpt-4o", Options: opts})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := ep.URL(); got != "https://acme.openai.azure.com/openai/deployments/gpt4o/chat/completions?api-version=2024-06-01" {
		t.Errorf("URL = %s", got)
	}

	ep, err = r.Resolve(Target{Provider: provider.AzureOpenAI, Operation: unified.OpDeleteFile, PathParams: map[string]string{"id": "file-1"}, Options: opts})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.Method != http.MethodDelete || ep.Path != "/files/file-1?api-version=2024-06-01" {
		t.Errorf("delete file: %s %s", ep.Method, ep.Path)
	}
}

func TestResourceIDsArePathEscaped(t *testing.T) {
	r := NewRouter()
	cases := []struct {
		target Target
		want   string
	}{
		{Target{Provider: provider.VertexAI, Operation: unified.OpRetrieveBatch, PathParams: map[string]string{"id": "42/../99?x=1"}, Options: vertexOpts()},
			"/v1/projects/proj/locations/us-central1/batchPredictionJobs/42%2F..%2F99%3Fx=1"},
		{Target{Provider: provider.VertexAI, Operation: unified.OpCancelBatch, PathParams: map[string]string{"id": "7?a"}, Options: vertexOpts()},
			"/v1/projects/proj/locations/us-central1/batchPredictionJobs/7%3Fa:cancel"},
		{Target{Provider: provider.AzureOpenAI, Operation: unified.OpRetrieveFile, PathParams: map[string]string{"id": "file/1"}, Options: &provider.Options{AzureResourceName: "acme"}},
			"/files/file%2F1?api-version=" + DefaultAzureAPIVersion},
	}
	for _, tc := range cases {
		ep, err := r.Resolve(tc.target)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tc.target.Operation, err)
		}
		if ep.Path != tc.want {
			t.Errorf("%s: Path = %s, want %s", tc.target.Operation, ep.Path, tc.want)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewRouter()

	_, err := r.Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpEmbed, Model: "anthropic.claude", Options: vertexOpts()})
	if !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}

	_, err = r.Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpRetrieveBatch, Options: vertexOpts()})
	var ve *unified.ValidationError
	if !errors.As(err, &ve) || ve.Field != "id" {
		t.Errorf("expected ValidationError for id, got %v", err)
	}

	_, err = r.Resolve(Target{Provider: provider.Bedrock, Operation: unified.OpChatComplete, Model: "m"})
	if !errors.As(err, &ve) || ve.Field != "aws_region" {
		t.Errorf("expected ValidationError for aws_region, got %v", err)
	}

	if _, err = r.Resolve(Target{Provider: provider.Name("nope"), Operation: unified.OpChatComplete, Model: "m"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestCustomHostOverridesBaseURL(t *testing.T) {
	opts := vertexOpts()
	opts.CustomHost = "http://127.0.0.1:9999/"
	ep, err := NewRouter().Resolve(Target{Provider: provider.VertexAI, Operation: unified.OpChatComplete, Model: "gemini-pro", Options: opts})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(ep.URL(), "http://127.0.0.1:9999/v1/projects/proj/") {
		t.Errorf("URL = %s", ep.URL())
	}
}

func TestSplitGCSURI(t *testing.T) {
	b, o, ok := SplitGCSURI("gs%3A%2F%2Fbucket%2Fout%2Fpredictions.jsonl")
	if !ok || b != "bucket" || o != "out/predictions.jsonl" {
		t.Errorf("got %q %q %v", b, o, ok)
	}
	if _, _, ok = SplitGCSURI("s3://bucket/x"); ok {
		t.Error("s3 uri accepted")
	}
}
