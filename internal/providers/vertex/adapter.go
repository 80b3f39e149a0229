// Package vertex adapts unified calls to Google Vertex AI: Gemini, Claude,
// Llama and custom endpoints for inference, and batch prediction jobs with
// Cloud Storage files.
package vertex

import (
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/routing"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Adapter is the Vertex AI operation table.
type Adapter struct {
	google    providers.Table
	anthropic providers.Table
	openai    map[string]providers.Table
	resources providers.Table
}

// New returns the Vertex adapter.
func New() *Adapter {
	stamp := providers.StampProvider(provider.VertexAI)
	return &Adapter{
		google: providers.Table{
			unified.OpChatComplete:  {Params: googleChatParams, Response: googleChatResponse},
			unified.OpEmbed:         {Params: embedParams, Response: embedResponse},
			unified.OpImageGenerate: {Params: imageParams, Response: imageResponse},
		},
		anthropic: providers.Table{
			unified.OpChatComplete: {Params: anthropicChatParams, Response: anthropicChatResponse},
		},
		openai: map[string]providers.Table{
			routing.VertexFamilyMeta: {
				unified.OpChatComplete: {Params: openAIChatParams("meta/"), Response: stamp},
			},
			routing.VertexFamilyEndpoints: {
				unified.OpChatComplete: {Params: openAIChatParams(""), Response: stamp},
			},
		},
		resources: providers.Table{
			unified.OpUploadFile:          {Handler: uploadFile},
			unified.OpRetrieveFileContent: {},
			unified.OpCreateBatch:         {Handler: createBatch},
			unified.OpRetrieveBatch:       {Response: retrieveBatchResponse},
			unified.OpListBatches:         {Response: listBatchesResponse},
			unified.OpCancelBatch:         {Handler: cancelBatch},
			unified.OpGetBatchOutput:      {Handler: getBatchOutput},
		},
	}
}

// Name implements providers.Adapter.
func (a *Adapter) Name() provider.Name { return provider.VertexAI }

// Operation selects the table by model family for inference operations.
// Claude models only serve chat on Vertex.
func (a *Adapter) Operation(op unified.Operation, req *unified.Request) (providers.OperationConfig, bool) {
	if op.IsResource() {
		return a.resources.Lookup(op)
	}
	family, _ := routingModel(req)
	switch family {
	case routing.VertexFamilyAnthropic:
		return a.anthropic.Lookup(op)
	case routing.VertexFamilyMeta, routing.VertexFamilyEndpoints:
		return a.openai[family].Lookup(op)
	}
	return a.google.Lookup(op)
}

func routingModel(req *unified.Request) (family, name string) {
	if req == nil {
		return routing.VertexFamilyGoogle, ""
	}
	return routing.VertexModel(req.Model())
}

// openAIChatParams forwards the OpenAI chat body. The model is rewritten to
// prefix/name, or dropped when prefix is empty since the endpoint id is in
// the path.
func openAIChatParams(prefix string) []transform.ParamSpec {
	specs := providers.Passthrough(providers.ChatFields, "messages")
	for i := range specs {
		if specs[i].Field != "model" {
			continue
		}
		if prefix == "" {
			specs[i].Transform = transform.Const(nil)
		} else {
			specs[i].Transform = func(value any, req *unified.Request) (any, error) {
				_, name := routingModel(req)
				return prefix + name, nil
			}
		}
	}
	return specs
}
