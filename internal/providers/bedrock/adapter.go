// Package bedrock adapts unified calls to AWS Bedrock: Converse chat, Titan
// and Cohere embeddings, model-customization (fine-tune) jobs and
// model-invocation (batch) jobs with S3 files.
package bedrock

import (
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Adapter is the Bedrock operation table.
type Adapter struct {
	ops         providers.Table
	cohereEmbed providers.OperationConfig
}

// New returns the Bedrock adapter.
func New() *Adapter {
	return &Adapter{
		ops: providers.Table{
			unified.OpChatComplete:     {Params: converseParams, Response: converseResponse},
			unified.OpEmbed:            {Params: titanEmbedParams, Response: titanEmbedResponse},
			unified.OpCreateFinetune:   {Params: finetuneParams, Response: createFinetuneResponse},
			unified.OpRetrieveFinetune: {Response: retrieveFinetuneResponse},
			unified.OpCreateBatch:      {Params: createBatchParams, Response: createBatchResponse},
			unified.OpRetrieveBatch:    {Response: retrieveBatchResponse},
			unified.OpListBatches:      {Response: listBatchesResponse},
			unified.OpCancelBatch:      {Handler: cancelBatch},
			unified.OpGetBatchOutput:   {Handler: getBatchOutput},
			unified.OpUploadFile:       {Handler: uploadFile},
		},
		cohereEmbed: providers.OperationConfig{Params: cohereEmbedParams, Response: cohereEmbedResponse},
	}
}

// Name implements providers.Adapter.
func (a *Adapter) Name() provider.Name { return provider.Bedrock }

// Operation implements providers.Adapter. Embedding bodies differ between
// the Titan and Cohere families.
func (a *Adapter) Operation(op unified.Operation, req *unified.Request) (providers.OperationConfig, bool) {
	if op == unified.OpEmbed && req != nil && isCohere(req.Model()) {
		return a.cohereEmbed, true
	}
	return a.ops.Lookup(op)
}
