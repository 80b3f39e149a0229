// Package azure adapts unified calls to Azure OpenAI. Bodies are already
// OpenAI-shaped, so most operations forward a declared field set and stamp
// the provider on the response.
package azure

import (
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/unified"
)

var finetuneFields = []string{"model", "training_file", "validation_file", "hyperparameters", "suffix", "seed", "method"}

// Adapter is the Azure OpenAI operation table.
type Adapter struct {
	ops providers.Table
}

// New returns the Azure OpenAI adapter.
func New() *Adapter {
	stamp := providers.StampProvider(provider.AzureOpenAI)
	return &Adapter{ops: providers.Table{
		unified.OpChatComplete:        {Params: providers.Passthrough(providers.ChatFields, "messages"), Response: stamp},
		unified.OpComplete:            {Params: providers.Passthrough(providers.CompleteFields, "prompt"), Response: stamp},
		unified.OpEmbed:               {Params: providers.Passthrough(providers.EmbedFields, "input"), Response: stamp},
		unified.OpImageGenerate:       {Params: providers.Passthrough(providers.ImageFields, "prompt"), Response: stamp},
		unified.OpCreateSpeech:        {Params: providers.Passthrough(providers.SpeechFields, "input", "voice")},
		unified.OpCreateTranscription: {Handler: multipartHandler(transcriptionFields)},
		unified.OpCreateTranslation:   {Handler: multipartHandler(translationFields)},
		unified.OpCreateFinetune:      {Params: providers.Passthrough(finetuneFields, "model", "training_file"), Response: stamp},
		unified.OpRetrieveFinetune:    {Response: stamp},
		unified.OpUploadFile:          {Handler: multipartHandler([]string{"purpose"})},
		unified.OpListFiles:           {Response: stamp},
		unified.OpRetrieveFile:        {Response: stamp},
		unified.OpDeleteFile:          {Response: stamp},
		unified.OpRetrieveFileContent: {},
		unified.OpCreateBatch:         {Params: providers.Passthrough(providers.BatchFields, "input_file_id", "endpoint"), Response: stamp},
		unified.OpRetrieveBatch:       {Response: stamp},
		unified.OpListBatches:         {Response: stamp},
		unified.OpCancelBatch:         {Response: stamp},
		unified.OpGetBatchOutput:      {Handler: getBatchOutput},
	}}
}

// Name implements providers.Adapter.
func (a *Adapter) Name() provider.Name { return provider.AzureOpenAI }

// Operation implements providers.Adapter.
func (a *Adapter) Operation(op unified.Operation, _ *unified.Request) (providers.OperationConfig, bool) {
	return a.ops.Lookup(op)
}
