// Package unified defines the provider-independent request, response and error
// shapes exchanged between the gateway's dispatch layer and the provider adapters.
package unified

// Operation names one endpoint of the unified contract.
type Operation string

const (
	OpChatComplete        Operation = "chatComplete"
	OpComplete            Operation = "complete"
	OpEmbed               Operation = "embed"
	OpImageGenerate       Operation = "imageGenerate"
	OpCreateSpeech        Operation = "createSpeech"
	OpCreateTranscription Operation = "createTranscription"
	OpCreateTranslation   Operation = "createTranslation"
	OpCreateFinetune      Operation = "createFinetune"
	OpRetrieveFinetune    Operation = "retrieveFinetune"
	OpCreateBatch         Operation = "createBatch"
	OpRetrieveBatch       Operation = "retrieveBatch"
	OpListBatches         Operation = "listBatches"
	OpCancelBatch         Operation = "cancelBatch"
	OpGetBatchOutput      Operation = "getBatchOutput"
	OpUploadFile          Operation = "uploadFile"
	OpRetrieveFile        Operation = "retrieveFile"
	OpListFiles           Operation = "listFiles"
	OpDeleteFile          Operation = "deleteFile"
	OpRetrieveFileContent Operation = "retrieveFileContent"
)

var fileOperations = map[Operation]struct{}{
	OpUploadFile:          {},
	OpRetrieveFile:        {},
	OpListFiles:           {},
	OpDeleteFile:          {},
	OpRetrieveFileContent: {},
}

var jobOperations = map[Operation]struct{}{
	OpCreateBatch:      {},
	OpRetrieveBatch:    {},
	OpListBatches:      {},
	OpCancelBatch:      {},
	OpGetBatchOutput:   {},
	OpCreateFinetune:   {},
	OpRetrieveFinetune: {},
}

// IsFile reports whether op manipulates stored files.
func (op Operation) IsFile() bool {
	_, ok := fileOperations[op]
	return ok
}

// IsResource reports whether op is a file or job CRUD operation. Resource
// operations are routed without consulting the model string.
func (op Operation) IsResource() bool {
	if op.IsFile() {
		return true
	}
	_, ok := jobOperations[op]
	return ok
}

// IsDownload reports whether op returns raw file bytes that may be large.
func (op Operation) IsDownload() bool {
	return op == OpGetBatchOutput || op == OpRetrieveFileContent
}

// IsInference is the complement of IsResource.
func (op Operation) IsInference() bool { return !op.IsResource() }

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpChatComplete, OpComplete, OpEmbed, OpImageGenerate, OpCreateSpeech,
		OpCreateTranscription, OpCreateTranslation:
		return true
	}
	return op.IsResource()
}

func (op Operation) String() string { return string(op) }
