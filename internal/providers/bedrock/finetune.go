package bedrock

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/storage"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// finetuneParams builds CreateModelCustomizationJob bodies. File ids arrive
// URL-encoded.
var finetuneParams = []transform.ParamSpec{
	{Field: "model", Param: "baseModelIdentifier", Required: true},
	{Field: "suffix", Param: "customModelName", Required: true},
	{Field: "hyperparameters", Param: "hyperParameters", Transform: hyperParameters},
	{Field: "training_file", Param: "trainingDataConfig", Required: true, Transform: s3Config},
	{Field: "validation_file", Param: "validationDataConfig", Transform: validationConfig},
	{Field: "output_file", Param: "outputDataConfig", Required: true, DefaultFunc: defaultFinetuneOutput, Transform: s3Config},
	{Field: "job_name", Param: "jobName", Required: true, DefaultFunc: func(*unified.Request) any {
		return "llm-adapter-finetune-" + uuid.NewString()
	}},
	{Field: "role_arn", Param: "roleArn", Required: true},
	{Field: "customization_type", Param: "customizationType", Required: true, Default: "FINE_TUNING"},
}

var hyperParameterNames = []struct{ from, to string }{
	{"n_epochs", "epochCount"},
	{"learning_rate_multiplier", "learningRateMultiplier"},
	{"batch_size", "batchSize"},
}

// hyperParameters renames the OpenAI knobs; Bedrock takes every value as a
// string.
func hyperParameters(value any, _ *unified.Request) (any, error) {
	in, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	out := map[string]any{}
	for _, n := range hyperParameterNames {
		if v, ok := in[n.from]; ok && v != nil && v != "auto" {
			out[n.to] = transform.Stringify(v)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func s3Config(value any, _ *unified.Request) (any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"s3Uri": transform.DecodeURIComponent(transform.Stringify(value))}, nil
}

func validationConfig(value any, req *unified.Request) (any, error) {
	cfg, err := s3Config(value, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"validators": []any{cfg}}, nil
}

// defaultFinetuneOutput places the model output next to the training file,
// under the custom model name.
func defaultFinetuneOutput(req *unified.Request) any {
	training := transform.DecodeURIComponent(req.String("training_file"))
	if training == "" || req.String("suffix") == "" {
		return nil
	}
	return storage.Dir(training) + req.String("suffix")
}

// createFinetuneResponse only accepts 201; the job is identified by its
// encoded ARN.
func createFinetuneResponse(status int, body []byte, _ *unified.Request) ([]byte, error) {
	arn := gjson.GetBytes(body, "jobArn").String()
	if status != http.StatusCreated || arn == "" {
		return nil, normalize.Upstream(provider.Bedrock, status, body)
	}
	return json.Marshal(map[string]any{"id": normalize.BedrockJobID(arn)})
}

func retrieveFinetuneResponse(_ int, body []byte, _ *unified.Request) ([]byte, error) {
	return json.Marshal(normalize.BedrockFinetune(gjson.ParseBytes(body)))
}
