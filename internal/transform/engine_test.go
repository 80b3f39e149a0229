package transform

import (
	"errors"
	"testing"

	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

func chatSpecs() []ParamSpec {
	return []ParamSpec{
		{Field: "model", Param: "modelId", Required: true},
		{Field: "temperature", Param: "inferenceConfig.temperature", Min: Bound(0), Max: Bound(1)},
		{Field: "max_tokens", Param: "inferenceConfig.maxTokens", Default: float64(256)},
		{Field: "stop", Param: "inferenceConfig.stopSequences", Transform: func(v any, _ *unified.Request) (any, error) {
			if s, ok := v.(string); ok {
				return []any{s}, nil
			}
			return v, nil
		}},
	}
}

func TestBuildMissingRequiredField(t *testing.T) {
	req := unified.NewRequest(unified.OpChatComplete, map[string]any{"temperature": 0.2}, false)

	body, err := Build(chatSpecs(), req)
	if body != nil {
		t.Errorf("expected no body on validation failure, got %s", body)
	}
	var ve *unified.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
	if ve.Field != "model" {
		t.Errorf("ValidationError.Field = %q, want %q", ve.Field, "model")
	}
}

func TestBuildDefaultsOnlyFillAbsentFields(t *testing.T) {
	specs := []ParamSpec{
		{Field: "job_name", Param: "jobName", Default: "generated"},
		{Field: "role", Param: "roleArn", Required: true, Default: "arn:default"},
	}

	body, err := Build(specs, unified.NewRequest(unified.OpCreateFinetune, map[string]any{"job_name": nil}, false))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := gjson.GetBytes(body, "jobName").String(); got != "generated" {
		t.Errorf("null field: jobName = %q, want default", got)
	}
	if got := gjson.GetBytes(body, "roleArn").String(); got != "arn:default" {
		t.Errorf("absent field: roleArn = %q, want default", got)
	}

	body, err = Build(specs[:1], unified.NewRequest(unified.OpCreateFinetune, map[string]any{"job_name": ""}, false))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if gjson.GetBytes(body, "jobName").Exists() {
		t.Errorf("empty field was filled or forwarded: %s", body)
	}

	_, err = Build(specs[1:], unified.NewRequest(unified.OpCreateFinetune, map[string]any{"role": ""}, false))
	var ve *unified.ValidationError
	if !errors.As(err, &ve) || ve.Field != "role" {
		t.Fatalf("empty required field: err = %v", err)
	}
}

func TestBuildAppliesDefaultsTransformsAndDropsUnknown(t *testing.T) {
	req := unified.NewRequest(unified.OpChatComplete, map[string]any{
		"model":       "anthropic.claude-3-haiku",
		"temperature": 1.7,
		"stop":        "END",
		"user":        "should-not-leak",
	}, false)

	body, err := Build(chatSpecs(), req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := gjson.GetBytes(body, "modelId").String(); got != "anthropic.claude-3-haiku" {
		t.Errorf("modelId = %q", got)
	}
	if got := gjson.GetBytes(body, "inferenceConfig.temperature").Float(); got != 1 {
		t.Errorf("temperature not clamped: %v", got)
	}
	if got := gjson.GetBytes(body, "inferenceConfig.maxTokens").Int(); got != 256 {
		t.Errorf("maxTokens default = %d, want 256", got)
	}
	if got := gjson.GetBytes(body, "inferenceConfig.stopSequences.0").String(); got != "END" {
		t.Errorf("stopSequences = %s", gjson.GetBytes(body, "inferenceConfig.stopSequences").Raw)
	}
	if gjson.GetBytes(body, "user").Exists() {
		t.Errorf("unknown field leaked into provider body: %s", body)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	fields := map[string]any{
		"model": "m",
		"hyperparameters": map[string]any{
			"n_epochs": float64(3), "batch_size": float64(8), "learning_rate_multiplier": 0.5,
		},
	}
	specs := []ParamSpec{
		{Field: "model", Param: "baseModelIdentifier", Required: true},
		{Field: "hyperparameters", Param: "hyperParameters", Transform: func(v any, _ *unified.Request) (any, error) {
			hp := v.(map[string]any)
			out := map[string]any{}
			for k, val := range hp {
				out[k] = Stringify(val)
			}
			return out, nil
		}},
	}

	first, err := Build(specs, unified.NewRequest(unified.OpCreateFinetune, fields, false))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 0; i < 25; i++ {
		again, _ := Build(specs, unified.NewRequest(unified.OpCreateFinetune, fields, false))
		if string(again) != string(first) {
			t.Fatalf("Build output differs between runs:\n%s\n%s", first, again)
		}
	}
	if got := gjson.GetBytes(first, "hyperParameters.n_epochs").String(); got != "3" {
		t.Errorf("n_epochs = %q, want string \"3\"", got)
	}
}

func TestBuildDefaultFuncSeesWholeRequest(t *testing.T) {
	specs := []ParamSpec{
		{Field: "output", Param: "out", Required: true, DefaultFunc: func(req *unified.Request) any {
			return req.String("input") + ".out"
		}},
	}
	body, err := Build(specs, unified.NewRequest(unified.OpCreateFinetune, map[string]any{"input": "a"}, false))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := gjson.GetBytes(body, "out").String(); got != "a.out" {
		t.Errorf("out = %q, want a.out", got)
	}
}

func TestBuildRootMergeAndFanOut(t *testing.T) {
	specs := []ParamSpec{
		{Field: "max_tokens", Param: "generationConfig.maxOutputTokens"},
		{Field: "max_completion_tokens", Param: "generationConfig.maxOutputTokens"},
		{Field: "extra", Param: "", Transform: func(v any, _ *unified.Request) (any, error) {
			return map[string]any{"a.b": v, "c": true}, nil
		}},
	}
	body, err := Build(specs, unified.NewRequest(unified.OpChatComplete, map[string]any{
		"max_completion_tokens": float64(64),
		"extra":                 "x",
	}, false))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := gjson.GetBytes(body, "generationConfig.maxOutputTokens").Int(); got != 64 {
		t.Errorf("maxOutputTokens = %d", got)
	}
	if got := gjson.GetBytes(body, `a\.b`).String(); got != "x" {
		t.Errorf("escaped root key missing: %s", body)
	}
	if !gjson.GetBytes(body, "c").Bool() {
		t.Errorf("root merge missing c: %s", body)
	}
}

func TestBuildTransformErrorBecomesValidationError(t *testing.T) {
	specs := []ParamSpec{{Field: "n", Param: "n", Transform: func(any, *unified.Request) (any, error) {
		return nil, errors.New("n must be 1")
	}}}
	_, err := Build(specs, unified.NewRequest(unified.OpChatComplete, map[string]any{"n": float64(2)}, false))
	var ve *unified.ValidationError
	if !errors.As(err, &ve) || ve.Field != "n" {
		t.Fatalf("expected ValidationError for n, got %v", err)
	}
}

func TestStringifyAndDecode(t *testing.T) {
	cases := map[any]string{float64(3): "3", 0.25: "0.25", true: "true", "x": "x"}
	for in, want := range cases {
		if got := Stringify(in); got != want {
			t.Errorf("Stringify(%v) = %q, want %q", in, got, want)
		}
	}
	if got := DecodeURIComponent("s3%3A%2F%2Fbucket%2Ftrain.jsonl"); got != "s3://bucket/train.jsonl" {
		t.Errorf("DecodeURIComponent = %q", got)
	}
	if got := DecodeURIComponent("bad%zz"); got != "bad%zz" {
		t.Errorf("invalid escape should pass through, got %q", got)
	}
}
