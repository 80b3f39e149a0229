package normalize

import (
	"net/url"
	"strings"

	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

var bedrockBatchStatus = map[string]unified.BatchStatus{
	"Submitted":          unified.BatchQueued,
	"Validating":         unified.BatchQueued,
	"Scheduled":          unified.BatchQueued,
	"InProgress":         unified.BatchRunning,
	"Completed":          unified.BatchSucceeded,
	"PartiallyCompleted": unified.BatchSucceeded,
	"Failed":             unified.BatchFailed,
	"Stopping":           unified.BatchCancelled,
	"Stopped":            unified.BatchCancelled,
	"Expired":            unified.BatchCancelled,
}

var bedrockFinetuneStatus = map[string]unified.BatchStatus{
	"InProgress": unified.BatchRunning,
	"Completed":  unified.BatchSucceeded,
	"Failed":     unified.BatchFailed,
	"Stopping":   unified.BatchCancelled,
	"Stopped":    unified.BatchCancelled,
}

// BedrockJobID turns a job ARN into the URL-safe id handed to callers.
func BedrockJobID(arn string) string {
	return url.QueryEscape(arn)
}

// BedrockBatchStatus maps a model-invocation-job status.
func BedrockBatchStatus(status string) unified.BatchStatus {
	if st, ok := bedrockBatchStatus[status]; ok {
		return st
	}
	log.WithField("state", status).Warn("unrecognized bedrock batch state, reporting queued")
	return unified.BatchQueued
}

// BedrockBatch converts a model-invocation-job record.
func BedrockBatch(record gjson.Result) unified.BatchJob {
	status := record.Get("status").String()
	job := unified.BatchJob{
		ID:           BedrockJobID(record.Get("jobArn").String()),
		Object:       "batch",
		Endpoint:     "/invoke",
		Status:       BedrockBatchStatus(status),
		InputFileID:  record.Get("inputDataConfig.s3InputDataConfig.s3Uri").String(),
		OutputFileID: record.Get("outputDataConfig.s3OutputDataConfig.s3Uri").String(),
		CreatedAt:    UnixSeconds(record.Get("submitTime")),
	}
	job.ErrorFileID = job.OutputFileID
	if job.Status != unified.BatchQueued {
		job.InProgressAt = UnixSeconds(record.Get("lastModifiedTime"))
	}
	end := UnixSeconds(record.Get("endTime"))
	switch status {
	case "Completed", "PartiallyCompleted":
		job.CompletedAt = end
	case "Failed":
		job.FailedAt = end
	case "Stopped", "Expired":
		job.CancelledAt = end
	}
	if msg := record.Get("message").String(); msg != "" && job.Status == unified.BatchFailed {
		job.Errors = &unified.BatchErrors{Object: "list", Data: []any{map[string]any{"message": msg}}}
	}
	if name := record.Get("jobName").String(); name != "" {
		job.Metadata = map[string]any{"job_name": name, "model": record.Get("modelId").String()}
	}
	return job
}

// BedrockBatchList converts a ListModelInvocationJobs page.
func BedrockBatchList(body gjson.Result) unified.BatchList {
	list := unified.BatchList{Object: "list", Data: []unified.BatchJob{}}
	body.Get("invocationJobSummaries").ForEach(func(_, v gjson.Result) bool {
		list.Data = append(list.Data, BedrockBatch(v))
		return true
	})
	if n := len(list.Data); n > 0 {
		list.FirstID = list.Data[0].ID
		list.LastID = list.Data[n-1].ID
	}
	if token := body.Get("nextToken").String(); token != "" {
		list.LastID = token
		list.HasMore = true
	}
	return list
}

// BedrockFinetuneStatus maps a model-customization-job status.
func BedrockFinetuneStatus(status string) unified.BatchStatus {
	if st, ok := bedrockFinetuneStatus[status]; ok {
		return st
	}
	log.WithField("state", status).Warn("unrecognized bedrock fine-tune state, reporting queued")
	return unified.BatchQueued
}

// BedrockFinetune converts a model-customization-job record.
func BedrockFinetune(record gjson.Result) unified.FineTuneJob {
	status := BedrockFinetuneStatus(record.Get("status").String())
	job := unified.FineTuneJob{
		ID:             BedrockJobID(record.Get("jobArn").String()),
		Object:         "fine_tuning.job",
		Model:          record.Get("baseModelArn").String(),
		Status:         status,
		TrainingFile:   record.Get("trainingDataConfig.s3Uri").String(),
		ValidationFile: record.Get("validationDataConfig.validators.0.s3Uri").String(),
		CreatedAt:      UnixSeconds(record.Get("creationTime")),
	}
	if status == unified.BatchSucceeded {
		job.FineTunedModel = firstString(record, "outputModelArn", "outputModelName")
	}
	if status.Terminal() {
		job.FinishedAt = UnixSeconds(record.Get("endTime"))
	}
	if msg := record.Get("failureMessage").String(); msg != "" {
		job.Error = map[string]any{"message": msg}
	}
	return job
}

// DecodeJobID reverses BedrockJobID, accepting ids that were never encoded.
func DecodeJobID(id string) string {
	if strings.Contains(id, "%") {
		if decoded, err := url.QueryUnescape(id); err == nil {
			return decoded
		}
	}
	return id
}
