package normalize

import (
	"strings"

	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

var vertexJobStatus = map[genai.JobState]unified.BatchStatus{
	genai.JobStateCancelled:          unified.BatchCancelled,
	genai.JobStateCancelling:         unified.BatchCancelled,
	genai.JobStateExpired:            unified.BatchCancelled,
	genai.JobStateFailed:             unified.BatchFailed,
	genai.JobStatePartiallySucceeded: unified.BatchSucceeded,
	genai.JobStateSucceeded:          unified.BatchSucceeded,
	genai.JobStatePaused:             unified.BatchQueued,
	genai.JobStatePending:            unified.BatchQueued,
	genai.JobStateQueued:             unified.BatchQueued,
	genai.JobStateUnspecified:        unified.BatchQueued,
	genai.JobStateRunning:            unified.BatchRunning,
	genai.JobStateUpdating:           unified.BatchRunning,
}

// VertexJobStates lists every native state the status table knows.
func VertexJobStates() []genai.JobState {
	out := make([]genai.JobState, 0, len(vertexJobStatus))
	for s := range vertexJobStatus {
		out = append(out, s)
	}
	return out
}

// VertexBatchStatus maps a native job state. Unknown states map to queued and
// are logged so new terminal states do not go unnoticed.
func VertexBatchStatus(state string) unified.BatchStatus {
	if st, ok := vertexJobStatus[genai.JobState(state)]; ok {
		return st
	}
	log.WithField("state", state).Warn("unrecognized vertex batch state, reporting queued")
	return unified.BatchQueued
}

// vertexTerminalField names the timestamp a state earns, or "" while the job
// has not reached that outcome.
func vertexTerminalField(state genai.JobState) string {
	switch state {
	case genai.JobStateSucceeded, genai.JobStatePartiallySucceeded:
		return "completed_at"
	case genai.JobStateFailed:
		return "failed_at"
	case genai.JobStateCancelled, genai.JobStateExpired:
		return "cancelled_at"
	}
	return ""
}

// VertexBatch converts a batchPredictionJobs record.
func VertexBatch(record gjson.Result) unified.BatchJob {
	state := genai.JobState(record.Get("state").String())
	name := record.Get("name").String()

	job := unified.BatchJob{
		ID:           name[strings.LastIndexByte(name, '/')+1:],
		Object:       "batch",
		Endpoint:     "/generateContent",
		Status:       VertexBatchStatus(string(state)),
		InputFileID:  record.Get("inputConfig.gcsSource.uris.0").String(),
		ErrorFileID:  record.Get("outputConfig.gcsDestination.outputUriPrefix").String(),
		CreatedAt:    UnixSeconds(record.Get("createTime")),
		InProgressAt: UnixSeconds(record.Get("startTime")),
	}

	if dir := record.Get("outputInfo.gcsOutputDirectory").String(); dir != "" {
		job.OutputFileID = strings.TrimRight(dir, "/") + "/predictions.jsonl"
	} else {
		job.OutputFileID = job.ErrorFileID
	}

	stats := record.Get("completionsStats")
	stats.ForEach(func(_, v gjson.Result) bool {
		job.RequestCounts.Total += v.Int()
		return true
	})
	job.RequestCounts.Completed = stats.Get("successfulCount").Int()
	job.RequestCounts.Failed = stats.Get("failedCount").Int()

	at := UnixSeconds(record.Get("endTime"))
	if at == 0 {
		at = UnixSeconds(record.Get("updateTime"))
	}
	switch vertexTerminalField(state) {
	case "completed_at":
		job.CompletedAt = at
	case "failed_at":
		job.FailedAt = at
	case "cancelled_at":
		job.CancelledAt = at
	}

	if errObj := record.Get("error"); errObj.IsObject() {
		job.Errors = &unified.BatchErrors{Object: "list", Data: []any{errObj.Value()}}
	}
	return job
}

// VertexBatchList converts a batchPredictionJobs list page.
func VertexBatchList(body gjson.Result) unified.BatchList {
	list := unified.BatchList{Object: "list", Data: []unified.BatchJob{}}
	body.Get("batchPredictionJobs").ForEach(func(_, v gjson.Result) bool {
		list.Data = append(list.Data, VertexBatch(v))
		return true
	})
	if n := len(list.Data); n > 0 {
		list.FirstID = list.Data[0].ID
		list.LastID = list.Data[n-1].ID
	}
	// Vertex pages by token, so last_id carries it back as the next "after".
	if token := body.Get("nextPageToken").String(); token != "" {
		list.LastID = token
		list.HasMore = true
	}
	return list
}
