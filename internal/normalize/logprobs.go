package normalize

import (
	"unicode/utf16"

	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// TokenBytes returns the UTF-16 code units of token.
func TokenBytes(token string) []int {
	units := utf16.Encode([]rune(token))
	out := make([]int, len(units))
	for i, u := range units {
		out[i] = int(u)
	}
	return out
}

// VertexLogprobs rebuilds per-token logprobs from a candidate's
// logprobsResult. Top alternatives are aligned to chosen tokens by index. It
// returns nil when the candidate carries no logprobs.
func VertexLogprobs(candidate gjson.Result) []unified.Logprob {
	result := candidate.Get("logprobsResult")
	if !result.Exists() {
		return nil
	}
	out := []unified.Logprob{}
	result.Get("chosenCandidates").ForEach(func(_, c gjson.Result) bool {
		token := c.Get("token").String()
		out = append(out, unified.Logprob{
			Token:   token,
			Logprob: c.Get("logProbability").Float(),
			Bytes:   TokenBytes(token),
		})
		return true
	})
	i := 0
	result.Get("topCandidates").ForEach(func(_, group gjson.Result) bool {
		if i >= len(out) {
			return false
		}
		top := []unified.TopLogprob{}
		group.Get("candidates").ForEach(func(_, c gjson.Result) bool {
			token := c.Get("token").String()
			top = append(top, unified.TopLogprob{
				Token:   token,
				Logprob: c.Get("logProbability").Float(),
				Bytes:   TokenBytes(token),
			})
			return true
		})
		out[i].TopLogprobs = top
		i++
		return true
	})
	return out
}
