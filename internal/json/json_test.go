package json

import (
	"errors"
	"strings"
	"testing"
)

type jobRecord struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Count int    `json:"count,omitempty"`
}

func TestMarshalUnmarshal(t *testing.T) {
	original := jobRecord{Name: "projects/p/locations/l/batchPredictionJobs/1", State: "JOB_STATE_RUNNING", Count: 3}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"state":"JOB_STATE_RUNNING"`) {
		t.Errorf("Marshal output missing state field: %s", data)
	}

	var decoded jobRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != original {
		t.Errorf("Unmarshal mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalSortedIsStable(t *testing.T) {
	in := map[string]any{"zeta": 1, "alpha": map[string]any{"y": true, "b": "x"}, "mid": []any{"a"}}
	first, err := MarshalSorted(in)
	if err != nil {
		t.Fatalf("MarshalSorted failed: %v", err)
	}
	want := `{"alpha":{"b":"x","y":true},"mid":["a"],"zeta":1}`
	if string(first) != want {
		t.Errorf("MarshalSorted = %s, want %s", first, want)
	}
	for i := 0; i < 20; i++ {
		again, _ := MarshalSorted(in)
		if string(again) != string(first) {
			t.Fatalf("MarshalSorted not stable: %s vs %s", again, first)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`{"key": "value"}`, true},
		{`[1, 2, 3]`, true},
		{`invalid`, false},
		{`{"unclosed": }`, false},
	}

	for _, tt := range tests {
		if got := Valid([]byte(tt.input)); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRewriteLines(t *testing.T) {
	in := []byte("{\"n\":1}\n\n  \n{\"n\":2}\n{\"n\":3,\"skip\":true}")
	var seen []int
	out, err := RewriteLines(in, 1<<10, func(line int, raw []byte) (any, error) {
		seen = append(seen, line)
		var v struct {
			N    int  `json:"n"`
			Skip bool `json:"skip"`
		}
		if err := Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if v.Skip {
			return nil, nil
		}
		return map[string]int{"id": v.N * 10}, nil
	})
	if err != nil {
		t.Fatalf("RewriteLines: %v", err)
	}
	if want := "{\"id\":10}\n{\"id\":20}\n"; string(out) != want {
		t.Errorf("out = %q, want %q", out, want)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 4 || seen[2] != 5 {
		t.Errorf("line numbers = %v", seen)
	}
}

func TestRewriteLinesErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := RewriteLines([]byte("{}\n"), 1<<10, func(int, []byte) (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("callback error = %v", err)
	}

	long := []byte(`{"x":"` + strings.Repeat("a", 200) + `"}`)
	_, err := RewriteLines(long, 64, func(int, []byte) (any, error) { return struct{}{}, nil })
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
}
