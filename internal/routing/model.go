package routing

import "strings"

// SplitModel separates a compound "<family>.<model>" string. The split happens
// only when the first segment is one of families; otherwise the whole string
// is the model under fallback.
func SplitModel(model string, families []string, fallback string) (family, name string) {
	head, rest, ok := strings.Cut(model, ".")
	if ok {
		for _, f := range families {
			if head == f {
				return head, rest
			}
		}
	}
	return fallback, model
}
