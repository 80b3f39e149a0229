package provider

import "strings"

// Name identifies a backend provider family.
type Name string

const (
	Unknown     Name = ""
	VertexAI    Name = "vertex-ai"
	Bedrock     Name = "bedrock"
	AzureOpenAI Name = "azure-openai"
)

// FromString converts an arbitrary identifier to a Name, accepting the
// common aliases callers send.
func FromString(v string) Name {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "vertex-ai", "vertex", "google-vertex-ai":
		return VertexAI
	case "bedrock", "aws-bedrock":
		return Bedrock
	case "azure-openai", "azure":
		return AzureOpenAI
	}
	return Name(v)
}

func (n Name) String() string {
	return string(n)
}
