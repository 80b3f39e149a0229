package provider

import (
	"fmt"
	"strings"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/tailscale/hujson"
)

// AWSAuthType selects how AWS credential material is obtained.
type AWSAuthType string

const (
	AWSAccessKey   AWSAuthType = "accessKey"
	AWSAssumedRole AWSAuthType = "assumedRole"
)

// Options carries the provider identity, credential material and routing
// options of one call. It is built once by the dispatch layer and only read
// afterwards.
type Options struct {
	Provider Name
	APIKey   string

	VertexProjectID          string
	VertexRegion             string
	VertexServiceAccountJSON []byte
	VertexStorageBucket      string

	AWSAuthType        AWSAuthType
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSRegion          string
	AWSRoleARN         string
	AWSExternalID      string
	AWSS3Bucket        string

	AzureResourceName string
	AzureDeploymentID string
	AzureAPIVersion   string

	// CustomHost overrides the provider base URL when set.
	CustomHost string
}

// HasServiceAccount reports whether service-account JSON was supplied.
func (o *Options) HasServiceAccount() bool {
	return o != nil && len(strings.TrimSpace(string(o.VertexServiceAccountJSON))) > 0
}

// ProjectID returns the Vertex project, preferring the service account's own
// project when one was supplied.
func (o *Options) ProjectID() string {
	if o == nil {
		return ""
	}
	if o.HasServiceAccount() {
		if sa, err := ParseServiceAccount(o.VertexServiceAccountJSON); err == nil && sa.ProjectID != "" {
			return sa.ProjectID
		}
	}
	return strings.TrimSpace(o.VertexProjectID)
}

// ServiceAccount is the subset of a Google service-account key file used to
// mint access tokens.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes a service-account key. Comments and trailing
// commas are tolerated since keys are often pasted into config by hand.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	standardized, err := hujson.Standardize(append([]byte(nil), raw...))
	if err != nil {
		return nil, fmt.Errorf("service account: %w", err)
	}
	var sa ServiceAccount
	if err = json.Unmarshal(standardized, &sa); err != nil {
		return nil, fmt.Errorf("service account: %w", err)
	}
	if strings.TrimSpace(sa.ClientEmail) == "" {
		return nil, fmt.Errorf("service account: missing client_email")
	}
	return &sa, nil
}
