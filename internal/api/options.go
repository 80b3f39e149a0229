package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Request headers read by the dispatch layer.
const (
	HeaderProvider = "X-Gateway-Provider"
	HeaderProfile  = "X-Gateway-Profile"
	HeaderMode     = "X-Gateway-Mode"
	headerPrefix   = "X-Gateway-"
)

// optionHeaders maps a header suffix to the Options field it sets.
var optionHeaders = map[string]func(*provider.Options, string){
	"Api-Key":                     func(o *provider.Options, v string) { o.APIKey = v },
	"Custom-Host":                 func(o *provider.Options, v string) { o.CustomHost = v },
	"Vertex-Project-Id":           func(o *provider.Options, v string) { o.VertexProjectID = v },
	"Vertex-Region":               func(o *provider.Options, v string) { o.VertexRegion = v },
	"Vertex-Storage-Bucket":       func(o *provider.Options, v string) { o.VertexStorageBucket = v },
	"Vertex-Service-Account-Json": func(o *provider.Options, v string) { o.VertexServiceAccountJSON = decodeServiceAccount(v) },
	"Aws-Auth-Type":               func(o *provider.Options, v string) { o.AWSAuthType = provider.AWSAuthType(v) },
	"Aws-Access-Key-Id":           func(o *provider.Options, v string) { o.AWSAccessKeyID = v },
	"Aws-Secret-Access-Key":       func(o *provider.Options, v string) { o.AWSSecretAccessKey = v },
	"Aws-Session-Token":           func(o *provider.Options, v string) { o.AWSSessionToken = v },
	"Aws-Region":                  func(o *provider.Options, v string) { o.AWSRegion = v },
	"Aws-Role-Arn":                func(o *provider.Options, v string) { o.AWSRoleARN = v },
	"Aws-External-Id":             func(o *provider.Options, v string) { o.AWSExternalID = v },
	"Aws-S3-Bucket":               func(o *provider.Options, v string) { o.AWSS3Bucket = v },
	"Azure-Resource-Name":         func(o *provider.Options, v string) { o.AzureResourceName = v },
	"Azure-Deployment-Id":         func(o *provider.Options, v string) { o.AzureDeploymentID = v },
	"Azure-Api-Version":           func(o *provider.Options, v string) { o.AzureAPIVersion = v },
}

// resolveOptions builds the call's provider options. A named profile is the
// base; X-Gateway-* headers override it field by field.
func resolveOptions(cfg *config.Config, h http.Header) (*provider.Options, error) {
	opts := &provider.Options{}
	if name := strings.TrimSpace(h.Get(HeaderProfile)); name != "" {
		profile, err := cfg.Profile(name)
		if err != nil {
			return nil, &unified.ValidationError{Field: "profile", Message: err.Error()}
		}
		opts = profile
	}
	if name := strings.TrimSpace(h.Get(HeaderProvider)); name != "" {
		opts.Provider = provider.FromString(name)
	}
	if opts.Provider == provider.Unknown {
		return nil, &unified.ValidationError{Field: "provider", Message: fmt.Sprintf("either %s or %s header is required", HeaderProvider, HeaderProfile)}
	}
	for suffix, set := range optionHeaders {
		if v := strings.TrimSpace(h.Get(headerPrefix + suffix)); v != "" {
			set(opts, v)
		}
	}
	return opts, nil
}

// decodeServiceAccount accepts the key either as raw JSON or base64 encoded,
// since multi-line JSON cannot travel in a header.
func decodeServiceAccount(v string) []byte {
	if strings.HasPrefix(v, "{") {
		return []byte(v)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(v); err == nil {
			return decoded
		}
	}
	return []byte(v)
}
