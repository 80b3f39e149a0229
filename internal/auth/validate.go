package auth

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// ValidateAWS rejects credential material with an empty access key, secret or
// region. Every failed exchange upstream of this check ends here.
func ValidateAWS(creds aws.Credentials, region string) error {
	if strings.TrimSpace(creds.AccessKeyID) == "" ||
		strings.TrimSpace(creds.SecretAccessKey) == "" ||
		strings.TrimSpace(region) == "" {
		return unified.MissingCredentials()
	}
	return nil
}

// ValidateToken rejects an empty bearer token.
func ValidateToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return unified.MissingCredentials()
	}
	return nil
}
