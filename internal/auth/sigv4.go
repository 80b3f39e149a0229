package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// BedrockSigningService is the SigV4 service name for runtime and control
// plane calls alike.
const BedrockSigningService = "bedrock"

// PayloadHash returns the hex SHA-256 of body as SigV4 expects it.
func PayloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// SignRequest signs req in place with SigV4.
func SignRequest(ctx context.Context, signer *v4.Signer, creds aws.Credentials, req *http.Request, body []byte, service, region string, at time.Time) error {
	if signer == nil {
		signer = v4.NewSigner()
	}
	return signer.SignHTTP(ctx, creds, req, PayloadHash(body), service, region, at)
}
