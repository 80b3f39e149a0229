// Package auth resolves the outbound authentication headers of a provider
// call: static keys, service-account JWT bearer tokens and chained AWS
// assumed-role credentials.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Strategy identifies how a call authenticates.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyStaticKey
	StrategyServiceAccount
	StrategyAWSAccessKey
	StrategyAWSAssumedRole
)

func (s Strategy) String() string {
	switch s {
	case StrategyStaticKey:
		return "static_key"
	case StrategyServiceAccount:
		return "service_account"
	case StrategyAWSAccessKey:
		return "aws_access_key"
	case StrategyAWSAssumedRole:
		return "aws_assumed_role"
	default:
		return "none"
	}
}

// SelectStrategy picks the strategy from the options' discriminators.
func SelectStrategy(opts *provider.Options) Strategy {
	if opts == nil {
		return StrategyNone
	}
	switch opts.Provider {
	case provider.Bedrock:
		if opts.AWSAuthType == provider.AWSAssumedRole {
			return StrategyAWSAssumedRole
		}
		return StrategyAWSAccessKey
	case provider.VertexAI:
		if opts.HasServiceAccount() {
			return StrategyServiceAccount
		}
	}
	if strings.TrimSpace(opts.APIKey) != "" {
		return StrategyStaticKey
	}
	return StrategyNone
}

// Resolver produces outbound headers for one call.
type Resolver struct {
	tokens *ServiceAccountTokens
	roles  *ChainedAssumer
	signer *v4.Signer
	now    func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithServiceAccountTokens sets the JWT bearer minter.
func WithServiceAccountTokens(t *ServiceAccountTokens) Option {
	return func(r *Resolver) { r.tokens = t }
}

// WithChainedAssumer sets the assumed-role collaborator.
func WithChainedAssumer(a *ChainedAssumer) Option {
	return func(r *Resolver) { r.roles = a }
}

// NewResolver builds a resolver. Without a ChainedAssumer the assumed-role
// strategy always yields empty credentials.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{signer: v4.NewSigner(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.tokens == nil {
		r.tokens = NewServiceAccountTokens(nil, "")
	}
	return r
}

// AWSCredentials returns the AWS credentials of opts after validation.
func (r *Resolver) AWSCredentials(ctx context.Context, opts *provider.Options) (aws.Credentials, error) {
	var creds aws.Credentials
	switch SelectStrategy(opts) {
	case StrategyAWSAssumedRole:
		if r.roles != nil {
			creds = r.roles.Credentials(ctx, opts.AWSRoleARN, opts.AWSExternalID, opts.AWSRegion)
		} else {
			log.WithField("role_arn", opts.AWSRoleARN).Warn("assumed role requested but no assumer is configured")
		}
	case StrategyAWSAccessKey:
		creds = aws.Credentials{
			AccessKeyID:     opts.AWSAccessKeyID,
			SecretAccessKey: opts.AWSSecretAccessKey,
			SessionToken:    opts.AWSSessionToken,
		}
	default:
		return aws.Credentials{}, unified.MissingCredentials()
	}
	if err := ValidateAWS(creds, opts.AWSRegion); err != nil {
		return aws.Credentials{}, err
	}
	return creds, nil
}

// BearerToken returns the static key or minted service-account token.
func (r *Resolver) BearerToken(ctx context.Context, opts *provider.Options) (string, error) {
	var token string
	switch SelectStrategy(opts) {
	case StrategyServiceAccount:
		sa, err := provider.ParseServiceAccount(opts.VertexServiceAccountJSON)
		if err != nil {
			log.WithError(err).Warn("invalid service account json")
		} else {
			token = r.tokens.AccessToken(ctx, sa)
		}
	case StrategyStaticKey:
		token = strings.TrimSpace(opts.APIKey)
	}
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the headers to send. For AWS the request is signed in
// place, so req must carry the final method, URL and body.
func (r *Resolver) Resolve(ctx context.Context, opts *provider.Options, req *http.Request, body []byte) (http.Header, error) {
	headers := http.Header{}
	contentType := "application/json"
	if req != nil && req.Header.Get("Content-Type") != "" {
		contentType = req.Header.Get("Content-Type")
	}
	headers.Set("Content-Type", contentType)

	strategy := SelectStrategy(opts)
	switch strategy {
	case StrategyNone:
		return nil, unified.MissingCredentials()
	case StrategyAWSAccessKey, StrategyAWSAssumedRole:
		if req == nil {
			return nil, errors.New("auth: sigv4 signing needs the outbound request")
		}
		creds, err := r.AWSCredentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		if err = SignRequest(ctx, r.signer, creds, req, body, BedrockSigningService, opts.AWSRegion, r.now()); err != nil {
			return nil, &unified.AuthError{Provider: string(opts.Provider), Message: "sign request", Cause: err}
		}
		return req.Header.Clone(), nil
	}

	token, err := r.BearerToken(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.Provider == provider.AzureOpenAI && strategy == StrategyStaticKey {
		headers.Set("api-key", token)
	} else {
		headers.Set("Authorization", "Bearer "+token)
	}
	if req != nil {
		for k, v := range headers {
			req.Header[k] = v
		}
	}
	return headers, nil
}
