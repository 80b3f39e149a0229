package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRoleSessionName = "llm-adapter-session"
	defaultRoleDuration    = time.Hour
)

// RoleAssumer is the part of the STS client used here.
type RoleAssumer interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// AssumerFactory builds an STS client for region that signs with creds. A nil
// creds uses the gateway's base identity.
type AssumerFactory func(region string, creds aws.CredentialsProvider) RoleAssumer

// NewSTSFactory returns a factory backed by real STS clients derived from base.
func NewSTSFactory(base aws.Config) AssumerFactory {
	return func(region string, creds aws.CredentialsProvider) RoleAssumer {
		cfg := base.Copy()
		cfg.Region = region
		if creds != nil {
			cfg.Credentials = creds
		}
		return sts.NewFromConfig(cfg)
	}
}

// LoadSTSFactory loads the gateway's base identity from the default AWS chain.
func LoadSTSFactory(ctx context.Context) (AssumerFactory, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: load aws config: %w", err)
	}
	return NewSTSFactory(cfg), nil
}

// SourceRole is the gateway-owned role assumed before any caller role.
type SourceRole struct {
	ARN        string
	ExternalID string
}

// ChainedAssumer obtains caller-role credentials through the source role.
// The destination role is always assumed with the source role's temporary
// credentials, never with the base identity.
type ChainedAssumer struct {
	source      SourceRole
	cache       CredentialCache
	newClient   AssumerFactory
	sessionName string
	duration    time.Duration
	now         func() time.Time

	group singleflight.Group
}

// NewChainedAssumer wires an assumer. A nil cache disables caching.
func NewChainedAssumer(source SourceRole, cache CredentialCache, factory AssumerFactory) *ChainedAssumer {
	if cache == nil {
		cache = NoCache
	}
	return &ChainedAssumer{
		source:      source,
		cache:       cache,
		newClient:   factory,
		sessionName: defaultRoleSessionName,
		duration:    defaultRoleDuration,
		now:         time.Now,
	}
}

// Credentials returns credentials for roleARN. Any failure yields empty
// credentials; the cause is logged and the caller's validation reports it.
func (c *ChainedAssumer) Credentials(ctx context.Context, roleARN, externalID, region string) aws.Credentials {
	creds, err := c.assumeChain(ctx, roleARN, externalID, region)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"role_arn": roleARN,
			"region":   region,
		}).Warn("assume role failed, continuing with empty credentials")
		return aws.Credentials{}
	}
	return creds.AWS()
}

func (c *ChainedAssumer) assumeChain(ctx context.Context, roleARN, externalID, region string) (CachedCredential, error) {
	if c.newClient == nil {
		return CachedCredential{}, errors.New("no sts client factory configured")
	}
	if c.source.ARN == "" {
		return CachedCredential{}, errors.New("source role arn is not configured")
	}
	if roleARN == "" {
		return CachedCredential{}, errors.New("destination role arn is empty")
	}

	source, err := c.assume(ctx, c.source.ARN, c.source.ExternalID, region, nil)
	if err != nil {
		return CachedCredential{}, fmt.Errorf("assume source role: %w", err)
	}
	via := credentials.NewStaticCredentialsProvider(source.AccessKeyID, source.SecretAccessKey, source.SessionToken)
	dest, err := c.assume(ctx, roleARN, externalID, region, via)
	if err != nil {
		return CachedCredential{}, fmt.Errorf("assume destination role: %w", err)
	}
	return dest, nil
}

func (c *ChainedAssumer) assume(ctx context.Context, roleARN, externalID, region string, via aws.CredentialsProvider) (CachedCredential, error) {
	key := Fingerprint(roleARN, externalID, region)
	if cred, ok := c.cache.Get(ctx, key); ok && cred.Usable(c.now()) {
		return cred, nil
	}

	v, err := shared(ctx, &c.group, key, func(ctx context.Context) (any, error) {
		if cred, ok := c.cache.Get(ctx, key); ok && cred.Usable(c.now()) {
			return cred, nil
		}
		input := &sts.AssumeRoleInput{
			RoleArn:         aws.String(roleARN),
			RoleSessionName: aws.String(c.sessionName),
			DurationSeconds: aws.Int32(int32(c.duration / time.Second)),
		}
		if externalID != "" {
			input.ExternalId = aws.String(externalID)
		}
		out, err := c.newClient(region, via).AssumeRole(ctx, input)
		if err != nil {
			return nil, err
		}
		if out == nil || out.Credentials == nil {
			return nil, errors.New("sts returned no credentials")
		}
		cred := CachedCredential{
			AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
			SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
			SessionToken:    aws.ToString(out.Credentials.SessionToken),
			Expiry:          aws.ToTime(out.Credentials.Expiration),
		}
		c.cache.Put(ctx, key, cred)
		return cred, nil
	})
	if err != nil {
		return CachedCredential{}, err
	}
	return v.(CachedCredential), nil
}
