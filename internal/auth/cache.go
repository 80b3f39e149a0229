package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// credentialExpiryBuffer discards cached credentials this close to expiry.
const credentialExpiryBuffer = 2 * time.Minute

// CachedCredential is one set of temporary AWS credentials.
type CachedCredential struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Expiry          time.Time `json:"expiry"`
}

// Usable reports whether the credential is complete and not about to expire.
func (c CachedCredential) Usable(now time.Time) bool {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return false
	}
	return c.Expiry.IsZero() || c.Expiry.After(now.Add(credentialExpiryBuffer))
}

// AWS converts the cached value into SDK credentials.
func (c CachedCredential) AWS() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          "llm-adapter-assumed-role",
		CanExpire:       !c.Expiry.IsZero(),
		Expires:         c.Expiry,
	}
}

// CredentialCache stores assumed-role credentials by fingerprint. It is owned
// by the host; implementations must be safe for concurrent use.
type CredentialCache interface {
	Get(ctx context.Context, key string) (CachedCredential, bool)
	Put(ctx context.Context, key string, cred CachedCredential)
}

// CacheFuncs adapts a pair of functions to CredentialCache. A nil function
// behaves as a permanent miss or a dropped write.
type CacheFuncs struct {
	GetFunc func(ctx context.Context, key string) (CachedCredential, bool)
	PutFunc func(ctx context.Context, key string, cred CachedCredential)
}

func (f CacheFuncs) Get(ctx context.Context, key string) (CachedCredential, bool) {
	if f.GetFunc == nil {
		return CachedCredential{}, false
	}
	return f.GetFunc(ctx, key)
}

func (f CacheFuncs) Put(ctx context.Context, key string, cred CachedCredential) {
	if f.PutFunc != nil {
		f.PutFunc(ctx, key, cred)
	}
}

// NoCache never hits.
var NoCache CredentialCache = CacheFuncs{}

// Fingerprint is the cache key of an assumed role.
func Fingerprint(roleARN, externalID, region string) string {
	sum := sha256.Sum256([]byte(roleARN + "\x00" + externalID + "\x00" + region))
	return "assumed-role:" + hex.EncodeToString(sum[:])
}
