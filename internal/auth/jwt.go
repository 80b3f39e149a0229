package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jws"
	"golang.org/x/sync/singleflight"
)

const (
	// GoogleTokenURL is the OAuth2 token endpoint used as assertion audience.
	GoogleTokenURL = "https://oauth2.googleapis.com/token"
	// CloudPlatformScope is requested for every service-account token.
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime  = time.Hour
	tokenExpiryBuffer  = 5 * time.Minute
)

// ServiceAccountTokens mints access tokens from service-account keys through
// the signed JWT bearer grant. Tokens are reused until shortly before expiry.
type ServiceAccountTokens struct {
	client   *http.Client
	tokenURL string
	now      func() time.Time

	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
	group  singleflight.Group
}

// NewServiceAccountTokens creates a minter. An empty tokenURL uses the key's
// token_uri, falling back to GoogleTokenURL.
func NewServiceAccountTokens(client *http.Client, tokenURL string) *ServiceAccountTokens {
	if client == nil {
		client = http.DefaultClient
	}
	return &ServiceAccountTokens{
		client:   client,
		tokenURL: tokenURL,
		now:      time.Now,
		tokens:   make(map[string]*oauth2.Token),
	}
}

// AccessToken returns a bearer token for sa, or "" when signing or the
// exchange fails. The failure cause is logged.
func (s *ServiceAccountTokens) AccessToken(ctx context.Context, sa *provider.ServiceAccount) string {
	if sa == nil {
		return ""
	}
	key := sa.ClientEmail + "/" + sa.PrivateKeyID

	s.mu.RLock()
	if tok, ok := s.tokens[key]; ok && tok.Expiry.After(s.now().Add(tokenExpiryBuffer)) {
		s.mu.RUnlock()
		return tok.AccessToken
	}
	s.mu.RUnlock()

	v, err := shared(ctx, &s.group, key, func(ctx context.Context) (any, error) {
		tok, err := s.exchange(ctx, sa)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.tokens[key] = tok
		s.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		log.WithError(err).WithField("client_email", sa.ClientEmail).Warn("service account token exchange failed")
		return ""
	}
	return v.(*oauth2.Token).AccessToken
}

func (s *ServiceAccountTokens) audience(sa *provider.ServiceAccount) string {
	if s.tokenURL != "" {
		return s.tokenURL
	}
	if sa.TokenURI != "" {
		return sa.TokenURI
	}
	return GoogleTokenURL
}

// SignAssertion builds the RS256 JWT assertion for sa.
func (s *ServiceAccountTokens) SignAssertion(sa *provider.ServiceAccount) (string, error) {
	key, err := parsePrivateKey(sa.PrivateKey)
	if err != nil {
		return "", err
	}
	now := s.now()
	header := &jws.Header{Algorithm: "RS256", Typ: "JWT", KeyID: sa.PrivateKeyID}
	claims := &jws.ClaimSet{
		Iss:   sa.ClientEmail,
		Sub:   sa.ClientEmail,
		Aud:   s.audience(sa),
		Scope: CloudPlatformScope,
		Iat:   now.Unix(),
		Exp:   now.Add(assertionLifetime).Unix(),
	}
	return jws.Encode(header, claims, key)
}

func (s *ServiceAccountTokens) exchange(ctx context.Context, sa *provider.ServiceAccount) (*oauth2.Token, error) {
	assertion, err := s.SignAssertion(sa)
	if err != nil {
		return nil, fmt.Errorf("sign assertion: %w", err)
	}
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.audience(sa), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, gjson.GetBytes(body, "error_description").String())
	}
	accessToken := gjson.GetBytes(body, "access_token").String()
	if accessToken == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}
	expiresIn := gjson.GetBytes(body, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = int64(assertionLifetime / time.Second)
	}
	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   gjson.GetBytes(body, "token_type").String(),
		Expiry:      s.now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
