// Package handoff signs the short-lived token passed to the external submission form,
// so a submission can be traced back to the account that started it.
package handoff

import (
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/learnearn/hub/core/session"
)

const (
	// TokenParam is the query parameter carrying the token.
	TokenParam = "handoff"
	audience   = "submission-form"
)

var (
	ErrNoFormURL    = errors.New("handoff: submission form URL is not configured")
	ErrInvalidToken = errors.New("handoff: invalid token")
)

// Claims identify the user handing off to the form.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Signer struct {
	issuer  string
	secret  []byte
	ttl     time.Duration
	formURL *url.URL
	now     func() time.Time
}

func NewSigner(issuer, secret, formURL string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("handoff: empty secret")
	}
	if ttl <= 0 {
		return nil, errors.New("handoff: ttl must be positive")
	}
	s := &Signer{issuer: issuer, secret: []byte(secret), ttl: ttl, now: time.Now}
	if formURL != "" {
		u, err := url.Parse(formURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.Errorf("handoff: form URL %q must be an absolute http(s) URL", formURL)
		}
		s.formURL = u
	}
	return s, nil
}

func (s *Signer) Sign(usr session.UserProfile) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   usr.ID.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: usr.Email,
		Name:  usr.DisplayName(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, errors.Wrap(err, "signing handoff token")
}

// URL returns the form URL with a fresh token for usr appended.
func (s *Signer) URL(usr session.UserProfile) (string, error) {
	if s.formURL == nil {
		return "", ErrNoFormURL
	}
	token, err := s.Sign(usr)
	if err != nil {
		return "", err
	}
	u := *s.formURL
	q := u.Query()
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify parses a token issued by this signer. The form's backend uses the same check.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims, nil
}
