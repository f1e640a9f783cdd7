package auth

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Validator checks RS256 tokens issued by the auth service. With no
// public key configured it parses without verification, for local dev
// only.
type Validator struct {
	pub *rsa.PublicKey
}

func NewValidator(pubKeyPath string) (*Validator, error) {
	if pubKeyPath == "" {
		return &Validator{}, nil
	}
	b, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &Validator{pub: pub}, nil
}

// Validate returns the token subject: the user id, or the email for
// older tokens.
func (v *Validator) Validate(tokenStr string) (string, error) {
	var token *jwt.Token
	var err error
	if v.pub != nil {
		token, err = jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return v.pub, nil
		})
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	}
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}
