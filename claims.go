package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RawClaims is the decoded, unverified payload of a token. Numbers are kept
// as json.Number so identifiers survive without float rounding.
type RawClaims map[string]any

// ExpiresAt returns the exp claim, if present and numeric. Fractional
// seconds are kept.
func (c RawClaims) ExpiresAt() (time.Time, bool) {
	ms, ok := c.expiresAtMillis()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(0).Add(time.Duration(ms * float64(time.Millisecond))), true
}

// expiresAtMillis reads exp as epoch milliseconds without truncation.
func (c RawClaims) expiresAtMillis() (float64, bool) {
	var secs float64
	switch v := c["exp"].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		secs = f
	case float64:
		secs = v
	case float32:
		secs = float64(v)
	case int:
		secs = float64(v)
	case int64:
		secs = float64(v)
	case int32:
		secs = float64(v)
	default:
		return 0, false
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, false
	}
	return secs * 1000, true
}

var claimsParser = jwt.NewParser(
	jwt.WithJSONNumber(),
	jwt.WithPaddingAllowed(),
)

// DecodeClaims parses the payload segment of a header.payload.signature token.
// The signature is not verified and the alg header is not enforced.
func DecodeClaims(token string) (RawClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, wrapError(ErrMalformedToken, nil, map[string]any{"reason": "empty token"})
	}

	claims := jwt.MapClaims{}
	_, parts, err := claimsParser.ParseUnverified(token, claims)
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return nil, wrapError(ErrMalformedToken, err, nil)
	}

	// a null payload decodes without error and leaves claims empty
	payload, err := claimsParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, wrapError(ErrMalformedToken, err, nil)
	}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, wrapError(ErrMalformedToken, nil, map[string]any{"reason": "payload is not an object"})
	}

	return RawClaims(claims), nil
}
