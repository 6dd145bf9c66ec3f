package auth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ClaimShape tags the variant an identity is built from.
type ClaimShape int

const (
	ShapeUnknown ClaimShape = iota
	// ShapeFlat carries identity fields at the top level of the claims.
	ShapeFlat
	// ShapeNested carries identity fields under a "user" object.
	ShapeNested
	// ShapeServerUser is the user object returned by login or registration.
	ShapeServerUser
)

func (s ClaimShape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeNested:
		return "nested"
	case ShapeServerUser:
		return "server_user"
	default:
		return "unknown"
	}
}

const (
	reasonMissingExp         = "missing_exp"
	reasonExpired            = "expired"
	reasonUnrecognizedShape  = "unrecognized_shape"
	reasonUndecodableFields  = "undecodable_fields"
	reasonMissingUserPayload = "missing_user"
)

// identityFields lists every field name observed across backends, canonical
// and localized synonym side by side.
type identityFields struct {
	ID     any            `mapstructure:"id"`
	Name   string         `mapstructure:"name"`
	Nombre string         `mapstructure:"nombre"`
	Email  string         `mapstructure:"email"`
	Role   string         `mapstructure:"role"`
	Rol    string         `mapstructure:"rol"`
	User   map[string]any `mapstructure:"user"`
}

func (f identityFields) id() string {
	return stringifyID(f.ID)
}

func (f identityFields) name() string {
	return firstNonEmpty(f.Name, f.Nombre)
}

func (f identityFields) role() string {
	return firstNonEmpty(f.Role, f.Rol)
}

// identitySource is one classified input for buildIdentity.
type identitySource struct {
	shape    ClaimShape
	fields   identityFields
	fallback *identityFields
}

// NormalizeClaims maps decoded claims into an Identity. Claims without exp,
// claims whose exp is before now, and claims of no known shape are rejected
// with ErrExpiredOrUnrecognizedClaims.
func NormalizeClaims(claims RawClaims, now time.Time) (*Identity, error) {
	src, err := classifyNormalized(claims, now)
	if err != nil {
		return nil, err
	}
	return buildIdentity(src), nil
}

// IdentityFromUser maps a server user object, or a persisted identity blob,
// into an Identity.
func IdentityFromUser(user map[string]any) (*Identity, error) {
	if len(user) == 0 {
		return nil, unrecognized(reasonMissingUserPayload, nil)
	}
	fields, err := decodeFields(user)
	if err != nil {
		return nil, unrecognized(reasonUndecodableFields, map[string]any{"cause": err.Error()})
	}
	return buildIdentity(identitySource{shape: ShapeServerUser, fields: fields}), nil
}

// ResolveIdentity derives the identity for a freshly issued token. An explicit
// user object wins; the token claims are only decoded when it is absent.
func ResolveIdentity(token string, user map[string]any, now time.Time) (*Identity, ClaimShape, error) {
	if len(user) > 0 {
		identity, err := IdentityFromUser(user)
		if err != nil {
			return nil, ShapeUnknown, err
		}
		return identity, ShapeServerUser, nil
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		return nil, ShapeUnknown, err
	}
	src, err := classifyNormalized(claims, now)
	if err != nil {
		return nil, ShapeUnknown, err
	}
	return buildIdentity(src), src.shape, nil
}

// IdentityFromToken decodes and normalizes a token in one step.
func IdentityFromToken(token string, now time.Time) (*Identity, error) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return nil, err
	}
	return NormalizeClaims(claims, now)
}

func classifyNormalized(claims RawClaims, now time.Time) (identitySource, error) {
	expMillis, ok := claims.expiresAtMillis()
	if !ok {
		return identitySource{}, unrecognized(reasonMissingExp, nil)
	}
	if expMillis < float64(now.UnixMilli()) {
		return identitySource{}, unrecognized(reasonExpired, map[string]any{"exp": int64(expMillis / 1000)})
	}
	return classifyClaims(claims)
}

func classifyClaims(claims RawClaims) (identitySource, error) {
	top, err := decodeFields(claims)
	if err != nil {
		return identitySource{}, unrecognized(reasonUndecodableFields, map[string]any{"cause": err.Error()})
	}

	var nested *identityFields
	if len(top.User) > 0 {
		fields, err := decodeFields(top.User)
		if err != nil {
			return identitySource{}, unrecognized(reasonUndecodableFields, map[string]any{"cause": err.Error()})
		}
		nested = &fields
	}

	if top.id() != "" || top.role() != "" || top.Email != "" {
		return identitySource{shape: ShapeFlat, fields: top, fallback: nested}, nil
	}

	if nested != nil {
		return identitySource{shape: ShapeNested, fields: *nested}, nil
	}

	return identitySource{}, unrecognized(reasonUnrecognizedShape, nil)
}

func buildIdentity(src identitySource) *Identity {
	f := src.fields
	identity := &Identity{
		ID:          f.id(),
		DisplayName: f.name(),
		Email:       strings.TrimSpace(f.Email),
		Role:        ParseRole(f.role()),
	}

	if fb := src.fallback; fb != nil {
		if identity.ID == "" {
			identity.ID = fb.id()
		}
		if identity.DisplayName == "" {
			identity.DisplayName = fb.name()
		}
		if identity.Email == "" {
			identity.Email = strings.TrimSpace(fb.Email)
		}
		if f.role() == "" {
			identity.Role = ParseRole(fb.role())
		}
	}

	return identity
}

func decodeFields(input map[string]any) (identityFields, error) {
	var fields identityFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return fields, err
	}
	if err := decoder.Decode(input); err != nil {
		return fields, err
	}
	return fields, nil
}

func stringifyID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func unrecognized(reason string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["reason"] = reason
	return wrapError(ErrExpiredOrUnrecognizedClaims, nil, meta)
}
