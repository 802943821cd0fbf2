package auth

import (
	"encoding/base64"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// MinSigningKeyLength is the shortest HMAC secret accepted, in bytes.
const MinSigningKeyLength = 32

// KeyMaterial holds the process wide HMAC signing secret.
type KeyMaterial struct {
	secret []byte
}

// NewKeyMaterial decodes a base64 (standard or url alphabet) secret. Values
// that are not valid base64 are used as raw bytes.
func NewKeyMaterial(secret string) (KeyMaterial, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return KeyMaterial{}, goerrors.New("signing key is required", goerrors.CategoryInternal)
	}

	raw := decodeSecret(secret)
	if len(raw) < MinSigningKeyLength {
		return KeyMaterial{}, goerrors.New("signing key is too short", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"min_bytes": MinSigningKeyLength, "bytes": len(raw)})
	}

	return KeyMaterial{secret: raw}, nil
}

// MustKeyMaterial is like NewKeyMaterial but panics on error.
func MustKeyMaterial(secret string) KeyMaterial {
	km, err := NewKeyMaterial(secret)
	if err != nil {
		panic(err)
	}
	return km
}

// Bytes returns a copy of the secret.
func (k KeyMaterial) Bytes() []byte {
	return append([]byte(nil), k.secret...)
}

// IsZero reports whether no secret was loaded.
func (k KeyMaterial) IsZero() bool {
	return len(k.secret) == 0
}

func decodeSecret(secret string) []byte {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		if raw, err := enc.DecodeString(secret); err == nil {
			return raw
		}
	}
	return []byte(secret)
}
