package jwks

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MicahParks/jwkset"
)

// Document is the JSON Web Key Set served by the identity provider. Keys are
// kept raw so that one malformed entry does not reject the whole set.
type Document struct {
	Keys []json.RawMessage `json:"keys"`
}

// Key is a decoded verification key. Material is *rsa.PublicKey, *ecdsa.PublicKey or []byte.
type Key struct {
	ID        string
	Type      string
	Algorithm string
	Material  interface{}
}

// ParseKey decodes and validates a single JSON Web Key.
func ParseKey(raw json.RawMessage) (Key, error) {
	jwk, err := jwkset.NewJWKFromRawJSON(raw, jwkset.JWKMarshalOptions{Private: true}, jwkset.JWKValidateOptions{})
	if err != nil {
		return Key{}, err
	}

	meta := jwk.Marshal()
	if meta.KID == "" {
		return Key{}, errors.New("kid is required")
	}
	if meta.USE != "" && meta.USE != jwkset.UseSig {
		return Key{}, fmt.Errorf("key %s is not a signing key (use=%s)", meta.KID, meta.USE)
	}

	material, err := verificationMaterial(jwk.Key())
	if err != nil {
		return Key{}, fmt.Errorf("key %s: %w", meta.KID, err)
	}

	return Key{
		ID:        meta.KID,
		Type:      meta.KTY.String(),
		Algorithm: meta.ALG.String(),
		Material:  material,
	}, nil
}

// verificationMaterial narrows a decoded key to the public half the token
// library verifies with.
func verificationMaterial(key any) (interface{}, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return verificationMaterial(&k.PublicKey)
	case *rsa.PublicKey:
		if k.E < 2 {
			return nil, errors.New("invalid rsa exponent")
		}
		return k, nil
	case *ecdsa.PrivateKey:
		return verificationMaterial(&k.PublicKey)
	case *ecdsa.PublicKey:
		if _, err := k.ECDH(); err != nil {
			return nil, fmt.Errorf("invalid ec point: %w", err)
		}
		return k, nil
	case []byte:
		if len(k) == 0 {
			return nil, errors.New("empty symmetric key")
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported key material %T", key)
	}
}
