package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/MicahParks/jwkset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func rawJWK(fields map[string]string) json.RawMessage {
	raw, _ := json.Marshal(fields)
	return raw
}

func rsaJWK(t *testing.T, kid string) (json.RawMessage, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return rawJWK(map[string]string{
		"kid": kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   b64(priv.N.Bytes()),
		"e":   b64(big.NewInt(int64(priv.E)).Bytes()),
	}), priv
}

func TestParseKey_RSA(t *testing.T) {
	raw, priv := rsaJWK(t, "k1")

	key, err := ParseKey(raw)
	require.NoError(t, err)
	assert.Equal(t, "k1", key.ID)
	assert.Equal(t, "RSA", key.Type)
	assert.Equal(t, "RS256", key.Algorithm)

	pub, ok := key.Material.(*rsa.PublicKey)
	require.True(t, ok)
	assert.Equal(t, 0, priv.N.Cmp(pub.N))
	assert.Equal(t, priv.E, pub.E)
}

func TestParseKey_RSAPrivateKeyYieldsPublicHalf(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwk, err := jwkset.NewJWKFromKey(priv, jwkset.JWKOptions{
		Marshal:  jwkset.JWKMarshalOptions{Private: true},
		Metadata: jwkset.JWKMetadataOptions{KID: "p1", ALG: jwkset.AlgRS256},
	})
	require.NoError(t, err)
	raw, err := json.Marshal(jwk.Marshal())
	require.NoError(t, err)

	key, err := ParseKey(raw)
	require.NoError(t, err)
	pub, ok := key.Material.(*rsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestParseKey_EC(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	raw := rawJWK(map[string]string{
		"kid": "ec1",
		"kty": "EC",
		"crv": "P-256",
		"x":   b64(priv.X.FillBytes(make([]byte, 32))),
		"y":   b64(priv.Y.FillBytes(make([]byte, 32))),
	})

	key, err := ParseKey(raw)
	require.NoError(t, err)
	assert.Equal(t, "", key.Algorithm)
	pub, ok := key.Material.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestParseKey_ECPointNotOnCurve(t *testing.T) {
	raw := rawJWK(map[string]string{
		"kid": "ec1",
		"kty": "EC",
		"crv": "P-256",
		"x":   b64(make([]byte, 32)),
		"y":   b64([]byte{1}),
	})
	_, err := ParseKey(raw)
	assert.Error(t, err)
}

func TestParseKey_Oct(t *testing.T) {
	key, err := ParseKey(rawJWK(map[string]string{"kid": "h1", "kty": "oct", "alg": "HS256", "k": b64([]byte("secret"))}))
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), key.Material)
}

func TestParseKey_Rejected(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	n := b64(priv.N.Bytes())

	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"missing kid", rawJWK(map[string]string{"kty": "oct", "k": b64([]byte("x"))})},
		{"encryption key", rawJWK(map[string]string{"kid": "e1", "kty": "oct", "use": "enc", "k": b64([]byte("x"))})},
		{"unknown use", rawJWK(map[string]string{"kid": "e1", "kty": "oct", "use": "wrap", "k": b64([]byte("x"))})},
		{"unsupported kty", rawJWK(map[string]string{"kid": "o1", "kty": "OKP"})},
		{"unknown kty", rawJWK(map[string]string{"kid": "o1", "kty": "XYZ"})},
		{"missing rsa params", rawJWK(map[string]string{"kid": "r1", "kty": "RSA"})},
		{"exponent of one", rawJWK(map[string]string{"kid": "r1", "kty": "RSA", "n": n, "e": b64([]byte{1})})},
		{"oversized exponent", rawJWK(map[string]string{"kid": "r1", "kty": "RSA", "n": n, "e": b64([]byte{1, 0, 0, 0, 0, 0, 1, 0, 1})})},
		{"unsupported curve", rawJWK(map[string]string{"kid": "c1", "kty": "EC", "crv": "secp256k1", "x": b64([]byte{1}), "y": b64([]byte{1})})},
		{"empty oct", rawJWK(map[string]string{"kid": "h1", "kty": "oct"})},
		{"bad base64", rawJWK(map[string]string{"kid": "h1", "kty": "oct", "k": "***"})},
		{"not an object", json.RawMessage(`"k1"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKey(tt.raw)
			assert.Error(t, err)
		})
	}
}
