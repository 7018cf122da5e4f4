package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPair(t *testing.T) (privatePEM, publicPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privatePEM, publicPEM
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	privatePEM, publicPEM := generateKeyPair(t)
	signer, err := NewSigner(privatePEM, publicPEM, "auctioneer")
	require.NoError(t, err)
	return signer
}

func TestGenerateAndValidateToken(t *testing.T) {
	signer := newTestSigner(t)
	account := uuid.New()

	token, expiry, err := signer.GenerateToken(account, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := signer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "auctioneer", claims.Issuer)

	got, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	signer := newTestSigner(t)

	token, _, err := signer.GenerateToken(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = signer.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	issuing := newTestSigner(t)
	validating := newTestSigner(t)

	token, _, err := issuing.GenerateToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = validating.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	signer := newTestSigner(t)

	_, err := signer.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestPublicKeyOnlySignerCannotGenerate(t *testing.T) {
	_, publicPEM := generateKeyPair(t)
	signer, err := NewSignerFromPublicKey(publicPEM, "auctioneer")
	require.NoError(t, err)

	_, _, err = signer.GenerateToken(uuid.New(), time.Hour)
	assert.Error(t, err)
}

func TestPublicKeyOnlySignerValidates(t *testing.T) {
	privatePEM, publicPEM := generateKeyPair(t)

	issuing, err := NewSigner(privatePEM, publicPEM, "auctioneer")
	require.NoError(t, err)
	validating, err := NewSignerFromPublicKey(publicPEM, "auctioneer")
	require.NoError(t, err)

	account := uuid.New()
	token, _, err := issuing.GenerateToken(account, time.Hour)
	require.NoError(t, err)

	claims, err := validating.ValidateToken(token)
	require.NoError(t, err)

	got, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, account, got)
}
