package federation

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"

	"github.com/go-jose/go-jose/v4"

	"github.com/dagregi/oidf-federation/errors"
)

// rsaKeyBits is the modulus size mandated for the entity's signing key.
const rsaKeyBits = 2048

// KeyManager holds an entity's RSA signing key pair. It generates the pair exactly once, on
// Initialize, and never exposes the private half through any exported operation.
type KeyManager struct {
	mu          sync.Mutex
	initialized bool
	kid         string
	privateKey  *rsa.PrivateKey
	publicJWK   jose.JSONWebKey
}

// NewKeyManager returns an uninitialized KeyManager. Initialize must be called before signing or
// publishing a JWK.
func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// Initialize generates the RSA-2048 key pair and derives the key ID from entityName. It must be
// called exactly once.
func (k *KeyManager) Initialize(entityName string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.initialized {
		return errors.Kindf(errors.KeyInitFailure, "key manager already initialized")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return errors.Kindf(errors.KeyInitFailure, "failed to generate RSA key pair: %w", err)
	}

	kid := entityName + "-key-1"
	k.privateKey = privateKey
	k.kid = kid
	k.publicJWK = jose.JSONWebKey{
		Key:       privateKey.Public(),
		KeyID:     kid,
		Use:       "sig",
		Algorithm: string(jose.RS256),
	}
	k.initialized = true
	return nil
}

// PublicJWK returns the entity's public signing key as a JWK. It never contains private key
// material.
func (k *KeyManager) PublicJWK() (jose.JSONWebKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.initialized {
		return jose.JSONWebKey{}, errors.Kindf(errors.KeyInitFailure, "key manager not initialized")
	}
	return k.publicJWK, nil
}

// KeyID returns the kid this KeyManager signs with.
func (k *KeyManager) KeyID() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.initialized {
		return "", errors.Kindf(errors.KeyInitFailure, "key manager not initialized")
	}
	return k.kid, nil
}

// signingKey returns the private key and kid to sign with. It is unexported: only code within
// this package (the Signer) may reach the private key, and even then only to hand it to a JWS
// signer, never to serialize or log it.
func (k *KeyManager) signingKey() (*rsa.PrivateKey, string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.initialized {
		return nil, "", errors.Kindf(errors.SignFailure, "key manager not initialized")
	}
	return k.privateKey, k.kid, nil
}
