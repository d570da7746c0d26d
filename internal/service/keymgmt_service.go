package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/audit"
	"github.com/keyline/license-backoffice/internal/domain/product"
	"github.com/keyline/license-backoffice/internal/domain/signingkey"
	"github.com/keyline/license-backoffice/internal/domain/store"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// KeyManagementService owns per-product RSA signing key pairs: generation,
// rotation, and decryption of the stored private key. It implements
// generator.KeySource for the license-file signing path.
type KeyManagementService struct {
	store      store.Store
	keyBits    int
	passphrase string
	logger     *zap.Logger
}

func NewKeyManagementService(st store.Store, keyBits int, passphrase string, logger *zap.Logger) *KeyManagementService {
	if keyBits < 2048 {
		keyBits = 2048
	}
	return &KeyManagementService{
		store:      st,
		keyBits:    keyBits,
		passphrase: passphrase,
		logger:     logger.Named("KeyManagementService"),
	}
}

// GenerateKeysForProduct creates the first key pair for a product. It refuses
// to overwrite an existing active generation; use RotateKeys for that.
func (s *KeyManagementService) GenerateKeysForProduct(ctx context.Context, productID uuid.UUID, actor string) (*signingkey.SigningKey, error) {
	if _, err := s.store.Products().FindByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ierr.ErrNotFound, productID)
		}
		return nil, err
	}

	existing, err := s.store.SigningKeys().FindActiveByProduct(ctx, productID)
	if err != nil && !errors.Is(err, signingkey.ErrNotFound) {
		return nil, fmt.Errorf("signing key lookup failed: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: product already has an active signing key, rotate instead", ierr.ErrConflict)
	}

	return s.mintKeyPair(ctx, productID, 1, actor, audit.ActionCreate)
}

// RotateKeys deactivates the product's current key generation and mints the
// next one. Licenses signed by older generations keep their embedded public
// key and stay verifiable.
func (s *KeyManagementService) RotateKeys(ctx context.Context, productID uuid.UUID, actor string) (*signingkey.SigningKey, error) {
	current, err := s.store.SigningKeys().FindActiveByProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, signingkey.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s has no key to rotate", ierr.ErrNoActiveSigningKey, productID)
		}
		return nil, fmt.Errorf("signing key lookup failed: %w", err)
	}

	rotated, err := s.mintKeyPair(ctx, productID, current.Version+1, actor, audit.ActionKeyRotation)
	if err != nil {
		return nil, err
	}

	metrics.KeyRotations.Inc()
	s.logger.Info("Signing keys rotated",
		zap.String("product_id", productID.String()),
		zap.Int32("version", rotated.Version))
	return rotated, nil
}

func (s *KeyManagementService) mintKeyPair(ctx context.Context, productID uuid.UUID, version int32, actor string, action audit.Action) (*signingkey.SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, s.keyBits)
	if err != nil {
		return nil, fmt.Errorf("RSA key generation failed: %w", err)
	}

	privPEM, encrypted, err := s.encodePrivateKey(priv)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key encoding failed: %w", err)
	}
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	key := &signingkey.SigningKey{
		ProductID:     productID,
		Version:       version,
		PublicKeyPEM:  pubPEM,
		PrivateKeyPEM: privPEM,
		IsEncrypted:   encrypted,
		IsActive:      true,
	}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.SigningKeys().DeactivateForProduct(ctx, productID); err != nil {
			return fmt.Errorf("failed to deactivate prior keys: %w", err)
		}
		id, err := tx.SigningKeys().Create(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to store signing key: %w", err)
		}
		key.ID = id

		entry := &audit.Entry{
			EntityType: "signing_key",
			EntityID:   key.ID,
			Action:     action,
			Actor:      actor,
		}
		if _, err := tx.AuditEntries().Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// PublicKey returns the active generation's public key PEM for a product.
func (s *KeyManagementService) PublicKey(ctx context.Context, productID uuid.UUID) (string, error) {
	key, err := s.store.SigningKeys().FindActiveByProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, signingkey.ErrNotFound) {
			return "", fmt.Errorf("%w: product %s", ierr.ErrNoActiveSigningKey, productID)
		}
		return "", err
	}
	if key.PublicKeyPEM == "" {
		return "", fmt.Errorf("%w: stored public key is empty", ierr.ErrNoActiveSigningKey)
	}
	return key.PublicKeyPEM, nil
}

// PrivateKey decrypts and parses the active generation's private key.
func (s *KeyManagementService) PrivateKey(ctx context.Context, productID uuid.UUID) (*rsa.PrivateKey, error) {
	key, err := s.store.SigningKeys().FindActiveByProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, signingkey.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ierr.ErrNoActiveSigningKey, productID)
		}
		return nil, err
	}
	return s.decodePrivateKey(key)
}

// ActiveKeyPair satisfies generator.KeySource: the private key for signing
// and the public PEM to embed in the license.
func (s *KeyManagementService) ActiveKeyPair(ctx context.Context, productID uuid.UUID) (*rsa.PrivateKey, string, error) {
	key, err := s.store.SigningKeys().FindActiveByProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, signingkey.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: product %s", ierr.ErrNoActiveSigningKey, productID)
		}
		return nil, "", err
	}
	priv, err := s.decodePrivateKey(key)
	if err != nil {
		return nil, "", err
	}
	return priv, key.PublicKeyPEM, nil
}

func (s *KeyManagementService) ListKeys(ctx context.Context, productID uuid.UUID) ([]*signingkey.SigningKey, error) {
	return s.store.SigningKeys().ListByProduct(ctx, productID)
}

// ActiveKey returns the active generation record. Callers must not expose
// the private key PEM it carries.
func (s *KeyManagementService) ActiveKey(ctx context.Context, productID uuid.UUID) (*signingkey.SigningKey, error) {
	key, err := s.store.SigningKeys().FindActiveByProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, signingkey.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ierr.ErrNoActiveSigningKey, productID)
		}
		return nil, err
	}
	return key, nil
}

// encodePrivateKey serialises the key as PKCS#8 PEM. With a configured
// passphrase the PEM body is sealed with scrypt-derived AES-256-GCM first.
func (s *KeyManagementService) encodePrivateKey(priv *rsa.PrivateKey) (string, bool, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", false, fmt.Errorf("private key encoding failed: %w", err)
	}
	plain := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if s.passphrase == "" {
		return string(plain), false, nil
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", false, fmt.Errorf("salt generation failed: %w", err)
	}
	aead, err := s.aead(salt)
	if err != nil {
		return "", false, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", false, fmt.Errorf("nonce generation failed: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plain, nil)
	// Stored layout: salt || nonce || ciphertext, base64 encoded.
	blob := append(append(salt, nonce...), sealed...)
	return base64.StdEncoding.EncodeToString(blob), true, nil
}

func (s *KeyManagementService) decodePrivateKey(key *signingkey.SigningKey) (*rsa.PrivateKey, error) {
	pemBytes := []byte(key.PrivateKeyPEM)

	if key.IsEncrypted {
		if s.passphrase == "" {
			return nil, fmt.Errorf("%w: key is encrypted but no passphrase is configured", ierr.ErrBadPassphrase)
		}
		blob, err := base64.StdEncoding.DecodeString(key.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("stored key is not valid base64: %w", err)
		}
		if len(blob) < saltLen+12 {
			return nil, fmt.Errorf("%w: encrypted key blob is truncated", ierr.ErrBadPassphrase)
		}
		salt := blob[:saltLen]
		aead, err := s.aead(salt)
		if err != nil {
			return nil, err
		}
		nonceSize := aead.NonceSize()
		if len(blob) < saltLen+nonceSize {
			return nil, fmt.Errorf("%w: encrypted key blob is truncated", ierr.ErrBadPassphrase)
		}
		nonce, sealed := blob[saltLen:saltLen+nonceSize], blob[saltLen+nonceSize:]
		pemBytes, err = aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decryption failed", ierr.ErrBadPassphrase)
		}
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("stored private key is not valid PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("private key parsing failed: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("stored private key is not RSA")
	}
	return rsaKey, nil
}

func (s *KeyManagementService) aead(salt []byte) (cipher.AEAD, error) {
	derived, err := scrypt.Key([]byte(s.passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
