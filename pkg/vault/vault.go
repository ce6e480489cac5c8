// Package vault provides authenticated symmetric encryption for secret
// values, keyed by a deployment master key. Ciphertexts live in the store;
// plaintext is materialized only transiently, to seed the redactor or to
// answer an explicit reveal.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/store"
)

// Vault encrypts and decrypts secret values with AES-256-GCM. The key is
// derived deterministically as SHA-256(master key), so the same deployment
// key always opens the same rows.
type Vault struct {
	store  *store.Store
	aead   cipher.AEAD
	logger *slog.Logger
}

// New derives the encryption key from masterKey and returns a vault bound
// to the store. An empty master key refuses construction.
func New(st *store.Store, masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("%w: MASTER_KEY is required for secrets vault", contracts.ErrConfiguration)
	}
	key := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: cipher init: %v", contracts.ErrVault, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: gcm init: %v", contracts.ErrVault, err)
	}
	return &Vault{
		store:  st,
		aead:   aead,
		logger: slog.Default().With("component", "vault"),
	}, nil
}

// Store encrypts value and inserts a secret row, returning its header.
func (v *Vault) Store(ctx context.Context, scope, name, value string) (*contracts.SecretHeader, error) {
	ciphertext, err := v.encrypt(value)
	if err != nil {
		return nil, err
	}
	header := &contracts.SecretHeader{
		ID:        uuid.New().String(),
		Scope:     scope,
		Name:      name,
		CreatedAt: contracts.NowUTC(),
	}
	err = v.store.Tx(ctx, func(tx *store.Tx) error {
		return tx.InsertSecret(header.ID, header.Scope, header.Name, ciphertext, header.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// List returns secret headers, optionally filtered by scope. Values are
// never included.
func (v *Vault) List(ctx context.Context, scope string) ([]contracts.SecretHeader, error) {
	return v.store.ListSecretHeaders(ctx, scope)
}

// Reveal decrypts a single secret by id.
func (v *Vault) Reveal(ctx context.Context, id string) (string, error) {
	ciphertext, err := v.store.SecretCiphertext(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contracts.ErrVault, err)
	}
	plaintext, err := v.decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return plaintext, nil
}

// Plaintexts decrypts every stored secret value for the redactor. Rows that
// fail authentication are skipped so a single corrupt row does not block a
// run; the skip is logged.
func (v *Vault) Plaintexts(ctx context.Context) ([]string, error) {
	ciphertexts, err := v.store.ListSecretCiphertexts(ctx)
	if err != nil {
		return nil, err
	}
	plaintexts := make([]string, 0, len(ciphertexts))
	for _, ct := range ciphertexts {
		pt, err := v.decrypt(ct)
		if err != nil {
			v.logger.Warn("skipping undecryptable secret row", "error", err)
			continue
		}
		plaintexts = append(plaintexts, pt)
	}
	return plaintexts, nil
}

func (v *Vault) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", contracts.ErrVault, err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext decode: %v", contracts.ErrVault, err)
	}
	if len(data) < v.aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", contracts.ErrVault)
	}
	nonce, sealed := data[:v.aead.NonceSize()], data[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", contracts.ErrVault)
	}
	return string(plaintext), nil
}
