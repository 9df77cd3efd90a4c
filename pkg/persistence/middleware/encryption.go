package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// EnvelopeKey is the session key of the envelope frame holding the ciphertext.
const EnvelopeKey = "__encrypted__"

// ErrNotEncrypted is returned when a stored stack carries no envelope.
var ErrNotEncrypted = errors.New("state is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt,
	// so keys can be rotated without dropping live conversations.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.StateCache
	config EncryptionConfig
}

// NewEncryptionMiddleware seals whole stacks with AES-GCM. The wrapped cache
// only ever sees a single opaque envelope frame.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}
	return func(next ports.StateCache) ports.StateCache {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) seal(stack *domain.ConversationStack) (*domain.ConversationStack, error) {
	plainText, err := json.Marshal(stack)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stack: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt stack: %w", err)
	}

	envelope := domain.NewConversationState(nil)
	if err := envelope.Session.Put(EnvelopeKey, ciphertext); err != nil {
		return nil, err
	}
	return domain.NewConversationStack(envelope), nil
}

func (m *encryptionMiddleware) open(envelope *domain.ConversationStack) (*domain.ConversationStack, error) {
	top := envelope.Peek()
	if top == nil {
		return nil, ErrNotEncrypted
	}
	ciphertext, ok := top.Session.Get(EnvelopeKey)
	if !ok {
		return nil, ErrNotEncrypted
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt stack: %w", err)
	}

	var stack domain.ConversationStack
	if err := json.Unmarshal(plainText, &stack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted stack: %w", err)
	}
	return &stack, nil
}

func (m *encryptionMiddleware) TryRetrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	envelope, err := m.next.TryRetrieve(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) SetClientState(ctx context.Context, userID, clientID string, stack *domain.ConversationStack) error {
	envelope, err := m.seal(stack)
	if err != nil {
		return err
	}
	return m.next.SetClientState(ctx, userID, clientID, envelope)
}

func (m *encryptionMiddleware) SetRoamingState(ctx context.Context, userID string, stack *domain.ConversationStack) error {
	envelope, err := m.seal(stack)
	if err != nil {
		return err
	}
	return m.next.SetRoamingState(ctx, userID, envelope)
}

func (m *encryptionMiddleware) ClearBothStates(ctx context.Context, userID, clientID string) error {
	return m.next.ClearBothStates(ctx, userID, clientID)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
