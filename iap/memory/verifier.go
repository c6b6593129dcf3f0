package memory

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/code-payments/flipchat-entitlements/iap"
)

// MemoryVerifier checks an ed25519 signature on a transaction's signed data.
// The signed data format is base64(signature)|payload.
type MemoryVerifier struct {
	publicKey ed25519.PublicKey
}

// NewMemoryVerifier creates a new MemoryVerifier from a given public key.
func NewMemoryVerifier(pubKey ed25519.PublicKey) iap.Verifier {
	return &MemoryVerifier{publicKey: pubKey}
}

func (m *MemoryVerifier) Verify(ctx context.Context, signedData string) (bool, error) {
	signature, payload, err := parseSignedData(signedData)
	if err != nil {
		// Malformed data is an unverified transaction, not a verifier failure.
		return false, nil
	}

	return ed25519.Verify(m.publicKey, payload, signature), nil
}

func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func Sign(signer ed25519.PrivateKey, payload string) string {
	signature := ed25519.Sign(signer, []byte(payload))
	return base64.StdEncoding.EncodeToString(signature) + "|" + payload
}

func parseSignedData(signedData string) (signature []byte, payload []byte, err error) {
	parts := strings.SplitN(signedData, "|", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid signed data format: %s", signedData)
	}

	signature, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("error decoding signature: %w", err)
	}

	payload = []byte(parts[1])
	return signature, payload, nil
}
