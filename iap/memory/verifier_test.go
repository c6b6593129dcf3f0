package memory_test

import (
	"testing"

	"github.com/code-payments/flipchat-entitlements/iap/memory"
	"github.com/code-payments/flipchat-entitlements/iap/tests"
)

func TestMemoryVerifier(t *testing.T) {
	pub, priv, err := memory.GenerateKeyPair()
	if err != nil {
		t.Fatalf("error generating key pair: %v", err)
	}

	_, forger, err := memory.GenerateKeyPair()
	if err != nil {
		t.Fatalf("error generating key pair: %v", err)
	}

	verifier := memory.NewMemoryVerifier(pub)
	payloadGenerator := func() string {
		return "tx_1:gold100"
	}
	validSignedDataFunc := func(payload string) string {
		return memory.Sign(priv, payload)
	}
	forgedSignedDataFunc := func(payload string) string {
		return memory.Sign(forger, payload)
	}

	teardown := func() {}

	tests.RunGenericVerifierTests(t,
		verifier, payloadGenerator, validSignedDataFunc, forgedSignedDataFunc, teardown)
}
