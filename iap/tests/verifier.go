package tests

import (
	"context"
	"testing"

	"github.com/code-payments/flipchat-entitlements/iap"
)

type PayloadGenerator func() string
type SignedDataFromPayload func(payload string) string

func RunGenericVerifierTests(t *testing.T, v iap.Verifier, payloadGen PayloadGenerator, validFunc, forgedFunc SignedDataFromPayload, teardown func()) {
	for _, testFunc := range []func(t *testing.T, v iap.Verifier, payloadGen PayloadGenerator, validFunc, forgedFunc SignedDataFromPayload){
		testValidSignedData,
		testMalformedSignedData,
		testForgedSignedData,
	} {
		testFunc(t, v, payloadGen, validFunc, forgedFunc)
		teardown()
	}
}

func testValidSignedData(t *testing.T, v iap.Verifier, payloadGen PayloadGenerator, validFunc, _ SignedDataFromPayload) {
	ctx := context.Background()

	payload := payloadGen()
	signedData := validFunc(payload)

	valid, err := v.Verify(ctx, signedData)
	if err != nil {
		t.Fatalf("unexpected error verifying valid signed data: %v", err)
	}
	if !valid {
		t.Errorf("expected signed data to be valid, got invalid")
	}
}

func testMalformedSignedData(t *testing.T, v iap.Verifier, _ PayloadGenerator, _, _ SignedDataFromPayload) {
	ctx := context.Background()

	valid, _ := v.Verify(ctx, "invalid")
	if valid {
		t.Errorf("expected signed data to be invalid, got valid")
	}
}

func testForgedSignedData(t *testing.T, v iap.Verifier, payloadGen PayloadGenerator, _, forgedFunc SignedDataFromPayload) {
	ctx := context.Background()

	valid, err := v.Verify(ctx, forgedFunc(payloadGen()))
	if err != nil {
		t.Fatalf("unexpected error verifying forged signed data: %v", err)
	}
	if valid {
		t.Errorf("expected forged signed data to be invalid, got valid")
	}
}
