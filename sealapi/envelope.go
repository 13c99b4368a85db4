package sealapi

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// Reveal results that cross a process boundary travel as untagged COSE_Sign1
// structures: a 4-element CBOR array [protected, unprotected, payload,
// signature] signed with ES256 by the sealing capability. Verifying the
// envelope before applying a callback keeps a forged or replayed wire message
// from steering an award.

// algES256 is the COSE algorithm header (label 1) value for ES256.
const algES256 = -7

// EncodeRevealEnvelope signs a reveal result and encodes it as an untagged
// COSE_Sign1 CBOR array.
func EncodeRevealEnvelope(res RevealResult, key *ecdsa.PrivateKey) ([]byte, error) {
	payload, err := cbor.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal reveal payload: %w", err)
	}

	protected, err := cbor.Marshal(map[int64]int64{1: algES256})
	if err != nil {
		return nil, fmt.Errorf("marshal protected headers: %w", err)
	}

	sigStructure, err := sigStructureBytes(protected, payload)
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	signature, err := signer.Sign(rand.Reader, sigStructure)
	if err != nil {
		return nil, fmt.Errorf("sign reveal envelope: %w", err)
	}

	envelope := []any{
		protected,
		map[any]any{}, // empty unprotected headers
		payload,
		signature,
	}
	out, err := cbor.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

// VerifyRevealEnvelope checks the envelope signature against the capability's
// public key and returns the embedded reveal result.
func VerifyRevealEnvelope(envelopeBytes []byte, key *ecdsa.PublicKey) (RevealResult, error) {
	var coseArray []any
	if err := cbor.Unmarshal(envelopeBytes, &coseArray); err != nil {
		return RevealResult{}, fmt.Errorf("parse COSE array: %w", err)
	}
	if len(coseArray) != 4 {
		return RevealResult{}, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protected, ok := coseArray[0].([]byte)
	if !ok {
		return RevealResult{}, fmt.Errorf("invalid protected headers")
	}
	payload, ok := coseArray[2].([]byte)
	if !ok {
		return RevealResult{}, fmt.Errorf("invalid payload")
	}
	signature, ok := coseArray[3].([]byte)
	if !ok {
		return RevealResult{}, fmt.Errorf("invalid signature")
	}

	sigStructure, err := sigStructureBytes(protected, payload)
	if err != nil {
		return RevealResult{}, err
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, key)
	if err != nil {
		return RevealResult{}, fmt.Errorf("create verifier: %w", err)
	}
	if err := verifier.Verify(sigStructure, signature); err != nil {
		return RevealResult{}, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	var res RevealResult
	if err := cbor.Unmarshal(payload, &res); err != nil {
		return RevealResult{}, fmt.Errorf("unmarshal reveal payload: %w", err)
	}
	return res, nil
}

// sigStructureBytes builds the COSE_Sign1 Sig_structure:
// ["Signature1", protected, external_aad, payload] with empty external_aad.
func sigStructureBytes(protected, payload []byte) ([]byte, error) {
	sigStructure := []any{
		"Signature1",
		protected,
		[]byte{},
		payload,
	}
	out, err := cbor.Marshal(sigStructure)
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}
	return out, nil
}
