// Package crypto implements the four primitives the core consumes as
// pure functions per spec §4.2: passphrase-to-pubkey, sign, verify, and
// address-from-pubkey. The signature algorithm is secp256k1/ECDSA, the
// same curve the teacher already depends on via btcec for account
// addressing (accountsigner.NormalizeSigner, AddressFromSigner); address
// encoding is base58 over the raw public key bytes, per spec §4.2.
package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// PubkeyLength is the byte length of an uncompressed secp256k1 public key.
const PubkeyLength = 65

var (
	// ErrInvalidSeed is returned when a seed cannot be turned into a valid private key.
	ErrInvalidSeed = errors.New("crypto: invalid seed")
	// ErrInvalidPubkey is returned when pubkey bytes do not parse as a secp256k1 point.
	ErrInvalidPubkey = errors.New("crypto: invalid public key")
)

// seedToPrivateKey derives a deterministic secp256k1 private key from an
// arbitrary-length seed by hashing it down to a scalar, matching the
// "passphrase_to_pubkey" contract: the same seed always yields the same
// keypair.
func seedToPrivateKey(seed []byte) (*btcec.PrivateKey, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	digest := sha256.Sum256(seed)
	priv, _ := btcec.PrivKeyFromBytes(digest[:])
	if priv == nil {
		return nil, ErrInvalidSeed
	}
	return priv, nil
}

// PassphraseToPubkey derives the uncompressed public key bytes for seed.
func PassphraseToPubkey(seed []byte) ([]byte, error) {
	priv, err := seedToPrivateKey(seed)
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeUncompressed(), nil
}

// Sign signs msg with the keypair derived from seed and returns a
// detached DER signature.
func Sign(msg, seed []byte) ([]byte, error) {
	priv, err := seedToPrivateKey(seed)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(msg)
	sig := ecdsa.Sign(priv, digest[:])
	return sig.Serialize(), nil
}

// Verify reports whether sig is a valid DER signature over msg by pubkey.
func Verify(msg, sig, pubkey []byte) bool {
	pub, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return parsed.Verify(digest[:], pub)
}

// Address returns the base58 account address for an uncompressed public key.
func Address(pubkey []byte) (string, error) {
	if _, err := btcec.ParsePubKey(pubkey); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	return base58.Encode(pubkey), nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b, the hash
// primitive used for move ids and block/move hashes throughout this
// module (spec §3, §4.1).
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}
