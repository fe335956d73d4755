package ledger

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a domain's secp256k1 key. The derived address is the domain's
// identity on the ledger.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSigner parses a hex-encoded private key, with or without 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.addr
}

// SignTx stamps the transaction with the signer's address and signs its
// digest. From and Sig are overwritten.
func (s *Signer) SignTx(tx *Tx) error {
	tx.From = s.addr
	digest := tx.SigningDigest()
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	tx.Sig = sig
	return nil
}

// Sender recovers the signing address and checks it against tx.From. Nodes
// call this before accepting a transaction.
func Sender(tx *Tx) (common.Address, error) {
	if len(tx.Sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature is %d bytes, want %d", len(tx.Sig), crypto.SignatureLength)
	}
	pub, err := crypto.SigToPub(tx.SigningDigest().Bytes(), tx.Sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	addr := crypto.PubkeyToAddress(*pub)
	if addr != tx.From {
		return common.Address{}, fmt.Errorf("signature recovers to %s, tx claims %s", addr.Hex(), tx.From.Hex())
	}
	return addr, nil
}
