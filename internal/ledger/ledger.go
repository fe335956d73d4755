package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/operatornet/fedgate/internal/contract"
)

var (
	// ErrUnavailable wraps transport or node failures. Callers retry on it.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrNotFound is returned for unknown blocks, transactions or receipts.
	ErrNotFound = errors.New("not found on ledger")
	// ErrPending means the transaction is accepted but not yet in a block.
	ErrPending = errors.New("transaction pending")
	// ErrRejected means the node refused the transaction at submission.
	ErrRejected = errors.New("transaction rejected")
)

// Tx is a signed contract call. From and Nonce are covered by the signature;
// a node only accepts a transaction whose signature recovers to From and
// whose nonce is the sender's next.
type Tx struct {
	From  common.Address `json:"from"`
	Nonce uint64         `json:"nonce"`
	Call  contract.Call  `json:"call"`
	Sig   []byte         `json:"sig"`
}

// SigningDigest is the Keccak-256 hash the sender signs: from, nonce, method
// and raw arguments in fixed order.
func (tx *Tx) SigningDigest() common.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], tx.Nonce)
	return common.BytesToHash(crypto.Keccak256(
		tx.From.Bytes(),
		nonce[:],
		[]byte(tx.Call.Method),
		tx.Call.Args,
	))
}

// Hash identifies the transaction on the ledger. It covers the signature, so
// it only exists once the transaction is signed.
func (tx *Tx) Hash() common.Hash {
	digest := tx.SigningDigest()
	return common.BytesToHash(crypto.Keccak256(digest.Bytes(), tx.Sig))
}

// Event is a contract event in ledger context.
type Event struct {
	contract.Event
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
}

// Receipt is the outcome of an executed transaction. Status 1 means the call
// succeeded; status 0 means it reverted and RevertReason carries the
// contract's fault in "Kind: message" form.
type Receipt struct {
	TxHash       common.Hash     `json:"tx_hash"`
	BlockHash    common.Hash     `json:"block_hash"`
	BlockNumber  uint64          `json:"block_number"`
	Status       uint64          `json:"status"`
	From         common.Address  `json:"from_address"`
	To           string          `json:"to_address"`
	Timestamp    int64           `json:"timestamp"`
	RevertReason string          `json:"revert_reason,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Logs         []Event         `json:"logs"`
}

// Block is a sealed batch of transactions. Transactions execute in slice
// order, which is the arrival order at the sealing node.
type Block struct {
	Number     uint64      `json:"number"`
	Hash       common.Hash `json:"hash"`
	ParentHash common.Hash `json:"parent_hash"`
	Timestamp  int64       `json:"timestamp"`
	Txs        []Tx        `json:"txs"`
	Events     []Event     `json:"events"`
}

// NodeInfo describes the node serving the ledger.
type NodeInfo struct {
	NodeID  string      `json:"node_id"`
	Height  uint64      `json:"height"`
	Genesis common.Hash `json:"genesis_hash"`
}

// Reader is the query side of a ledger node.
type Reader interface {
	// Height returns the number of the latest sealed block.
	Height(ctx context.Context) (uint64, error)
	// Block returns a sealed block by number, or ErrNotFound.
	Block(ctx context.Context, number uint64) (*Block, error)
	// Receipt returns the receipt for a transaction. ErrPending while the
	// transaction waits for a block, ErrNotFound for unknown hashes.
	Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	// Nonce returns the next nonce the node will accept for addr.
	Nonce(ctx context.Context, addr common.Address) (uint64, error)
	// Call evaluates a read-only contract call against latest state.
	Call(ctx context.Context, caller common.Address, call contract.Call) (json.RawMessage, error)
	// Info returns node metadata.
	Info(ctx context.Context) (*NodeInfo, error)
}

// Writer is the submission side of a ledger node.
type Writer interface {
	// Submit queues a signed transaction and returns its hash, or
	// ErrRejected when the signature or nonce is invalid.
	Submit(ctx context.Context, tx *Tx) (common.Hash, error)
}

// Node is a full ledger node, local or remote.
type Node interface {
	Reader
	Writer
}
