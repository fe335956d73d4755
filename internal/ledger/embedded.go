package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/logger"
)

const contractName = "federation"

// Embedded is a single-node in-process ledger. All transactions land on one
// node, so arrival order is total order; a ticker seals pending transactions
// into blocks and applies them to the federation contract.
type Embedded struct {
	contract *contract.Federation
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}

	mu       sync.Mutex
	pending  []Tx
	inflight map[common.Hash]struct{}
	blocks   []*Block
	receipts map[common.Hash]*Receipt
	nonces   map[common.Address]uint64
}

// NewEmbedded creates the node and seals the genesis block.
func NewEmbedded(fed *contract.Federation, interval time.Duration, log logger.Logger) *Embedded {
	genesis := &Block{
		Number:    0,
		Hash:      common.BytesToHash(crypto.Keccak256([]byte("fedgate genesis"))),
		Timestamp: time.Now().Unix(),
	}
	return &Embedded{
		contract: fed,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
		inflight: make(map[common.Hash]struct{}),
		blocks:   []*Block{genesis},
		receipts: make(map[common.Hash]*Receipt),
		nonces:   make(map[common.Address]uint64),
	}
}

// Start begins the periodic block sealing loop.
func (n *Embedded) Start(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.Seal()
			case <-n.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the sealing loop. Pending transactions stay queued.
func (n *Embedded) Stop() {
	close(n.stopCh)
}

// Submit verifies signature and nonce, queues the transaction and returns
// its hash. The nonce is consumed on acceptance, so a sender can queue
// several transactions into the same block.
func (n *Embedded) Submit(_ context.Context, tx *Tx) (common.Hash, error) {
	if _, err := Sender(tx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if want := n.nonces[tx.From]; tx.Nonce != want {
		return common.Hash{}, fmt.Errorf("%w: nonce %d for %s, want %d", ErrRejected, tx.Nonce, tx.From.Hex(), want)
	}
	hash := tx.Hash()
	if _, ok := n.inflight[hash]; ok {
		return common.Hash{}, fmt.Errorf("%w: duplicate transaction %s", ErrRejected, hash.Hex())
	}
	if _, ok := n.receipts[hash]; ok {
		return common.Hash{}, fmt.Errorf("%w: duplicate transaction %s", ErrRejected, hash.Hex())
	}

	n.nonces[tx.From]++
	n.pending = append(n.pending, *tx)
	n.inflight[hash] = struct{}{}
	return hash, nil
}

// Seal packs every pending transaction into a new block, executes them in
// arrival order and records their receipts. No-op when nothing is pending.
func (n *Embedded) Seal() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.pending) == 0 {
		return
	}
	txs := n.pending
	n.pending = nil

	parent := n.blocks[len(n.blocks)-1]
	block := &Block{
		Number:     parent.Number + 1,
		ParentHash: parent.Hash,
		Timestamp:  time.Now().Unix(),
		Txs:        txs,
	}

	hasher := [][]byte{parent.Hash.Bytes(), blockNumberBytes(block.Number)}
	for i := range txs {
		tx := &txs[i]
		txHash := tx.Hash()
		delete(n.inflight, txHash)
		hasher = append(hasher, txHash.Bytes())

		receipt := &Receipt{
			TxHash:      txHash,
			BlockNumber: block.Number,
			Status:      1,
			From:        tx.From,
			To:          contractName,
			Timestamp:   block.Timestamp,
		}
		result, events, err := n.contract.Apply(tx.From, tx.Call, block.Number)
		if err != nil {
			receipt.Status = 0
			receipt.RevertReason = err.Error()
			n.logger.Debug("transaction reverted",
				logger.String("tx_hash", txHash.Hex()),
				logger.String("method", tx.Call.Method),
				logger.String("reason", receipt.RevertReason))
		} else {
			receipt.Result = result
			for _, ev := range events {
				receipt.Logs = append(receipt.Logs, Event{
					Event:       ev,
					TxHash:      txHash,
					BlockNumber: block.Number,
				})
			}
			block.Events = append(block.Events, receipt.Logs...)
		}
		n.receipts[txHash] = receipt
	}

	block.Hash = common.BytesToHash(crypto.Keccak256(hasher...))
	for i := range txs {
		n.receipts[txs[i].Hash()].BlockHash = block.Hash
	}
	n.blocks = append(n.blocks, block)

	n.logger.Debug("sealed block",
		logger.Uint64("number", block.Number),
		logger.Int("txs", len(txs)),
		logger.Int("events", len(block.Events)))
}

func (n *Embedded) Height(context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blocks[len(n.blocks)-1].Number, nil
}

func (n *Embedded) Block(_ context.Context, number uint64) (*Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if number >= uint64(len(n.blocks)) {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, number)
	}
	return n.blocks[number], nil
}

func (n *Embedded) Receipt(_ context.Context, txHash common.Hash) (*Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.receipts[txHash]; ok {
		return r, nil
	}
	if _, ok := n.inflight[txHash]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPending, txHash.Hex())
	}
	return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, txHash.Hex())
}

func (n *Embedded) Nonce(_ context.Context, addr common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nonces[addr], nil
}

// Call evaluates a read against latest sealed state plus nothing pending:
// pending transactions are invisible to reads until sealed.
func (n *Embedded) Call(_ context.Context, caller common.Address, call contract.Call) (json.RawMessage, error) {
	return n.contract.Query(caller, call)
}

func (n *Embedded) Info(context.Context) (*NodeInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &NodeInfo{
		NodeID:  "embedded",
		Height:  n.blocks[len(n.blocks)-1].Number,
		Genesis: n.blocks[0].Hash,
	}, nil
}

func blockNumberBytes(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}
