// Package submitter turns contract calls into confirmed ledger
// transactions: sign, submit with bounded retries, then poll for the
// receipt until finality or timeout.
package submitter

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/logger"
)

// Options bound the submit/poll loop.
type Options struct {
	// Retries is the number of extra submission attempts after a transport
	// failure. Rejections are never retried.
	Retries int
	// ReceiptTimeout caps the total wait for a receipt.
	ReceiptTimeout time.Duration
	// PollInterval is the pause between receipt polls.
	PollInterval time.Duration
}

// Result is a confirmed transaction.
type Result struct {
	TxHash  common.Hash
	Receipt *ledger.Receipt
}

type Submitter struct {
	node   ledger.Node
	signer *ledger.Signer
	logger logger.Logger
	opts   Options
}

func New(node ledger.Node, signer *ledger.Signer, log logger.Logger, opts Options) *Submitter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 30 * time.Second
	}
	return &Submitter{node: node, signer: signer, logger: log, opts: opts}
}

// Address returns the identity transactions are signed with.
func (s *Submitter) Address() common.Address {
	return s.signer.Address()
}

// Do signs and submits the call, waits for its receipt and re-types reverts
// into their original fault kind. Every error carries a fault kind the
// gateway can map onto an HTTP status.
func (s *Submitter) Do(ctx context.Context, call contract.Call) (*Result, error) {
	hash, err := s.submit(ctx, call)
	if err != nil {
		return nil, err
	}

	receipt, err := s.await(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status == 0 {
		s.logger.Warn("transaction reverted",
			logger.String("tx_hash", hash.Hex()),
			logger.String("method", call.Method),
			logger.String("reason", receipt.RevertReason))
		return nil, fault.ParseReason(receipt.RevertReason)
	}

	s.logger.Debug("transaction confirmed",
		logger.String("tx_hash", hash.Hex()),
		logger.String("method", call.Method),
		logger.Uint64("block", receipt.BlockNumber))
	return &Result{TxHash: hash, Receipt: receipt}, nil
}

func (s *Submitter) submit(ctx context.Context, call contract.Call) (common.Hash, error) {
	var lastErr error
	var tx *ledger.Tx
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying submission",
				logger.Int("attempt", attempt),
				logger.String("method", call.Method),
				logger.Error(lastErr))
			select {
			case <-time.After(s.opts.PollInterval):
			case <-ctx.Done():
				return common.Hash{}, fault.New(fault.KindSubmission, "submission canceled: %v", ctx.Err())
			}
		}

		// The transaction is signed once; retries resubmit it verbatim.
		// A fresh nonce on retry would apply the call a second time when
		// only the response to the first submit was lost.
		if tx == nil {
			nonce, err := s.node.Nonce(ctx, s.signer.Address())
			if err != nil {
				lastErr = err
				continue
			}
			tx = &ledger.Tx{Nonce: nonce, Call: call}
			if err := s.signer.SignTx(tx); err != nil {
				return common.Hash{}, fault.New(fault.KindSubmission, "sign transaction: %v", err)
			}
		}

		hash, err := s.node.Submit(ctx, tx)
		if err == nil {
			return hash, nil
		}
		if errors.Is(err, ledger.ErrRejected) {
			// A duplicate or consumed-nonce rejection can mean an earlier
			// attempt landed and its response was lost. The node holding
			// our hash, pending or sealed, settles it.
			if s.landed(ctx, tx.Hash()) {
				return tx.Hash(), nil
			}
			return common.Hash{}, fault.New(fault.KindSubmission, "transaction rejected: %v", err)
		}
		lastErr = err
	}
	return common.Hash{}, fault.New(fault.KindLedgerUnavailable, "submission failed after %d attempt(s): %v", s.opts.Retries+1, lastErr)
}

func (s *Submitter) landed(ctx context.Context, hash common.Hash) bool {
	_, err := s.node.Receipt(ctx, hash)
	return err == nil || errors.Is(err, ledger.ErrPending)
}

func (s *Submitter) await(ctx context.Context, hash common.Hash) (*ledger.Receipt, error) {
	deadline := time.NewTimer(s.opts.ReceiptTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.node.Receipt(ctx, hash)
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ledger.ErrPending):
		case errors.Is(err, ledger.ErrNotFound):
			// Accepted hashes do not vanish on a single node; treat it as
			// the node having restarted underneath us.
			return nil, fault.New(fault.KindSubmission, "transaction %s dropped by node", hash.Hex())
		default:
			// Transient read failures keep polling until the deadline.
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil, fault.New(fault.KindReceiptTimeout, "no receipt for %s within %s", hash.Hex(), s.opts.ReceiptTimeout)
		case <-ctx.Done():
			return nil, fault.New(fault.KindReceiptTimeout, "wait for %s canceled: %v", hash.Hex(), ctx.Err())
		}
	}
}
