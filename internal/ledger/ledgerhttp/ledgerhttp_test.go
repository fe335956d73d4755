package ledgerhttp

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/logger"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newPair(t *testing.T) (*ledger.Embedded, *Client) {
	t.Helper()
	node := ledger.NewEmbedded(contract.New(), 50*time.Millisecond, logger.Nop())
	srv := httptest.NewServer(Handler(node, logger.Nop()))
	t.Cleanup(srv.Close)
	return node, NewClient(srv.URL, 2*time.Second)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	node, client := newPair(t)

	signer, err := ledger.NewSigner(testKey)
	if err != nil {
		t.Fatal(err)
	}

	nonce, err := client.Nonce(ctx, signer.Address())
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	tx := &ledger.Tx{Nonce: nonce, Call: contract.NewRegisterDomain("operator-a")}
	if err := signer.SignTx(tx); err != nil {
		t.Fatal(err)
	}

	hash, err := client.Submit(ctx, tx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if hash != tx.Hash() {
		t.Fatalf("hash = %s, want %s", hash.Hex(), tx.Hash().Hex())
	}

	// Pending until the node seals.
	if _, err := client.Receipt(ctx, hash); !errors.Is(err, ledger.ErrPending) {
		t.Fatalf("receipt err = %v, want ErrPending", err)
	}

	node.Seal()

	receipt, err := client.Receipt(ctx, hash)
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if receipt.Status != 1 || receipt.BlockNumber != 1 {
		t.Fatalf("receipt = %+v", receipt)
	}

	height, err := client.Height(ctx)
	if err != nil || height != 1 {
		t.Fatalf("Height = %d, %v", height, err)
	}

	block, err := client.Block(ctx, 1)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if block.Hash != receipt.BlockHash || len(block.Events) != 1 {
		t.Fatalf("block = %+v", block)
	}

	raw, err := client.Call(ctx, signer.Address(), contract.NewIsRegistered())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(raw) != `{"registered":true}` {
		t.Fatalf("call result = %s", raw)
	}

	info, err := client.Info(ctx)
	if err != nil || info.Height != 1 {
		t.Fatalf("Info = %+v, %v", info, err)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	_, client := newPair(t)

	if _, err := client.Receipt(ctx, common.HexToHash("0xdead")); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown receipt err = %v, want ErrNotFound", err)
	}
	if _, err := client.Block(ctx, 99); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown block err = %v, want ErrNotFound", err)
	}

	// Unsigned transactions bounce with ErrRejected.
	tx := &ledger.Tx{Nonce: 0, Call: contract.NewRegisterDomain("x")}
	if _, err := client.Submit(ctx, tx); !errors.Is(err, ledger.ErrRejected) {
		t.Fatalf("unsigned submit err = %v, want ErrRejected", err)
	}

	// Contract faults cross the wire with their kind intact.
	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	if _, err := client.Call(ctx, caller, contract.NewServiceState("service9")); !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("call fault = %v, want NotFound", err)
	}
}

func TestClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()
	client := NewClient(srv.URL, 500*time.Millisecond)

	if _, err := client.Height(context.Background()); !errors.Is(err, ledger.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
