package ledgerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/ledger"
)

// Client is a ledger.Node backed by a remote node's HTTP surface. Transport
// and 5xx failures come back wrapped in ledger.ErrUnavailable so callers can
// retry uniformly.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Submit(ctx context.Context, tx *ledger.Tx) (common.Hash, error) {
	var resp submitResponse
	if err := c.post(ctx, "/tx", tx, &resp); err != nil {
		return common.Hash{}, err
	}
	return resp.TxHash, nil
}

func (c *Client) Height(ctx context.Context) (uint64, error) {
	var resp heightResponse
	if err := c.get(ctx, "/height", &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

func (c *Client) Block(ctx context.Context, number uint64) (*ledger.Block, error) {
	var block ledger.Block
	if err := c.get(ctx, fmt.Sprintf("/block/%d", number), &block); err != nil {
		return nil, err
	}
	return &block, nil
}

func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	if err := c.get(ctx, "/receipt/"+txHash.Hex(), &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	var resp nonceResponse
	if err := c.get(ctx, "/nonce/"+addr.Hex(), &resp); err != nil {
		return 0, err
	}
	return resp.Nonce, nil
}

func (c *Client) Call(ctx context.Context, caller common.Address, call contract.Call) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.post(ctx, "/call", callRequest{Caller: caller, Call: call}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Info(ctx context.Context) (*ledger.NodeInfo, error) {
	var info ledger.NodeInfo
	if err := c.get(ctx, "/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ledger.ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ledger.ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Submit answers 202 with a body; receipt-pending answers 202 with
		// an error envelope. Tell them apart by the payload.
		if resp.StatusCode == http.StatusAccepted {
			if msg, ok := decodeErrorBody(body); ok {
				return fmt.Errorf("%w: %s", ledger.ErrPending, msg)
			}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ledger.ErrUnavailable, err)
		}
		return nil
	}

	msg, _ := decodeErrorBody(body)

	// Contract faults from /call arrive as "Kind: message"; anything else
	// parses to the RevertedError fallback and maps onto the sentinels.
	if f := fault.ParseReason(msg); f.Kind != fault.KindReverted {
		return f
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, msg)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ledger.ErrRejected, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: node answered %d: %s", ledger.ErrUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: node answered %d: %s", ledger.ErrUnavailable, resp.StatusCode, msg)
	}
}

func decodeErrorBody(body []byte) (string, bool) {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return string(body), false
	}
	return e.Error, true
}
