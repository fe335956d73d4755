// Package query is the read path of the gateway: thin, role-aware
// projections over the ledger's query surface.
package query

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/ledger"
)

// ServiceInfo is the announcement as seen by this domain. Endpoint carries
// the caller's own side: the announcer sees the consumer endpoint it sent,
// the winner the provider endpoint. Other domains get no endpoint at all.
type ServiceInfo struct {
	ServiceID     string                `json:"service_id"`
	State         contract.State        `json:"state"`
	Announcer     common.Address        `json:"announcer_domain"`
	Requirements  contract.Requirements `json:"requirements"`
	BidCount      int                   `json:"bid_count"`
	FederatedHost string                `json:"federated_host,omitempty"`
	Endpoint      *contract.Endpoint    `json:"endpoint,omitempty"`
}

// Facade evaluates read-only contract calls as this domain's address.
type Facade struct {
	node ledger.Reader
	self common.Address
}

func New(node ledger.Reader, self common.Address) *Facade {
	return &Facade{node: node, self: self}
}

func (f *Facade) NodeInfo(ctx context.Context) (*ledger.NodeInfo, error) {
	info, err := f.node.Info(ctx)
	if err != nil {
		return nil, retype(err)
	}
	return info, nil
}

// TxReceipt returns the receipt for an arbitrary transaction hash. Pending
// transactions are a NotFound from the API's point of view: the receipt does
// not exist yet.
func (f *Facade) TxReceipt(ctx context.Context, hash common.Hash) (*ledger.Receipt, error) {
	receipt, err := f.node.Receipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ledger.ErrPending) {
			return nil, fault.New(fault.KindNotFound, "transaction %s not yet sealed", hash.Hex())
		}
		return nil, retype(err)
	}
	return receipt, nil
}

func (f *Facade) ServiceState(ctx context.Context, serviceID string) (contract.State, error) {
	var out contract.StateResult
	if err := f.call(ctx, contract.NewServiceState(serviceID), &out); err != nil {
		return 0, err
	}
	return out.State, nil
}

// ServiceInfo projects the announcement for this domain, attaching only the
// endpoint this domain wrote.
func (f *Facade) ServiceInfo(ctx context.Context, serviceID string) (*ServiceInfo, error) {
	var ann contract.Announcement
	if err := f.call(ctx, contract.NewServiceInfo(serviceID), &ann); err != nil {
		return nil, err
	}

	info := &ServiceInfo{
		ServiceID:     ann.ID,
		State:         ann.State,
		Announcer:     ann.Announcer,
		Requirements:  contract.ParseRequirements(ann.Requirements),
		BidCount:      len(ann.Bids),
		FederatedHost: ann.FederatedHost,
	}
	switch {
	case ann.Announcer == f.self:
		ep := ann.EndpointConsumer
		info.Endpoint = &ep
	case winnerIs(&ann, f.self):
		ep := ann.EndpointProvider
		info.Endpoint = &ep
	}
	return info, nil
}

func (f *Facade) Bids(ctx context.Context, serviceID string) ([]contract.Bid, error) {
	var bids []contract.Bid
	if err := f.call(ctx, contract.NewBids(serviceID), &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

func (f *Facade) Announcements(ctx context.Context, onlyOpen bool) ([]*contract.Announcement, error) {
	var anns []*contract.Announcement
	if err := f.call(ctx, contract.NewAnnouncements(onlyOpen), &anns); err != nil {
		return nil, err
	}
	return anns, nil
}

func (f *Facade) IsWinner(ctx context.Context, serviceID string) (bool, error) {
	var out contract.WinnerResult
	if err := f.call(ctx, contract.NewIsWinner(serviceID), &out); err != nil {
		return false, err
	}
	return out.IsWinner, nil
}

func (f *Facade) IsRegistered(ctx context.Context) (bool, error) {
	var out contract.RegisteredResult
	if err := f.call(ctx, contract.NewIsRegistered(), &out); err != nil {
		return false, err
	}
	return out.Registered, nil
}

func (f *Facade) call(ctx context.Context, call contract.Call, out any) error {
	raw, err := f.node.Call(ctx, f.self, call)
	if err != nil {
		return retype(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fault.New(fault.KindLedgerUnavailable, "decode %s result: %v", call.Method, err)
	}
	return nil
}

// retype maps ledger sentinels to fault kinds and lets typed faults pass.
func retype(err error) error {
	var f *fault.Fault
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, ledger.ErrNotFound) {
		return fault.New(fault.KindNotFound, "%v", err)
	}
	return fault.New(fault.KindLedgerUnavailable, "%v", err)
}

func winnerIs(ann *contract.Announcement, addr common.Address) bool {
	if ann.State == contract.StateOpen {
		return false
	}
	w := ann.Winner()
	return w != nil && w.Bidder == addr
}
