package query

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/logger"
)

var (
	consumer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// deployedFixture builds a federation with one deployed service and both
// endpoints exchanged, served by an embedded node with no sealer running.
func deployedFixture(t *testing.T) (*contract.Federation, *ledger.Embedded) {
	t.Helper()
	fed := contract.New()
	steps := []struct {
		name string
		run  func() error
	}{
		{"register consumer", func() error { _, err := fed.RegisterDomain(consumer, "consumer"); return err }},
		{"register provider", func() error { _, err := fed.RegisterDomain(provider, "provider"); return err }},
		{"announce", func() error {
			_, _, err := fed.CreateServiceAnnouncement(consumer, contract.Requirements{ComputeCPUs: 4}.Encode(), 1)
			return err
		}},
		{"bid", func() error { _, _, err := fed.PlaceBid(provider, "service1", 9); return err }},
		{"choose", func() error { _, err := fed.ChooseProvider(consumer, "service1", 0); return err }},
		{"consumer endpoint", func() error {
			_, err := fed.SendEndpointInfo(consumer, "service1", contract.Endpoint{ServiceCatalogDB: "catalog-a"})
			return err
		}},
		{"provider endpoint", func() error {
			_, err := fed.SendEndpointInfo(provider, "service1", contract.Endpoint{ServiceCatalogDB: "catalog-b"})
			return err
		}},
		{"deploy", func() error { _, err := fed.ServiceDeployed(provider, "service1", "10.0.0.5"); return err }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
	}
	return fed, ledger.NewEmbedded(fed, time.Hour, logger.Nop())
}

func TestServiceInfoRoleShaping(t *testing.T) {
	_, node := deployedFixture(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		self        common.Address
		wantCatalog string
		wantNoEP    bool
	}{
		{"announcer sees consumer endpoint", consumer, "catalog-a", false},
		{"winner sees provider endpoint", provider, "catalog-b", false},
		{"stranger sees no endpoint", stranger, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := New(node, tt.self).ServiceInfo(ctx, "service1")
			if err != nil {
				t.Fatalf("ServiceInfo: %v", err)
			}
			if info.State != contract.StateDeployed || info.FederatedHost != "10.0.0.5" || info.BidCount != 1 {
				t.Fatalf("info = %+v", info)
			}
			if info.Requirements.ComputeCPUs != 4 {
				t.Fatalf("requirements = %+v", info.Requirements)
			}
			if tt.wantNoEP {
				if info.Endpoint != nil {
					t.Fatalf("endpoint = %+v, want none", info.Endpoint)
				}
				return
			}
			if info.Endpoint == nil || info.Endpoint.ServiceCatalogDB != tt.wantCatalog {
				t.Fatalf("endpoint = %+v, want catalog %q", info.Endpoint, tt.wantCatalog)
			}
		})
	}
}

func TestFacadeReads(t *testing.T) {
	_, node := deployedFixture(t)
	ctx := context.Background()
	f := New(node, provider)

	state, err := f.ServiceState(ctx, "service1")
	if err != nil || state != contract.StateDeployed {
		t.Fatalf("state = %v, %v", state, err)
	}

	bids, err := f.Bids(ctx, "service1")
	if err != nil || len(bids) != 1 || bids[0].Bidder != provider {
		t.Fatalf("bids = %+v, %v", bids, err)
	}

	win, err := f.IsWinner(ctx, "service1")
	if err != nil || !win {
		t.Fatalf("IsWinner = %v, %v", win, err)
	}

	registered, err := f.IsRegistered(ctx)
	if err != nil || !registered {
		t.Fatalf("IsRegistered = %v, %v", registered, err)
	}

	anns, err := f.Announcements(ctx, false)
	if err != nil || len(anns) != 1 {
		t.Fatalf("announcements = %+v, %v", anns, err)
	}
	open, err := f.Announcements(ctx, true)
	if err != nil || len(open) != 0 {
		t.Fatalf("open announcements = %+v, %v", open, err)
	}

	info, err := f.NodeInfo(ctx)
	if err != nil || info.NodeID != "embedded" {
		t.Fatalf("node info = %+v, %v", info, err)
	}
}

func TestFacadeNotFound(t *testing.T) {
	_, node := deployedFixture(t)
	f := New(node, consumer)

	if _, err := f.ServiceState(context.Background(), "service9"); !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	if _, err := f.TxReceipt(context.Background(), common.HexToHash("0xdead")); !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("receipt err = %v, want NotFound", err)
	}
}

// downReader fails every read with a transport error.
type downReader struct{}

func (downReader) Height(context.Context) (uint64, error) { return 0, errDown() }
func (downReader) Block(context.Context, uint64) (*ledger.Block, error) {
	return nil, errDown()
}
func (downReader) Receipt(context.Context, common.Hash) (*ledger.Receipt, error) {
	return nil, errDown()
}
func (downReader) Nonce(context.Context, common.Address) (uint64, error) { return 0, errDown() }
func (downReader) Call(context.Context, common.Address, contract.Call) (json.RawMessage, error) {
	return nil, errDown()
}
func (downReader) Info(context.Context) (*ledger.NodeInfo, error) { return nil, errDown() }

func errDown() error { return fmt.Errorf("%w: connection refused", ledger.ErrUnavailable) }

func TestFacadeUnavailable(t *testing.T) {
	f := New(downReader{}, consumer)
	ctx := context.Background()

	if _, err := f.ServiceState(ctx, "service1"); !fault.IsKind(err, fault.KindLedgerUnavailable) {
		t.Fatalf("state err = %v, want LedgerUnavailable", err)
	}
	if _, err := f.NodeInfo(ctx); !fault.IsKind(err, fault.KindLedgerUnavailable) {
		t.Fatalf("info err = %v, want LedgerUnavailable", err)
	}
}
