package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/operatornet/fedgate/internal/config"
	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/httpserver"
	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/ledger/ledgerhttp"
	"github.com/operatornet/fedgate/internal/logger"
	"github.com/operatornet/fedgate/internal/query"
	"github.com/operatornet/fedgate/internal/submitter"
	"github.com/operatornet/fedgate/internal/subscription"
)

const (
	aliceKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	bobKey   = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
)

type gateway struct {
	srv      *httptest.Server
	registry *subscription.Registry
	engine   *subscription.Engine
}

func testConfig(role string) *config.Config {
	return &config.Config{
		ListenPort:          ":0",
		ShutdownTimeout:     time.Second,
		DomainRole:          role,
		BlockInterval:       20 * time.Millisecond,
		ReadTimeout:         2 * time.Second,
		ReceiptTimeout:      5 * time.Second,
		ReceiptPollInterval: 10 * time.Millisecond,
		SubmitRetries:       2,
		ScanInterval:        time.Hour, // scans are driven manually
		DeliveryTimeout:     time.Second,
		DeliveryRetries:     1,
	}
}

// newGateway wires a gateway the way the app does, minus process lifecycle.
func newGateway(t *testing.T, node ledger.Node, ledgerHandler http.Handler, hexKey, role string) *gateway {
	t.Helper()
	cfg := testConfig(role)
	log := logger.Nop()

	signer, err := ledger.NewSigner(hexKey)
	if err != nil {
		t.Fatal(err)
	}

	registry := subscription.NewRegistry(nil, log)
	engine := subscription.NewEngine(node, registry, log, subscription.EngineOptions{
		ScanInterval:    cfg.ScanInterval,
		DeliveryTimeout: cfg.DeliveryTimeout,
		DeliveryRetries: cfg.DeliveryRetries,
	})

	d := deps.Deps{
		Logger:     log,
		StartTime:  time.Now(),
		DomainRole: role,
		Node:       node,
		Submitter: submitter.New(node, signer, log, submitter.Options{
			Retries:        cfg.SubmitRetries,
			ReceiptTimeout: cfg.ReceiptTimeout,
			PollInterval:   cfg.ReceiptPollInterval,
		}),
		Facade:        query.New(node, signer.Address()),
		Registry:      registry,
		LedgerHandler: ledgerHandler,
	}

	srv := httptest.NewServer(httpserver.New(cfg, log, d).Handler())
	t.Cleanup(srv.Close)
	return &gateway{srv: srv, registry: registry, engine: engine}
}

func (g *gateway) do(t *testing.T, method, path string, body any) (int, map[string]json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, g.srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var fields map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&fields)
	return resp.StatusCode, fields
}

func str(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		t.Fatalf("field %q missing or not a string in %v", key, fields)
	}
	return s
}

func errorKind(t *testing.T, fields map[string]json.RawMessage) string {
	t.Helper()
	var env struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(fields["error"], &env); err != nil {
		t.Fatalf("no error envelope in %v", fields)
	}
	return env.Kind
}

func TestFederationLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alice runs the embedded node; bob reaches the same ledger through the
	// /ledger surface of alice's gateway.
	node := ledger.NewEmbedded(contract.New(), 20*time.Millisecond, logger.Nop())
	if err := node.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer node.Stop()

	alice := newGateway(t, node, ledgerhttp.Handler(node, logger.Nop()), aliceKey, "consumer")
	remote := ledgerhttp.NewClient(alice.srv.URL+"/ledger", 2*time.Second)
	bob := newGateway(t, remote, nil, bobKey, "provider")

	// Webhook for new announcements, registered before anything happens.
	var (
		hookMu     sync.Mutex
		deliveries []subscription.Delivery
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var d subscription.Delivery
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			t.Errorf("decode delivery: %v", err)
		}
		hookMu.Lock()
		deliveries = append(deliveries, d)
		hookMu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	status, fields := alice.do(t, http.MethodPost, "/subscriptions", map[string]string{
		"event_name":   contract.EventServiceAnnouncement,
		"callback_url": hook.URL,
	})
	if status != http.StatusCreated {
		t.Fatalf("create subscription: status %d %v", status, fields)
	}
	subID := str(t, fields, "subscription_id")

	// Both domains register.
	status, fields = alice.do(t, http.MethodPost, "/register_domain", map[string]string{"name": "alice"})
	if status != http.StatusOK || fields["tx_hash"] == nil {
		t.Fatalf("register alice: status %d %v", status, fields)
	}
	aliceRegisterTx := str(t, fields, "tx_hash")
	status, fields = bob.do(t, http.MethodPost, "/register_domain", map[string]string{"name": "bob"})
	if status != http.StatusOK {
		t.Fatalf("register bob: status %d %v", status, fields)
	}

	// The receipt for a confirmed transaction is queryable by hash.
	status, fields = alice.do(t, http.MethodGet, "/tx_receipt?tx_hash="+aliceRegisterTx, nil)
	if status != http.StatusOK {
		t.Fatalf("tx_receipt: status %d %v", status, fields)
	}
	var receiptStatus uint64
	if err := json.Unmarshal(fields["status"], &receiptStatus); err != nil || receiptStatus != 1 {
		t.Fatalf("receipt status = %s, %v", fields["status"], err)
	}

	// A second registration from the same address is rejected with the
	// contract's own error kind.
	status, fields = alice.do(t, http.MethodPost, "/register_domain", map[string]string{"name": "alice-two"})
	if status != http.StatusConflict || errorKind(t, fields) != "AlreadyRegistered" {
		t.Fatalf("re-register: status %d %v", status, fields)
	}

	// Alice opens an announcement.
	status, fields = alice.do(t, http.MethodPost, "/create_service_announcement", map[string]any{
		"service_type": "k8s_deployment",
		"compute_cpus": 2,
	})
	if status != http.StatusOK {
		t.Fatalf("announce: status %d %v", status, fields)
	}
	serviceID := str(t, fields, "service_id")
	if serviceID == "" {
		t.Fatalf("no service_id in %v", fields)
	}

	status, fields = alice.do(t, http.MethodGet, "/service_state?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "service_state") != "open" {
		t.Fatalf("state after announce: status %d %v", status, fields)
	}

	// One scan cycle delivers exactly one webhook for the announcement.
	alice.engine.Scan(ctx)
	hookMu.Lock()
	if len(deliveries) != 1 || deliveries[0].SubscriptionID != subID ||
		deliveries[0].Event.Name != contract.EventServiceAnnouncement ||
		deliveries[0].Event.ServiceID != serviceID {
		t.Fatalf("deliveries = %+v", deliveries)
	}
	hookMu.Unlock()

	// Bob bids 5 through the remote ledger client.
	status, fields = bob.do(t, http.MethodPost, "/place_bid", map[string]any{
		"service_id":    serviceID,
		"service_price": 5,
	})
	if status != http.StatusOK {
		t.Fatalf("bid: status %d %v", status, fields)
	}

	status, _ = bob.do(t, http.MethodGet, "/bids?service_id="+serviceID, nil)
	if status != http.StatusOK {
		t.Fatalf("list bids: status %d", status)
	}

	// Nobody is a winner while the announcement is open.
	status, fields = bob.do(t, http.MethodGet, "/is_winner?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "is_winner") != "no" {
		t.Fatalf("is_winner while open: status %d %v", status, fields)
	}
	status, fields = bob.do(t, http.MethodGet, "/winner_status?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "winner") != "no" {
		t.Fatalf("winner_status while open: status %d %v", status, fields)
	}

	// Alice picks bid 0; bob is now the winner, alice is not.
	status, fields = alice.do(t, http.MethodPost, "/choose_provider", map[string]any{
		"service_id": serviceID,
		"bid_index":  0,
	})
	if status != http.StatusOK {
		t.Fatalf("choose: status %d %v", status, fields)
	}
	status, fields = bob.do(t, http.MethodGet, "/is_winner?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "is_winner") != "yes" {
		t.Fatalf("bob is_winner: status %d %v", status, fields)
	}
	status, fields = alice.do(t, http.MethodGet, "/is_winner?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "is_winner") != "no" {
		t.Fatalf("alice is_winner: status %d %v", status, fields)
	}
	status, fields = bob.do(t, http.MethodGet, "/winner_status?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "winner") != "yes" {
		t.Fatalf("winner_status after choose: status %d %v", status, fields)
	}

	// Bidding after close fails with NotOpen.
	status, fields = bob.do(t, http.MethodPost, "/place_bid", map[string]any{
		"service_id":    serviceID,
		"service_price": 3,
	})
	if status != http.StatusConflict || errorKind(t, fields) != "NotOpen" {
		t.Fatalf("late bid: status %d %v", status, fields)
	}

	// Endpoint exchange from both sides.
	status, fields = alice.do(t, http.MethodPost, "/send_endpoint_info", map[string]string{
		"service_id":         serviceID,
		"service_catalog_db": "catalog-alice",
		"topology_db":        "topo-alice",
		"nsd_id":             "nsd-1",
		"ns_id":              "ns-1",
	})
	if status != http.StatusOK {
		t.Fatalf("alice endpoint: status %d %v", status, fields)
	}
	status, fields = bob.do(t, http.MethodPost, "/send_endpoint_info", map[string]string{
		"service_id":         serviceID,
		"service_catalog_db": "catalog-bob",
	})
	if status != http.StatusOK {
		t.Fatalf("bob endpoint: status %d %v", status, fields)
	}

	// Only the winner may confirm deployment.
	status, fields = alice.do(t, http.MethodPost, "/service_deployed", map[string]string{
		"service_id":     serviceID,
		"federated_host": "10.0.0.10",
	})
	if status != http.StatusForbidden || errorKind(t, fields) != "Forbidden" {
		t.Fatalf("alice deploy: status %d %v", status, fields)
	}
	status, fields = bob.do(t, http.MethodPost, "/service_deployed", map[string]string{
		"service_id":     serviceID,
		"federated_host": "10.0.0.10",
	})
	if status != http.StatusOK {
		t.Fatalf("bob deploy: status %d %v", status, fields)
	}

	status, fields = alice.do(t, http.MethodGet, "/service_state?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "service_state") != "deployed" {
		t.Fatalf("final state: status %d %v", status, fields)
	}
	status, fields = bob.do(t, http.MethodGet, "/service_info?service_id="+serviceID, nil)
	if status != http.StatusOK || str(t, fields, "federated_host") != "10.0.0.10" {
		t.Fatalf("service_info: status %d %v", status, fields)
	}

	// Deleting the subscription stops deliveries for later announcements.
	status, _ = alice.do(t, http.MethodDelete, "/subscriptions/"+subID, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete subscription: status %d", status)
	}
	status, fields = alice.do(t, http.MethodPost, "/create_service_announcement", map[string]any{
		"compute_cpus": 1,
	})
	if status != http.StatusOK {
		t.Fatalf("second announce: status %d %v", status, fields)
	}
	alice.engine.Scan(ctx)
	hookMu.Lock()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries after unsubscribe = %d, want 1", len(deliveries))
	}
	hookMu.Unlock()
}

func TestGatewayValidationAndInfra(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node := ledger.NewEmbedded(contract.New(), 20*time.Millisecond, logger.Nop())
	if err := node.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer node.Stop()

	gw := newGateway(t, node, ledgerhttp.Handler(node, logger.Nop()), aliceKey, "consumer")

	status, fields := gw.do(t, http.MethodPost, "/register_domain", map[string]string{})
	if status != http.StatusBadRequest || errorKind(t, fields) != "ValidationError" {
		t.Fatalf("empty name: status %d %v", status, fields)
	}

	status, fields = gw.do(t, http.MethodGet, "/service_state?service_id=service99", nil)
	if status != http.StatusNotFound || errorKind(t, fields) != "NotFound" {
		t.Fatalf("unknown service: status %d %v", status, fields)
	}

	status, fields = gw.do(t, http.MethodGet, "/service_state", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("missing service_id: status %d %v", status, fields)
	}

	status, fields = gw.do(t, http.MethodDelete, "/subscriptions/no-such-id", nil)
	if status != http.StatusNotFound || errorKind(t, fields) != "NotFound" {
		t.Fatalf("unknown subscription: status %d %v", status, fields)
	}

	status, fields = gw.do(t, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || str(t, fields, "status") != "ok" {
		t.Fatalf("healthz: status %d %v", status, fields)
	}
	status, _ = gw.do(t, http.MethodGet, "/readyz", nil)
	if status != http.StatusOK {
		t.Fatalf("readyz: status %d", status)
	}

	status, fields = gw.do(t, http.MethodGet, "/web3_info", nil)
	if status != http.StatusOK || str(t, fields, "node_id") != "embedded" {
		t.Fatalf("web3_info: status %d %v", status, fields)
	}
}
