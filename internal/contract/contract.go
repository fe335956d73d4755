package contract

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/fault"
)

// State is the lifecycle of a service announcement. Transitions only move
// forward: open -> closed -> deployed.
type State uint8

const (
	StateOpen State = iota
	StateClosed
	StateDeployed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateDeployed:
		return "deployed"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *State) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"open"`:
		*s = StateOpen
	case `"closed"`:
		*s = StateClosed
	case `"deployed"`:
		*s = StateDeployed
	default:
		return fmt.Errorf("unknown service state %s", data)
	}
	return nil
}

// Endpoint is the connection info a party shares for workload migration and
// inter-domain connectivity. Field set kept from the federation contract's
// original surface.
type Endpoint struct {
	ServiceCatalogDB string `json:"service_catalog_db"`
	TopologyDB       string `json:"topology_db"`
	NSDID            string `json:"nsd_id"`
	NSID             string `json:"ns_id"`
}

// Bid is a price offer from a provider domain. Index is the position in
// ledger insertion order; it is stable, never reused and never reordered,
// and is the identifier used by choose_provider.
type Bid struct {
	Bidder common.Address `json:"bidder_domain"`
	Price  uint64         `json:"service_price"`
	Index  int            `json:"bid_index"`
}

// Announcement is a federation request posted by a consumer domain.
// Announcements are never deleted; state deployed is terminal.
type Announcement struct {
	ID               string         `json:"service_id"`
	Announcer        common.Address `json:"announcer_domain"`
	Requirements     string         `json:"requirements"`
	State            State          `json:"state"`
	Bids             []Bid          `json:"bids"`
	WinnerBid        int            `json:"winner_bid_index"` // -1 until a provider is chosen
	EndpointConsumer Endpoint       `json:"endpoint_consumer"`
	EndpointProvider Endpoint       `json:"endpoint_provider"`
	FederatedHost    string         `json:"federated_host"`
	AnnouncedAt      uint64         `json:"announced_at"` // block number
}

// Winner returns the winning bid, or nil while the announcement is open.
func (a *Announcement) Winner() *Bid {
	if a.WinnerBid < 0 || a.WinnerBid >= len(a.Bids) {
		return nil
	}
	return &a.Bids[a.WinnerBid]
}

// Event is emitted by state transitions and recorded on the ledger by the
// executing node.
type Event struct {
	Name    string            `json:"name"`
	Service string            `json:"service_id,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Event names, kept from the original federation contract.
const (
	EventOperatorRegistered  = "OperatorRegistered"
	EventOperatorRemoved     = "OperatorRemoved"
	EventServiceAnnouncement = "ServiceAnnouncement"
	EventNewBid              = "NewBid"
	EventAnnouncementClosed  = "ServiceAnnouncementClosed"
	EventServiceDeployed     = "ServiceDeployedEvent"
)

// Federation is the authoritative state machine: domain registry, service
// announcements, bids, winner selection, endpoint exchange and deployment
// confirmation. Writes are serialized by the executing ledger node; the
// internal lock only protects reads running concurrently with a write.
type Federation struct {
	mu            sync.RWMutex
	operators     map[common.Address]string // address -> domain name
	announcements map[string]*Announcement
	order         []string // announcement ids in creation order
	nextService   uint64
}

func New() *Federation {
	return &Federation{
		operators:     make(map[common.Address]string),
		announcements: make(map[string]*Announcement),
	}
}

// RegisterDomain creates the caller's operator record. An address registers
// at most once; names are labels, not identities, and may collide.
func (f *Federation) RegisterDomain(caller common.Address, name string) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.operators[caller]; ok {
		return nil, fault.New(fault.KindAlreadyRegistered, "address %s already has a registered domain", caller.Hex())
	}
	if name == "" {
		return nil, fault.New(fault.KindValidation, "domain name must not be empty")
	}
	f.operators[caller] = name

	return []Event{{
		Name:  EventOperatorRegistered,
		Attrs: map[string]string{"address": caller.Hex(), "name": name},
	}}, nil
}

// UnregisterDomain removes the caller's operator record. Announcements the
// domain created or bid on are untouched; historical integrity is preserved.
func (f *Federation) UnregisterDomain(caller common.Address) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.operators[caller]; !ok {
		return nil, fault.New(fault.KindNotRegistered, "address %s has no registered domain", caller.Hex())
	}
	delete(f.operators, caller)

	return []Event{{
		Name:  EventOperatorRemoved,
		Attrs: map[string]string{"address": caller.Hex()},
	}}, nil
}

// CreateServiceAnnouncement opens a new announcement and returns its
// contract-generated id. Ids are allocated from a monotonic counter, so they
// are unique across the life of the contract.
func (f *Federation) CreateServiceAnnouncement(caller common.Address, requirements string, block uint64) (string, []Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.operators[caller]; !ok {
		return "", nil, fault.New(fault.KindNotRegistered, "address %s has no registered domain", caller.Hex())
	}

	f.nextService++
	id := fmt.Sprintf("service%d", f.nextService)
	f.announcements[id] = &Announcement{
		ID:           id,
		Announcer:    caller,
		Requirements: requirements,
		State:        StateOpen,
		WinnerBid:    -1,
		AnnouncedAt:  block,
	}
	f.order = append(f.order, id)

	return id, []Event{{
		Name:    EventServiceAnnouncement,
		Service: id,
		Attrs:   map[string]string{"requirements": requirements},
	}}, nil
}

// PlaceBid appends a bid to an open announcement and returns its index.
// A domain may bid more than once; bids are append-only.
func (f *Federation) PlaceBid(caller common.Address, serviceID string, price uint64) (int, []Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.operators[caller]; !ok {
		return 0, nil, fault.New(fault.KindNotRegistered, "address %s has no registered domain", caller.Hex())
	}
	ann, ok := f.announcements[serviceID]
	if !ok {
		return 0, nil, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	if ann.State != StateOpen {
		return 0, nil, fault.New(fault.KindNotOpen, "service %s is %s", serviceID, ann.State)
	}

	idx := len(ann.Bids)
	ann.Bids = append(ann.Bids, Bid{Bidder: caller, Price: price, Index: idx})

	return idx, []Event{{
		Name:    EventNewBid,
		Service: serviceID,
		Attrs:   map[string]string{"max_bid_index": fmt.Sprintf("%d", len(ann.Bids))},
	}}, nil
}

// ChooseProvider selects the winning bid and closes the announcement.
// Only the announcer may choose.
func (f *Federation) ChooseProvider(caller common.Address, serviceID string, bidIndex int) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ann, ok := f.announcements[serviceID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	if ann.Announcer != caller {
		return nil, fault.New(fault.KindForbidden, "only the announcer may choose a provider for %s", serviceID)
	}
	if ann.State != StateOpen {
		return nil, fault.New(fault.KindNotOpen, "service %s is %s", serviceID, ann.State)
	}
	if bidIndex < 0 || bidIndex >= len(ann.Bids) {
		return nil, fault.New(fault.KindIndexOutOfRange, "service %s has %d bid(s), index %d out of range", serviceID, len(ann.Bids), bidIndex)
	}

	ann.WinnerBid = bidIndex
	ann.State = StateClosed

	return []Event{{
		Name:    EventAnnouncementClosed,
		Service: serviceID,
	}}, nil
}

// SendEndpointInfo stores connection info on the announcement. The announcer
// writes the consumer-side endpoint; the winning provider writes the
// provider-side one. Anyone else is rejected.
func (f *Federation) SendEndpointInfo(caller common.Address, serviceID string, ep Endpoint) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ann, ok := f.announcements[serviceID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}

	switch {
	case ann.Announcer == caller:
		ann.EndpointConsumer = ep
	case f.isWinnerLocked(ann, caller):
		ann.EndpointProvider = ep
	default:
		return nil, fault.New(fault.KindForbidden, "caller %s is neither announcer nor winning provider of %s", caller.Hex(), serviceID)
	}
	return nil, nil
}

// ServiceDeployed confirms deployment. Only the winning provider may
// confirm, and only while the announcement is closed; the transition to
// deployed is terminal, so a second call fails with NotClosed.
func (f *Federation) ServiceDeployed(caller common.Address, serviceID, federatedHost string) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ann, ok := f.announcements[serviceID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	if !f.isWinnerLocked(ann, caller) {
		return nil, fault.New(fault.KindForbidden, "caller %s is not the winning provider of %s", caller.Hex(), serviceID)
	}
	if ann.State != StateClosed {
		return nil, fault.New(fault.KindNotClosed, "service %s is %s", serviceID, ann.State)
	}
	if federatedHost == "" {
		return nil, fault.New(fault.KindValidation, "federated_host must not be empty")
	}

	ann.FederatedHost = federatedHost
	ann.State = StateDeployed

	return []Event{{
		Name:    EventServiceDeployed,
		Service: serviceID,
		Attrs:   map[string]string{"federated_host": federatedHost},
	}}, nil
}

// --- read-only projections ---

func (f *Federation) IsRegistered(addr common.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.operators[addr]
	return ok
}

// OperatorName returns the registered name for an address.
func (f *Federation) OperatorName(addr common.Address) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	name, ok := f.operators[addr]
	return name, ok
}

func (f *Federation) ServiceState(serviceID string) (State, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ann, ok := f.announcements[serviceID]
	if !ok {
		return 0, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	return ann.State, nil
}

// Announcement returns a copy of the announcement, bids included.
func (f *Federation) Announcement(serviceID string) (*Announcement, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ann, ok := f.announcements[serviceID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	return copyAnnouncement(ann), nil
}

func (f *Federation) Bids(serviceID string) ([]Bid, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ann, ok := f.announcements[serviceID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	bids := make([]Bid, len(ann.Bids))
	copy(bids, ann.Bids)
	return bids, nil
}

// Announcements lists announcements in creation order, optionally only the
// ones still open for bidding.
func (f *Federation) Announcements(onlyOpen bool) []*Announcement {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Announcement, 0, len(f.order))
	for _, id := range f.order {
		ann := f.announcements[id]
		if onlyOpen && ann.State != StateOpen {
			continue
		}
		out = append(out, copyAnnouncement(ann))
	}
	return out
}

// IsWinner reports whether addr placed the winning bid. False, not an
// error, while no winner has been chosen or when addr never bid.
func (f *Federation) IsWinner(serviceID string, addr common.Address) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ann, ok := f.announcements[serviceID]
	if !ok {
		return false, fault.New(fault.KindNotFound, "unknown service %s", serviceID)
	}
	return f.isWinnerLocked(ann, addr), nil
}

func (f *Federation) isWinnerLocked(ann *Announcement, addr common.Address) bool {
	if ann.State == StateOpen {
		return false
	}
	w := ann.Winner()
	return w != nil && w.Bidder == addr
}

func copyAnnouncement(ann *Announcement) *Announcement {
	cp := *ann
	cp.Bids = make([]Bid, len(ann.Bids))
	copy(cp.Bids, ann.Bids)
	return &cp
}
