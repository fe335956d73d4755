package contract

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/fault"
)

// Call is the method + arguments descriptor carried inside a transaction
// (writes) or evaluated directly against contract state (reads).
type Call struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Write methods.
const (
	MethodRegisterDomain     = "register_domain"
	MethodUnregisterDomain   = "unregister_domain"
	MethodCreateAnnouncement = "create_service_announcement"
	MethodPlaceBid           = "place_bid"
	MethodChooseProvider     = "choose_provider"
	MethodSendEndpointInfo   = "send_endpoint_info"
	MethodServiceDeployed    = "service_deployed"
)

// Read methods.
const (
	MethodServiceState  = "service_state"
	MethodServiceInfo   = "service_info"
	MethodBids          = "bids"
	MethodAnnouncements = "announcements"
	MethodIsWinner      = "is_winner"
	MethodIsRegistered  = "is_registered"
)

type registerDomainArgs struct {
	Name string `json:"name"`
}

type serviceArgs struct {
	ServiceID string `json:"service_id"`
}

type createAnnouncementArgs struct {
	Requirements string `json:"requirements"`
}

type placeBidArgs struct {
	ServiceID string `json:"service_id"`
	Price     uint64 `json:"service_price"`
}

type chooseProviderArgs struct {
	ServiceID string `json:"service_id"`
	BidIndex  int    `json:"bid_index"`
}

type endpointInfoArgs struct {
	ServiceID string   `json:"service_id"`
	Endpoint  Endpoint `json:"endpoint"`
}

type serviceDeployedArgs struct {
	ServiceID     string `json:"service_id"`
	FederatedHost string `json:"federated_host"`
}

type announcementsArgs struct {
	OnlyOpen bool `json:"only_open"`
}

// Results carried back from Apply/Query alongside the receipt.
type (
	CreateResult struct {
		ServiceID string `json:"service_id"`
	}
	BidResult struct {
		BidIndex int `json:"bid_index"`
	}
	StateResult struct {
		State State `json:"state"`
	}
	WinnerResult struct {
		IsWinner bool `json:"is_winner"`
	}
	RegisteredResult struct {
		Registered bool `json:"registered"`
	}
)

// Call constructors. Argument structs marshal unconditionally; a failure
// here would be a programming error, hence the panic in mustJSON.

func NewRegisterDomain(name string) Call {
	return Call{Method: MethodRegisterDomain, Args: mustJSON(registerDomainArgs{Name: name})}
}

func NewUnregisterDomain() Call {
	return Call{Method: MethodUnregisterDomain}
}

func NewCreateAnnouncement(req Requirements) Call {
	return Call{Method: MethodCreateAnnouncement, Args: mustJSON(createAnnouncementArgs{Requirements: req.Encode()})}
}

func NewPlaceBid(serviceID string, price uint64) Call {
	return Call{Method: MethodPlaceBid, Args: mustJSON(placeBidArgs{ServiceID: serviceID, Price: price})}
}

func NewChooseProvider(serviceID string, bidIndex int) Call {
	return Call{Method: MethodChooseProvider, Args: mustJSON(chooseProviderArgs{ServiceID: serviceID, BidIndex: bidIndex})}
}

func NewSendEndpointInfo(serviceID string, ep Endpoint) Call {
	return Call{Method: MethodSendEndpointInfo, Args: mustJSON(endpointInfoArgs{ServiceID: serviceID, Endpoint: ep})}
}

func NewServiceDeployed(serviceID, federatedHost string) Call {
	return Call{Method: MethodServiceDeployed, Args: mustJSON(serviceDeployedArgs{ServiceID: serviceID, FederatedHost: federatedHost})}
}

func NewServiceState(serviceID string) Call {
	return Call{Method: MethodServiceState, Args: mustJSON(serviceArgs{ServiceID: serviceID})}
}

func NewServiceInfo(serviceID string) Call {
	return Call{Method: MethodServiceInfo, Args: mustJSON(serviceArgs{ServiceID: serviceID})}
}

func NewBids(serviceID string) Call {
	return Call{Method: MethodBids, Args: mustJSON(serviceArgs{ServiceID: serviceID})}
}

func NewAnnouncements(onlyOpen bool) Call {
	return Call{Method: MethodAnnouncements, Args: mustJSON(announcementsArgs{OnlyOpen: onlyOpen})}
}

func NewIsWinner(serviceID string) Call {
	return Call{Method: MethodIsWinner, Args: mustJSON(serviceArgs{ServiceID: serviceID})}
}

func NewIsRegistered() Call {
	return Call{Method: MethodIsRegistered}
}

// Apply executes a write call as the authenticated caller at the given block
// height. It returns the method result and emitted events, or a fault whose
// kind becomes the transaction's revert reason.
func (f *Federation) Apply(caller common.Address, call Call, block uint64) (json.RawMessage, []Event, error) {
	switch call.Method {
	case MethodRegisterDomain:
		var args registerDomainArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, nil, err
		}
		events, err := f.RegisterDomain(caller, args.Name)
		return nil, events, err

	case MethodUnregisterDomain:
		events, err := f.UnregisterDomain(caller)
		return nil, events, err

	case MethodCreateAnnouncement:
		var args createAnnouncementArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, nil, err
		}
		id, events, err := f.CreateServiceAnnouncement(caller, args.Requirements, block)
		if err != nil {
			return nil, nil, err
		}
		return mustJSON(CreateResult{ServiceID: id}), events, nil

	case MethodPlaceBid:
		var args placeBidArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, nil, err
		}
		idx, events, err := f.PlaceBid(caller, args.ServiceID, args.Price)
		if err != nil {
			return nil, nil, err
		}
		return mustJSON(BidResult{BidIndex: idx}), events, nil

	case MethodChooseProvider:
		var args chooseProviderArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, nil, err
		}
		events, err := f.ChooseProvider(caller, args.ServiceID, args.BidIndex)
		return nil, events, err

	case MethodSendEndpointInfo:
		var args endpointInfoArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, nil, err
		}
		events, err := f.SendEndpointInfo(caller, args.ServiceID, args.Endpoint)
		return nil, events, err

	case MethodServiceDeployed:
		var args serviceDeployedArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, nil, err
		}
		events, err := f.ServiceDeployed(caller, args.ServiceID, args.FederatedHost)
		return nil, events, err

	default:
		return nil, nil, fault.New(fault.KindValidation, "unknown write method %q", call.Method)
	}
}

// Query evaluates a read-only call as the authenticated caller. Never
// mutates state.
func (f *Federation) Query(caller common.Address, call Call) (json.RawMessage, error) {
	switch call.Method {
	case MethodServiceState:
		var args serviceArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		state, err := f.ServiceState(args.ServiceID)
		if err != nil {
			return nil, err
		}
		return mustJSON(StateResult{State: state}), nil

	case MethodServiceInfo:
		var args serviceArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		ann, err := f.Announcement(args.ServiceID)
		if err != nil {
			return nil, err
		}
		return mustJSON(ann), nil

	case MethodBids:
		var args serviceArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		bids, err := f.Bids(args.ServiceID)
		if err != nil {
			return nil, err
		}
		return mustJSON(bids), nil

	case MethodAnnouncements:
		var args announcementsArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		return mustJSON(f.Announcements(args.OnlyOpen)), nil

	case MethodIsWinner:
		var args serviceArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return nil, err
		}
		win, err := f.IsWinner(args.ServiceID, caller)
		if err != nil {
			return nil, err
		}
		return mustJSON(WinnerResult{IsWinner: win}), nil

	case MethodIsRegistered:
		return mustJSON(RegisteredResult{Registered: f.IsRegistered(caller)}), nil

	default:
		return nil, fault.New(fault.KindValidation, "unknown read method %q", call.Method)
	}
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fault.New(fault.KindValidation, "missing call arguments")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fault.New(fault.KindValidation, "malformed call arguments: %v", err)
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
