package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/sonoscan/internal/logging"
	"github.com/muurk/sonoscan/internal/sonos"
)

// Status is the outcome of identifying one address
type Status int

const (
	// StatusUnreachable means nothing answered the identity call
	StatusUnreachable Status = iota
	// StatusMismatch means something answered but it is not a speaker
	StatusMismatch
	// StatusIdentified means the address is a speaker and Device is populated
	StatusIdentified
)

// String returns a human-readable name for the status
func (s Status) String() string {
	switch s {
	case StatusUnreachable:
		return "unreachable"
	case StatusMismatch:
		return "mismatch"
	case StatusIdentified:
		return "identified"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Identification is the result of asking an address who it is. Err is kept
// for debug logging and is never returned to the scan's caller.
type Identification struct {
	Status Status
	Device Device
	Err    error
}

// Identifier turns a reachable address into a Device
type Identifier interface {
	Identify(ctx context.Context, addr netip.Addr) Identification
}

// HouseholdMember is one zone as reported by another member's topology
type HouseholdMember struct {
	Addr    netip.Addr
	Name    string
	Visible bool
}

// Topology lists every zone in the household of the speaker at addr
type Topology interface {
	HouseholdMembers(ctx context.Context, addr netip.Addr) ([]HouseholdMember, error)
}

// SpeakerClient is the subset of the speaker control API used for
// identification. *sonos.Client implements it.
type SpeakerClient interface {
	DeviceDescription(ctx context.Context) (*sonos.DeviceDescription, error)
	HouseholdID(ctx context.Context) (string, error)
	ZoneGroupState(ctx context.Context) (*sonos.ZoneGroupState, error)
}

// ClientFactory creates a SpeakerClient for an address
type ClientFactory func(addr netip.Addr, timeout time.Duration) SpeakerClient

// DefaultClientFactory talks to the control port of addr
func DefaultClientFactory(addr netip.Addr, timeout time.Duration) SpeakerClient {
	client := sonos.NewClient(addr.String(), ControlPort)
	client.SetTimeout(timeout)
	return client
}

// SpeakerIdentifier identifies speakers over their HTTP control API. It also
// serves household topology queries.
type SpeakerIdentifier struct {
	// Timeout bounds each HTTP request
	Timeout time.Duration

	// NewClient creates the client for an address (DefaultClientFactory if nil)
	NewClient ClientFactory

	Logger *zap.Logger
}

// NewSpeakerIdentifier creates an identifier with the given per-request timeout
func NewSpeakerIdentifier(timeout time.Duration) *SpeakerIdentifier {
	return &SpeakerIdentifier{
		Timeout:   timeout,
		NewClient: DefaultClientFactory,
		Logger:    logging.Named("identify"),
	}
}

func (si *SpeakerIdentifier) client(addr netip.Addr) SpeakerClient {
	factory := si.NewClient
	if factory == nil {
		factory = DefaultClientFactory
	}
	return factory(addr, si.Timeout)
}

func (si *SpeakerIdentifier) logger() *zap.Logger {
	if si.Logger == nil {
		return zap.NewNop()
	}
	return si.Logger
}

// Identify fetches the device description, household id, and the device's
// own topology entry. It never returns an error; failures are folded into the
// returned Status.
func (si *SpeakerIdentifier) Identify(ctx context.Context, addr netip.Addr) Identification {
	client := si.client(addr)

	desc, err := client.DeviceDescription(ctx)
	if err != nil {
		if sonos.IsNetworkError(err) {
			return Identification{Status: StatusUnreachable, Err: err}
		}
		return Identification{Status: StatusMismatch, Err: err}
	}
	if !desc.IsSpeaker() {
		return Identification{
			Status: StatusMismatch,
			Err:    fmt.Errorf("manufacturer %q is not a speaker vendor", desc.Manufacturer),
		}
	}

	household, err := client.HouseholdID(ctx)
	if err != nil {
		return Identification{Status: StatusMismatch, Err: fmt.Errorf("failed to get household id: %w", err)}
	}

	device := Device{
		HouseholdID: household,
		IP:          addr.String(),
		Name:        desc.RoomName,
		Visible:     true,
		Model:       desc.ModelName,
		Version:     desc.DisplayVersion,
	}
	if device.Version == "" {
		device.Version = desc.SoftwareVersion
	}

	// The description already proved this is a speaker, so a failed topology
	// call only costs us the visibility flag.
	state, err := client.ZoneGroupState(ctx)
	if err != nil {
		si.logger().Debug("Topology unavailable during identify",
			zap.String("ip", device.IP),
			zap.Error(err))
	} else if member, ok := state.MemberByAddr(addr); ok {
		device.Visible = member.Visible()
		if device.Name == "" {
			device.Name = member.ZoneName
		}
	}

	return Identification{Status: StatusIdentified, Device: device}
}

// HouseholdMembers asks the speaker at addr for every zone it knows about
func (si *SpeakerIdentifier) HouseholdMembers(ctx context.Context, addr netip.Addr) ([]HouseholdMember, error) {
	state, err := si.client(addr).ZoneGroupState(ctx)
	if err != nil {
		return nil, err
	}

	var members []HouseholdMember
	for _, m := range state.Members() {
		memberAddr, err := m.Addr()
		if err != nil {
			si.logger().Debug("Skipping topology member",
				zap.String("uuid", m.UUID),
				zap.Error(err))
			continue
		}
		members = append(members, HouseholdMember{
			Addr:    memberAddr,
			Name:    m.ZoneName,
			Visible: m.Visible(),
		})
	}
	return members, nil
}
