package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the service type advertised by DP gateways.
	ServiceType = "_dpgw._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default gateway port.
	DefaultPort = 6668

	// InstancePrefix prefixes the device ID in instance names.
	InstancePrefix = "dpgw-"

	// DefaultVersion is advertised when GatewayInfo.Version is empty.
	DefaultVersion = "1"
)

// TXT record key constants.
const (
	TXTKeyDeviceID   = "id"  // Device ID
	TXTKeyProductKey = "pk"  // Product key (optional)
	TXTKeyVersion    = "ver" // Protocol version (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrNotFound            = errors.New("device not found")
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrNoAddress           = errors.New("service has no address")
)

// GatewayInfo is what a gateway advertises.
type GatewayInfo struct {
	// DeviceID is the ID of the device behind the gateway.
	DeviceID string

	// ProductKey identifies the device model.
	ProductKey string

	// Version is the gateway protocol version. Empty means DefaultVersion.
	Version string

	// Port is the gateway's TCP port. Zero means DefaultPort.
	Port uint16
}

// InstanceName returns the mDNS instance name for the gateway.
func (g *GatewayInfo) InstanceName() string {
	name := InstancePrefix + g.DeviceID
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// GatewayService is a gateway found on the network.
type GatewayService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the gateway's TCP port.
	Port uint16

	// Addresses holds the resolved IPs, IPv4 first.
	Addresses []string

	DeviceID   string
	ProductKey string
	Version    string
}

// Address returns host:port for the first resolved address.
func (s *GatewayService) Address() (string, error) {
	if len(s.Addresses) == 0 {
		return "", ErrNoAddress
	}
	return net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port))), nil
}
