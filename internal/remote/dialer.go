package remote

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dialer opens a connection to an enclave-hosted signer
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)

	// Platform returns the platform name (e.g., "aws-nitro", "dev")
	Platform() string
}

// Platform represents supported enclave platforms
type Platform string

const (
	// PlatformDev is for development using TCP on localhost
	PlatformDev Platform = "dev"

	// PlatformAWSNitro is for AWS Nitro Enclaves (vsock)
	PlatformAWSNitro Platform = "aws-nitro"
)

// DialerConfig selects and configures a Dialer
type DialerConfig struct {
	Platform          string
	VsockCID          uint32
	Port              uint32
	ConnectionTimeout time.Duration
}

// DevTCPDialer connects over TCP for development
type DevTCPDialer struct {
	Host    string
	Port    uint32
	Timeout time.Duration
}

// NewDevTCPDialer creates a new development TCP dialer
func NewDevTCPDialer(port uint32, timeout time.Duration) *DevTCPDialer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &DevTCPDialer{
		Host:    "127.0.0.1",
		Port:    port,
		Timeout: timeout,
	}
}

// Dial connects via TCP
func (d *DevTCPDialer) Dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(d.Host, fmt.Sprint(d.Port))
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", addr)
}

// Platform returns the platform name
func (d *DevTCPDialer) Platform() string {
	return string(PlatformDev)
}

// NitroVsockDialer connects to an AWS Nitro Enclave over AF_VSOCK
type NitroVsockDialer struct {
	CID     uint32
	Port    uint32
	Timeout time.Duration
}

// NewNitroVsockDialer creates a new AWS Nitro vsock dialer
func NewNitroVsockDialer(cid, port uint32, timeout time.Duration) *NitroVsockDialer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &NitroVsockDialer{
		CID:     cid,
		Port:    port,
		Timeout: timeout,
	}
}

// Dial connects via vsock
func (d *NitroVsockDialer) Dial(ctx context.Context) (net.Conn, error) {
	return dialVsock(ctx, d.CID, d.Port, d.Timeout)
}

// Platform returns the platform name
func (d *NitroVsockDialer) Platform() string {
	return string(PlatformAWSNitro)
}

// NewDialer creates a Dialer based on the platform configuration
func NewDialer(cfg *DialerConfig) (Dialer, error) {
	port := cfg.Port
	if port == 0 {
		port = 5000
	}

	switch Platform(cfg.Platform) {
	case PlatformDev:
		return NewDevTCPDialer(port, cfg.ConnectionTimeout), nil

	case PlatformAWSNitro:
		if cfg.VsockCID == 0 {
			return nil, fmt.Errorf("SIGNER_VSOCK_CID is required for AWS Nitro platform")
		}
		return NewNitroVsockDialer(cfg.VsockCID, port, cfg.ConnectionTimeout), nil

	default:
		return nil, fmt.Errorf("unsupported signer platform: %s (supported: %s, %s)",
			cfg.Platform, PlatformDev, PlatformAWSNitro)
	}
}

var (
	_ Dialer = (*DevTCPDialer)(nil)
	_ Dialer = (*NitroVsockDialer)(nil)
)
