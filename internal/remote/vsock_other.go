//go:build !linux

package remote

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"
)

// dialVsock is unavailable: AWS Nitro enclaves are reached over AF_VSOCK,
// which only Linux provides
func dialVsock(_ context.Context, cid, port uint32, _ time.Duration) (net.Conn, error) {
	return nil, fmt.Errorf("cannot dial vsock %d:%d on %s: the enclave transport needs Linux", cid, port, runtime.GOOS)
}
