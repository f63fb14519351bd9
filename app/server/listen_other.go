//go:build !unix

package server

import (
	"fmt"
	"net"
)

func listenTCP4(port int) (net.Listener, error) {
	return net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", port))
}
