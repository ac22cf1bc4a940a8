// Package xnet parses the endpoint addresses the clone channels connect to.
package xnet

import (
	"fmt"
	"strings"
)

// ParseProtoAddr parses an address as a protocol and address pair.
// If no protocol specified, this function return an error
func ParseProtoAddr(s string) (string, string, error) {
	parts := strings.SplitN(s, "://", 2)
	if len(parts) == 1 {
		return "", "", fmt.Errorf("no protocol is specified in '%s'", s)
	}
	if parts[1] == "" {
		return "", "", fmt.Errorf("no address is specified in '%s'", s)
	}
	return parts[0], parts[1], nil
}

// DialTarget turns an endpoint such as tcp://localhost:5556 or
// unix:///run/clone.sock into a gRPC dial target. Protocols other than tcp
// and unix are passed through as the bare address; callers using them must
// supply their own dialer.
func DialTarget(endpoint string) (proto string, target string, err error) {
	proto, addr, err := ParseProtoAddr(endpoint)
	if err != nil {
		return "", "", err
	}

	switch proto {
	case "unix":
		return proto, "unix://" + addr, nil
	case "tcp":
		if !strings.Contains(addr, ":") {
			return "", "", fmt.Errorf("missing port in '%s'", endpoint)
		}
		return proto, addr, nil
	}
	return proto, addr, nil
}
