package sim

import (
	"context"
	"net"
	"net/netip"
)

// staticBackend answers lookups from a fixed table.
type staticBackend map[string][]netip.Addr

func newStaticBackend(hosts map[string][]string) staticBackend {
	b := make(staticBackend, len(hosts))
	for host, addrs := range hosts {
		for _, s := range addrs {
			// validated by Config.Validate
			b[host] = append(b[host], netip.MustParseAddr(s))
		}
	}
	return b
}

func (b staticBackend) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var addrs []netip.Addr
	for _, addr := range b[host] {
		switch {
		case network == "ip4" && !addr.Is4():
		case network == "ip6" && !addr.Is6():
		default:
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}
