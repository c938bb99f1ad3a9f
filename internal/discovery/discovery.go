// Package discovery finds WLED devices on the local network over mDNS.
package discovery

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

const (
	Service = "_wled._tcp"
	Domain  = "local"
)

// Device is one discovered WLED controller
type Device struct {
	Name string
	Host string
	Port int
}

// Address returns host:port, suitable for device.host in the config
func (d Device) Address() string {
	if d.Port == 0 || d.Port == 80 {
		return d.Host
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Browse queries the network for timeout and returns devices sorted by name.
// Cancelling ctx returns what was found so far.
func Browse(ctx context.Context, timeout time.Duration) ([]Device, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	errCh := make(chan error, 1)

	go func() {
		params := &mdns.QueryParam{
			Service:             Service,
			Domain:              Domain,
			Timeout:             timeout,
			Entries:             entries,
			DisableIPv6:         true,
			WantUnicastResponse: true,
		}
		errCh <- mdns.Query(params)
		close(entries)
	}()

	seen := make(map[string]Device)
	for {
		select {
		case <-ctx.Done():
			return sorted(seen), nil
		case entry, ok := <-entries:
			if !ok {
				return sorted(seen), <-errCh
			}
			d, ok := fromEntry(entry)
			if !ok {
				continue
			}
			log.Debug().Str("name", d.Name).Str("host", d.Host).Int("port", d.Port).Msg("mDNS entry")
			seen[d.Address()] = d
		}
	}
}

func fromEntry(entry *mdns.ServiceEntry) (Device, bool) {
	if entry == nil || entry.AddrV4 == nil {
		return Device{}, false
	}
	return Device{
		Name: instanceName(entry.Name),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}, true
}

// instanceName strips the service suffix from "Desk._wled._tcp.local."
func instanceName(full string) string {
	if i := strings.Index(full, "."+Service); i > 0 {
		return strings.ReplaceAll(full[:i], `\ `, " ")
	}
	return strings.TrimSuffix(full, ".")
}

func sorted(m map[string]Device) []Device {
	out := make([]Device, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
