package drocluster

import (
	"errors"
	"net"
)

// SchedulerPort is the fixed port the cluster scheduler binds on.
const SchedulerPort = "8786"

// SchedulerEndpoint forms the "<ip>:<port>" endpoint string workers
// connect to.
func SchedulerEndpoint(ip string) string {
	return net.JoinHostPort(ip, SchedulerPort)
}

// DiscoverScheduler inspects the host's bound addresses and returns the
// first reported IPv4 address along with the scheduler endpoint formed from
// it. No validation is done that the address is reachable or that the port
// is free.
func DiscoverScheduler() (string, string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", "", err
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String(), SchedulerEndpoint(ip.String()), nil
		}
	}

	return "", "", errors.New("no usable host IP address found")
}
