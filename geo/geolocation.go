// Package geo resolves client IPs to approximate coordinates, used for
// the daily location hint.
package geo

import (
	"net"
)

type Provider interface {
	City(ip net.IP) (*City, error)
	Close() error
}
