package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type MaxmindProvider struct {
	db *maxminddb.Reader
}

// NewMaxmindProvider opens a GeoLite2 City database.
func NewMaxmindProvider(geoPath string) (Provider, error) {
	// db can be hot-reloaded if the file changed
	db, err := maxminddb.Open(geoPath)

	if err != nil {
		return nil, fmt.Errorf("unable to open geo database: %w", err)
	}

	return &MaxmindProvider{db: db}, nil
}

func (m *MaxmindProvider) City(ip net.IP) (*City, error) {
	var city City

	if err := m.db.Lookup(ip, &city); err != nil {
		return nil, err
	}

	return &city, nil
}

func (m *MaxmindProvider) Close() error {
	if m.db != nil {
		return m.db.Close()
	}

	return nil
}
