package geo

// City represents a MaxmindDB city lookup result, trimmed to the fields
// the hint endpoint consumes.
type City struct {
	Continent Continent `maxminddb:"continent" json:"continent"`
	Country   Country   `maxminddb:"country" json:"country"`
	Location  Location  `maxminddb:"location" json:"location"`
}

// Located reports whether the lookup actually resolved the address.
// A miss leaves the struct zeroed, which would otherwise read as a
// valid coordinate in the Gulf of Guinea.
func (c *City) Located() bool {
	return c.Country.IsoCode != "" || c.Location.AccuracyRadius != 0
}

type Continent struct {
	Code  string            `maxminddb:"code" json:"code"`
	Names map[string]string `maxminddb:"names" json:"names"`
}

type Country struct {
	IsoCode string            `maxminddb:"iso_code" json:"iso_code"`
	Names   map[string]string `maxminddb:"names" json:"names"`
}

type Location struct {
	AccuracyRadius uint16  `maxminddb:"accuracy_radius" json:"accuracy_radius"`
	Latitude       float64 `maxminddb:"latitude" json:"latitude"`
	Longitude      float64 `maxminddb:"longitude" json:"longitude"`
}
