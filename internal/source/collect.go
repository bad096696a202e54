package source

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/munichmade/hostsync/internal/hosts"
)

// Collector turns DNS resource records into hosts records.
// It is shared by the sources that speak the DNS wire or zone file format.
type Collector struct {
	zone     string
	types    map[uint16]bool
	records  *hosts.Records
	warnings []string
}

// NewCollector returns a Collector for zone that keeps recordTypes.
// Only address types (A, AAAA) can be collected.
func NewCollector(zone string, recordTypes []string) (*Collector, error) {
	types := make(map[uint16]bool, len(recordTypes))
	for _, name := range recordTypes {
		t, ok := dns.StringToType[strings.ToUpper(name)]
		if !ok || (t != dns.TypeA && t != dns.TypeAAAA) {
			return nil, fmt.Errorf("unsupported record type %q", name)
		}
		types[t] = true
	}

	return &Collector{
		zone:    dns.Fqdn(zone),
		types:   types,
		records: hosts.NewRecords(),
	}, nil
}

// Add records rr. Records outside the zone are ignored; alias records
// produce a warning.
func (c *Collector) Add(rr dns.RR) {
	hdr := rr.Header()
	if !dns.IsSubDomain(c.zone, hdr.Name) {
		return
	}

	switch rr := rr.(type) {
	case *dns.A:
		if c.types[dns.TypeA] {
			c.records.Add(rr.A.String(), hdr.Name)
		}
	case *dns.AAAA:
		if c.types[dns.TypeAAAA] {
			c.records.Add(rr.AAAA.String(), hdr.Name)
		}
	case *dns.CNAME, *dns.DNAME:
		c.Warn("ignoring alias record %s", strings.ReplaceAll(rr.String(), "\t", " "))
	}
}

// Warn adds a warning.
func (c *Collector) Warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Result returns the collected records and warnings.
func (c *Collector) Result() (*hosts.Records, []string) {
	return c.records, c.warnings
}
