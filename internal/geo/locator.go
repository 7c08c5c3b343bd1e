// Package geo annotates public addresses with their GeoLite2 country and
// autonomous system.
package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

const Unknown = "N/A"

// Locator reads GeoLite2 databases. A Locator without databases answers
// Unknown for every address.
type Locator struct {
	country *geoip2.Reader
	asn     *geoip2.Reader
}

// Open loads the country and ASN databases; an empty path skips that database.
func Open(countryPath, asnPath string) (*Locator, error) {
	l := &Locator{}
	if countryPath != "" {
		db, err := geoip2.Open(countryPath)
		if err != nil {
			return nil, fmt.Errorf("geo: open country database: %w", err)
		}
		l.country = db
	}
	if asnPath != "" {
		db, err := geoip2.Open(asnPath)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("geo: open ASN database: %w", err)
		}
		l.asn = db
	}
	return l, nil
}

func (l *Locator) Enabled() bool {
	return l != nil && (l.country != nil || l.asn != nil)
}

// Country returns the ISO code of ip, or Unknown.
func (l *Locator) Country(ip string) string {
	if l == nil || l.country == nil {
		return Unknown
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Unknown
	}
	record, err := l.country.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return Unknown
	}
	return record.Country.IsoCode
}

// Organization returns "AS<number> <organization>" for ip, or Unknown.
func (l *Locator) Organization(ip string) string {
	if l == nil || l.asn == nil {
		return Unknown
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Unknown
	}
	record, err := l.asn.ASN(parsed)
	if err != nil || record.AutonomousSystemNumber == 0 {
		return Unknown
	}
	return fmt.Sprintf("AS%d %s", record.AutonomousSystemNumber, record.AutonomousSystemOrganization)
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	if l.country != nil {
		errs = append(errs, l.country.Close())
		l.country = nil
	}
	if l.asn != nil {
		errs = append(errs, l.asn.Close())
		l.asn = nil
	}
	return errors.Join(errs...)
}
