package geo

import (
	"path/filepath"
	"testing"
)

func TestLocatorWithoutDatabases(t *testing.T) {
	l, err := Open("", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	if l.Enabled() {
		t.Fatal("locator without databases reports enabled")
	}
	if got := l.Country("8.8.8.8"); got != Unknown {
		t.Fatalf("country = %q, want %q", got, Unknown)
	}
	if got := l.Organization("8.8.8.8"); got != Unknown {
		t.Fatalf("organization = %q, want %q", got, Unknown)
	}
}

func TestNilLocator(t *testing.T) {
	var l *Locator
	if l.Enabled() || l.Country("1.1.1.1") != Unknown || l.Close() != nil {
		t.Fatal("nil locator must behave as disabled")
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb")
	if _, err := Open(missing, ""); err == nil {
		t.Fatal("expected error for missing country database")
	}
	if _, err := Open("", missing); err == nil {
		t.Fatal("expected error for missing ASN database")
	}
}
