package domain

import "testing"

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"Evil.TEST.":         "evil.test",
		"  example.com ":     "example.com",
		"bücher.example":     "xn--bcher-kva.example",
		"_dmarc.Example.com": "_dmarc.example.com",
		"":                   "",
	}
	for in, want := range cases {
		if got := NormalizeDomain(in); got != want {
			t.Fatalf("NormalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObservationHasIP(t *testing.T) {
	if (Observation{Domain: "evil.test"}).HasIP() {
		t.Fatal("observation without IP reported HasIP")
	}
	if !(Observation{Domain: "evil.test", IP: "10.0.0.1"}).HasIP() {
		t.Fatal("observation with IP reported no IP")
	}
}
