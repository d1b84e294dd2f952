package ipam

import (
	"sort"
	"testing"
)

func TestParseAddr(t *testing.T) {
	cases := map[string]struct {
		family int
		ok     bool
	}{
		"147.87.250.3":     {4, true},
		"2a07:6b40::1":     {6, true},
		" 10.0.0.1 ":       {4, true},
		"::ffff:10.0.0.1":  {4, true}, // mapped addresses fold to IPv4
		"1.2.3":            {0, false},
		"1.2.3.4.5":        {0, false},
		"2a07:6b40::zz":    {0, false},
		"":                 {0, false},
		"147.87.250.3/24":  {0, false},
	}
	for input, want := range cases {
		addr, err := ParseAddr(input)
		if want.ok != (err == nil) {
			t.Errorf("ParseAddr(%q) error = %v, want ok=%v", input, err, want.ok)
			continue
		}
		if err == nil && addr.Family() != want.family {
			t.Errorf("ParseAddr(%q).Family() = %d, want %d", input, addr.Family(), want.family)
		}
	}
}

func TestParseCidrRejectsHostBits(t *testing.T) {
	if _, err := ParseCidr("192.168.1.5/24"); err == nil {
		t.Error("ParseCidr accepted non-canonical prefix")
	}
	c, err := ParseCidrNormalize("192.168.1.5/24")
	if err != nil {
		t.Fatalf("ParseCidrNormalize: %v", err)
	}
	if c.String() != "192.168.1.0/24" {
		t.Errorf("normalized to %q, want 192.168.1.0/24", c.String())
	}
}

func TestCidrContains(t *testing.T) {
	c, err := ParseCidr("2a07:6b40::/32")
	if err != nil {
		t.Fatal(err)
	}
	in, _ := ParseAddr("2a07:6b40:0:1::5")
	out, _ := ParseAddr("2a07:6b41::1")
	v4, _ := ParseAddr("10.0.0.1")
	if !c.Contains(in) {
		t.Errorf("%s should contain %s", c, in)
	}
	if c.Contains(out) {
		t.Errorf("%s should not contain %s", c, out)
	}
	if c.Contains(v4) {
		t.Errorf("%s should not contain the IPv4 address %s", c, v4)
	}
}

func TestCidrOverlapsAndNesting(t *testing.T) {
	parent, _ := ParseCidr("10.0.0.0/8")
	child, _ := ParseCidr("10.1.0.0/16")
	sibling, _ := ParseCidr("11.0.0.0/8")

	if !parent.Overlaps(child) || !child.Overlaps(parent) {
		t.Error("nested ranges must overlap")
	}
	if parent.Overlaps(sibling) {
		t.Error("disjoint ranges must not overlap")
	}
	if !parent.ContainsCidr(child) {
		t.Error("parent must contain child")
	}
	if child.ContainsCidr(parent) {
		t.Error("child must not contain parent")
	}
}

func TestCidrOrdering(t *testing.T) {
	raw := []string{"10.1.0.0/16", "10.0.0.0/8", "10.0.0.0/16", "9.0.0.0/8"}
	cidrs := make([]Cidr, 0, len(raw))
	for _, s := range raw {
		c, err := ParseCidr(s)
		if err != nil {
			t.Fatal(err)
		}
		cidrs = append(cidrs, c)
	}
	sort.Slice(cidrs, func(i, j int) bool { return cidrs[i].Compare(cidrs[j]) < 0 })

	want := []string{"9.0.0.0/8", "10.0.0.0/8", "10.0.0.0/16", "10.1.0.0/16"}
	for i, c := range cidrs {
		if c.String() != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, c, want[i])
		}
	}
}

func TestSupernets(t *testing.T) {
	c, _ := ParseCidr("192.168.4.0/24")
	supers := c.Supernets()
	if len(supers) != 24 {
		t.Fatalf("got %d supernets, want 24", len(supers))
	}
	if supers[0].String() != "192.168.4.0/23" {
		t.Errorf("nearest supernet = %s, want 192.168.4.0/23", supers[0])
	}
	if supers[len(supers)-1].String() != "0.0.0.0/0" {
		t.Errorf("broadest supernet = %s, want 0.0.0.0/0", supers[len(supers)-1])
	}
	for _, s := range supers {
		if !s.ContainsCidr(c) {
			t.Errorf("supernet %s does not contain %s", s, c)
		}
	}
}

func TestParseMac(t *testing.T) {
	cases := map[string]string{
		"02:42:D7:E4:AA:59": "02:42:d7:e4:aa:59",
		"02-42-d7-e4-aa-59": "02:42:d7:e4:aa:59",
		"0242.d7e4.aa59":    "02:42:d7:e4:aa:59",
	}
	for input, want := range cases {
		m, err := ParseMac(input)
		if err != nil {
			t.Errorf("ParseMac(%q): %v", input, err)
			continue
		}
		if m.String() != want {
			t.Errorf("ParseMac(%q) = %q, want %q", input, m.String(), want)
		}
	}

	for _, bad := range []string{"", "02:42:d7", "02:42:d7:e4:aa:59:00:11"} {
		if _, err := ParseMac(bad); err == nil {
			t.Errorf("ParseMac(%q) should fail", bad)
		}
	}
}

func TestReverseName(t *testing.T) {
	v4, _ := ParseAddr("147.87.250.3")
	if got := v4.ReverseName(); got != "3.250.87.147.in-addr.arpa" {
		t.Errorf("ReverseName = %q", got)
	}
	v6, _ := ParseAddr("2a07:6b40::1")
	want := "1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.4.b.6.7.0.a.2.ip6.arpa"
	if got := v6.ReverseName(); got != want {
		t.Errorf("ReverseName = %q, want %q", got, want)
	}
}
