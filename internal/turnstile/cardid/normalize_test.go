package cardid

import (
	"reflect"
	"testing"
)

func TestNormalize_PinnedInputs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"padded hex offsets", "12345678901234567890", "3457913579"},
		{"padded hex then reversal", "00000000000000000000", "0000000000"},
		{"padded hex reversed stock card", "99123949596979090909", "0007654321"},
		{"ten digits with prefix", "0004567890", "0004567890"},
		{"ten digits reversed", "0987654000", "0004567890"},
		{"eight digits padded", "12345678", "0012345678"},
		{"eight digits padded then reversed", "87654000", "0004567800"},
		{"long numeric truncated", "000123456789012", "0001234567"},
		{"surrounding whitespace", "  0004567890\r\n", "0004567890"},
		{"seven digits pass through", "1234567", "1234567"},
		{"hex uid upper-cased", " 04a1b2c3 ", "04A1B2C3"},
		{"mixed alnum pass through", "ab12345678", "AB12345678"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.raw); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalize_PaddedHexExtractsFixedOffsets(t *testing.T) {
	raw := "12345678901234567890"
	want := []byte{raw[2], raw[3], raw[4], raw[6], raw[8], raw[10], raw[12], raw[14], raw[16], raw[18]}
	if got := extractPaddedHex(raw); got != string(want) {
		t.Fatalf("extractPaddedHex = %q, want %q", got, want)
	}
	if string(want) != "3457913579" {
		t.Fatalf("offset table drifted: %q", want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"", " ", "x", "1234567", "12345678", "87654000", "0004567890",
		"0987654000", "9999999999", "12345678901234567890",
		"99123949596979090909", "000123456789012", "04a1b2c3",
		"1000000000", "0000000001", "1230000000", "0100000000",
		"123456789012345678901234", "  42  ", "DEADBEEF",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_IdempotentExhaustiveShortDigits(t *testing.T) {
	// Every 8-digit string built from {0,1} exercises padding and
	// reversal together.
	for mask := 0; mask < 1<<8; mask++ {
		b := make([]byte, 8)
		for i := range b {
			if mask&(1<<i) != 0 {
				b[i] = '1'
			} else {
				b[i] = '0'
			}
		}
		in := string(b)
		once := Normalize(in)
		if got := Normalize(once); got != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, got)
		}
		if len(once) != Width {
			t.Fatalf("numeric input %q produced %q", in, once)
		}
	}
}

func TestRule_ReportsAppliedRules(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"12345678901234567890", []string{"padded-hex-20"}},
		{"99123949596979090909", []string{"padded-hex-20", "reversed-digits"}},
		{"0987654000", []string{"fixed-width", "reversed-digits"}},
		{"0004567890", []string{"fixed-width"}},
		{"04A1B2C3", nil},
	}
	for _, tc := range cases {
		if got := Rule(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Rule(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
