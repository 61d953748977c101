package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExponent(t *testing.T) {
	cases := []struct {
		currency string
		want     int
	}{
		{"USD", 2},
		{"eur", 2},
		{"JPY", 0},
		{"KRW", 0},
		{"BHD", 3},
		{"kwd", 3},
		{"", 2},
	}
	for _, tc := range cases {
		if got := Exponent(tc.currency); got != tc.want {
			t.Fatalf("Exponent(%q) = %d, want %d", tc.currency, got, tc.want)
		}
	}
}

func TestMajor(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{1050, "USD", "10.5"},
		{5, "USD", "0.05"},
		{1050, "JPY", "1050"},
		{12345, "BHD", "12.345"},
		{-250, "EUR", "-2.5"},
	}
	for _, tc := range cases {
		want := decimal.RequireFromString(tc.want)
		if got := Major(tc.amount, tc.currency); !got.Equal(want) {
			t.Fatalf("Major(%d, %q) = %s, want %s", tc.amount, tc.currency, got, want)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{1050, "USD", "10.50"},
		{1000, "USD", "10.00"},
		{5, "USD", "0.05"},
		{1050, "JPY", "1050"},
		{12345, "BHD", "12.345"},
		{-250, "EUR", "-2.50"},
	}
	for _, tc := range cases {
		if got := Format(tc.amount, tc.currency); got != tc.want {
			t.Fatalf("Format(%d, %q) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestFormatWithCurrency(t *testing.T) {
	if got := FormatWithCurrency(1000, "usd"); got != "10.00 USD" {
		t.Fatalf("unexpected formatting %q", got)
	}
}
