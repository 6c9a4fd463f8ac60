package google

import "testing"

func TestColumnLetter(t *testing.T) {
	cases := []struct {
		col  int
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}

	for _, tc := range cases {
		if got := columnLetter(tc.col); got != tc.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tc.col, got, tc.want)
		}
	}
}

func TestQuoteWorksheet(t *testing.T) {
	if got := quoteWorksheet("Sheet1"); got != "'Sheet1'" {
		t.Errorf("quoteWorksheet(Sheet1) = %q", got)
	}
	if got := quoteWorksheet("Bob's Runs"); got != "'Bob''s Runs'" {
		t.Errorf("quoteWorksheet with embedded quote = %q", got)
	}
}

func TestCellString(t *testing.T) {
	if got := cellString("'05/03/2024"); got != "'05/03/2024" {
		t.Errorf("string cell = %q", got)
	}
	if got := cellString(42.0); got != "42" {
		t.Errorf("numeric cell = %q", got)
	}
}
