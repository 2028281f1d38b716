package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestConvertIdentity(t *testing.T) {
	table := StaticTable()
	amounts := []string{"0", "0.001", "123.456", "99999999.999999"}
	for _, c := range append(core.SupportedCurrencies, "XYZ") {
		for _, a := range amounts {
			got := Convert(dec(a), c, c, table)
			if !got.Equal(dec(a)) || got.String() != dec(a).String() {
				t.Errorf("Convert(%s, %s, %s) = %s, want unchanged", a, c, c, got)
			}
		}
	}
}

func TestConvert(t *testing.T) {
	table := StaticTable()
	tests := []struct {
		name     string
		amount   string
		from, to core.Currency
		want     string
	}{
		{"usd to base", "100", core.USD, core.UZS, "1250000"},
		{"eur to base", "1.5", core.EUR, core.UZS, "20250"},
		{"base to usd rounds to cents", "100000", core.UZS, core.USD, "8"},
		{"usd to eur half up", "100", core.USD, core.EUR, "92.59"},
		{"base to usd", "1", core.UZS, core.USD, "0"},
		{"unknown source quotes one", "100", "XYZ", core.UZS, "100"},
		{"unknown target quotes one", "1", core.USD, "XYZ", "12500"},
		{"zero decimal target", "1", core.USD, core.JPY, "148"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(dec(tt.amount), tt.from, tt.to, table)
			if !got.Equal(dec(tt.want)) {
				t.Fatalf("Convert(%s, %s, %s) = %s, want %s", tt.amount, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestConvertExactKeepsPrecision(t *testing.T) {
	got := ConvertExact(dec("1"), core.UZS, core.USD, StaticTable())
	if !got.Equal(dec("0.00008")) {
		t.Fatalf("expected 0.00008, got %s", got)
	}
}

func TestConvertBulkMatchesConvert(t *testing.T) {
	table := StaticTable()
	amounts := []decimal.Decimal{dec("1"), dec("2.5"), dec("10.333")}
	got := ConvertBulk(amounts, core.EUR, core.USD, table)
	if len(got) != len(amounts) {
		t.Fatalf("expected %d results, got %d", len(amounts), len(got))
	}
	for i, a := range amounts {
		want := Convert(a, core.EUR, core.USD, table)
		if !got[i].Equal(want) {
			t.Errorf("item %d: bulk %s, single %s", i, got[i], want)
		}
	}
}

func TestFromQuotes(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	quotes := map[core.Currency]decimal.Decimal{
		core.EUR: dec("0.92"),
		core.GBP: dec("0.8"),
		"AUD":    dec("1.5"), // not supported, ignored
	}
	table := FromQuotes(core.USD, quotes, StaticTable(), asOf)

	if table.Base() != core.UZS {
		t.Fatalf("expected UZS base, got %s", table.Base())
	}
	if !table.Rate(core.USD).Equal(dec("12500")) {
		t.Errorf("USD should keep the fallback cross, got %s", table.Rate(core.USD))
	}
	if !table.Rate(core.GBP).Equal(dec("15625")) {
		t.Errorf("GBP = %s, want 15625", table.Rate(core.GBP))
	}
	if !table.Rate(core.RUB).Equal(dec("130")) {
		t.Errorf("RUB should keep its fallback, got %s", table.Rate(core.RUB))
	}
	if table.Has("AUD") {
		t.Errorf("unsupported currencies must be dropped")
	}
	if !table.AsOf().Equal(asOf) {
		t.Errorf("asOf not preserved")
	}

	quotes[core.UZS] = dec("12600")
	table = FromQuotes(core.USD, quotes, StaticTable(), asOf)
	if !table.Rate(core.USD).Equal(dec("12600")) {
		t.Errorf("USD should follow the quoted UZS cross, got %s", table.Rate(core.USD))
	}
}

func TestRebase(t *testing.T) {
	usd := StaticTable().Rebase(core.USD)
	if usd.Base() != core.USD || !usd.Rate(core.USD).Equal(dec("1")) {
		t.Fatalf("unexpected rebased table base")
	}
	if !usd.Rate(core.UZS).Equal(dec("0.00008")) {
		t.Fatalf("UZS per USD = %s, want 0.00008", usd.Rate(core.UZS))
	}
	// Conversions do not depend on the base of the table.
	a := Convert(dec("250"), core.EUR, core.GBP, StaticTable())
	b := Convert(dec("250"), core.EUR, core.GBP, usd)
	if !a.Equal(b) {
		t.Fatalf("rebase changed the conversion: %s vs %s", a, b)
	}
}

func TestValue(t *testing.T) {
	tx := core.Transaction{Amount: dec("10"), Currency: core.USD, ExchangeRate: dec("11000")}
	tests := []struct {
		target core.Currency
		want   string
	}{
		{core.UZS, "110000"},
		{core.USD, "8.8"},
		{core.EUR, "8.1481481481481481"},
	}
	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			if got := Value(tx, tt.target, StaticTable()); !got.Equal(dec(tt.want)) {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}

	plain := core.Transaction{Amount: dec("0.07"), Currency: core.USD}
	if got := Value(plain, core.USD, StaticTable()); !got.Equal(dec("0.07")) {
		t.Fatalf("uncaptured same-currency value = %s", got)
	}
}

func TestToBasePrefersCapturedRate(t *testing.T) {
	tx := core.Transaction{Amount: dec("10"), Currency: core.USD, ExchangeRate: dec("11000")}
	if got := ToBase(tx, StaticTable()); !got.Equal(dec("110000")) {
		t.Fatalf("expected captured rate, got %s", got)
	}
	tx.ExchangeRate = decimal.Zero
	if got := ToBase(tx, StaticTable()); !got.Equal(dec("125000")) {
		t.Fatalf("expected table rate, got %s", got)
	}
}
