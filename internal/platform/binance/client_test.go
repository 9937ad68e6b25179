package binance

import "testing"

func TestPairFor(t *testing.T) {
	cases := map[string]string{
		"BTC": "BTCUSDT",
		"eth": "ETHUSDT",
		"SOL": "SOLUSDT",
	}
	for in, want := range cases {
		if got := PairFor(in); got != want {
			t.Errorf("PairFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSymbolFor(t *testing.T) {
	if got, ok := SymbolFor("BTCUSDT"); !ok || got != "BTC" {
		t.Fatalf("SymbolFor(BTCUSDT) = %q, %v", got, ok)
	}
	if got, ok := SymbolFor("ethusdt"); !ok || got != "ETH" {
		t.Fatalf("SymbolFor(ethusdt) = %q, %v", got, ok)
	}
	if _, ok := SymbolFor("BTCEUR"); ok {
		t.Fatal("non-USDT pair must not resolve")
	}
	if _, ok := SymbolFor("USDT"); ok {
		t.Fatal("bare quote asset must not resolve")
	}
}
