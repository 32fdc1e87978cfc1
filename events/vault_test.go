package events

import (
	"math/big"
	"testing"
)

func TestEveryVaultEventCarriesAttributes(t *testing.T) {
	account := [20]byte{0x01}
	cases := []struct {
		event    Event
		wantType string
	}{
		{DepositRecorded{Account: account, Asset: "TOKX", AmountIn: big.NewInt(100), AmountCredited: big.NewInt(990)}, TypeDepositRecorded},
		{WithdrawalRecorded{Account: account, Asset: "USD6", AmountDebited: big.NewInt(500), AmountSent: big.NewInt(500)}, TypeWithdrawalRecorded},
		{CapacityChanged{NewCapacity: big.NewInt(1000)}, TypeCapacityChanged},
		{SlippageChanged{NewBps: 250}, TypeSlippageChanged},
		{Paused{By: account}, TypePaused},
		{Resumed{By: account}, TypeResumed},
		{AssetRescued{Treasurer: account, Asset: "TOKX", Amount: big.NewInt(5)}, TypeAssetRescued},
	}
	for _, tc := range cases {
		t.Run(tc.wantType, func(t *testing.T) {
			if got := tc.event.EventType(); got != tc.wantType {
				t.Fatalf("event type %q, want %q", got, tc.wantType)
			}
			carrier, ok := tc.event.(interface{ Attributes() map[string]string })
			if !ok {
				t.Fatalf("event %q does not expose attributes", tc.wantType)
			}
			if len(carrier.Attributes()) == 0 {
				t.Fatalf("event %q has empty attributes", tc.wantType)
			}
		})
	}
}

func TestLifecycleEventAttributes(t *testing.T) {
	account := [20]byte{0xAB}
	paused := Paused{By: account}.Attributes()
	if paused["by"] == "" {
		t.Fatalf("paused event missing actor: %v", paused)
	}
	resumed := Resumed{By: account}.Attributes()
	if resumed["by"] != paused["by"] {
		t.Fatalf("actor rendering differs between pause and resume: %v vs %v", resumed, paused)
	}
	slippage := SlippageChanged{NewBps: 250}.Attributes()
	if slippage["newBps"] != "250" {
		t.Fatalf("unexpected slippage attributes: %v", slippage)
	}
}
