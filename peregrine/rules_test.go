package peregrine

import (
	"encoding/json"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// TestNetworkConstants verifies that network ID constants are correctly defined.
// These IDs are bound into every transaction signature, so they must never change.
func TestNetworkConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant uint8
		want     uint8
	}{
		{"MainNetworkID", MainNetworkID, 0x50},
		{"TestNetworkID", TestNetworkID, 0x51},
		{"FakeNetworkID", FakeNetworkID, 0x52},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.constant, tt.want)
			}
		})
	}
}

// TestEpochCadence verifies macro and election heights for the fake net
// layout (batch 8, 4 batches per epoch).
func TestEpochCadence(t *testing.T) {
	r := FakeNetRules()

	if got := r.EpochLength(); got != 32 {
		t.Fatalf("EpochLength = %d, want 32", got)
	}

	tests := []struct {
		n        idx.Block
		macro    bool
		election bool
	}{
		{0, true, true},
		{1, false, false},
		{7, false, false},
		{8, true, false},
		{16, true, false},
		{31, false, false},
		{32, true, true},
		{40, true, false},
		{64, true, true},
	}
	for _, tt := range tests {
		if got := r.IsMacroBlockAt(tt.n); got != tt.macro {
			t.Errorf("IsMacroBlockAt(%d) = %v, want %v", tt.n, got, tt.macro)
		}
		if got := r.IsElectionBlockAt(tt.n); got != tt.election {
			t.Errorf("IsElectionBlockAt(%d) = %v, want %v", tt.n, got, tt.election)
		}
	}
}

// TestEpochAt verifies that an election block closes its own epoch.
func TestEpochAt(t *testing.T) {
	r := FakeNetRules()

	tests := []struct {
		n    idx.Block
		want idx.Epoch
	}{
		{0, 0},
		{1, 1},
		{32, 1},
		{33, 2},
		{64, 2},
		{65, 3},
	}
	for _, tt := range tests {
		if got := r.EpochAt(tt.n); got != tt.want {
			t.Errorf("EpochAt(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

// TestGoverningBlocks verifies ElectionBlockBefore and MacroBlockBefore.
func TestGoverningBlocks(t *testing.T) {
	r := FakeNetRules()

	tests := []struct {
		n         idx.Block
		election  idx.Block
		lastMacro idx.Block
	}{
		{1, 0, 0},
		{8, 0, 0},
		{9, 0, 8},
		{32, 0, 24},
		{33, 32, 32},
		{64, 32, 56},
		{65, 64, 64},
	}
	for _, tt := range tests {
		if got := r.ElectionBlockBefore(tt.n); got != tt.election {
			t.Errorf("ElectionBlockBefore(%d) = %d, want %d", tt.n, got, tt.election)
		}
		if got := r.MacroBlockBefore(tt.n); got != tt.lastMacro {
			t.Errorf("MacroBlockBefore(%d) = %d, want %d", tt.n, got, tt.lastMacro)
		}
	}
}

// TestQuorum verifies the 2f+1 slot quorum for the standard slot counts.
func TestQuorum(t *testing.T) {
	main := MainNetRules()
	if got := main.TwoThirdsSlots(); got != 342 {
		t.Errorf("main TwoThirdsSlots = %d, want 342", got)
	}
	fake := FakeNetRules()
	if got := fake.TwoThirdsSlots(); got != 11 {
		t.Errorf("fake TwoThirdsSlots = %d, want 11", got)
	}
}

// TestRulesJSONRoundTrip verifies that Rules survive a JSON round trip,
// since fake net configs are loaded from JSON files.
func TestRulesJSONRoundTrip(t *testing.T) {
	want := MainNetRules()
	b, err := json.Marshal(&want)
	if err != nil {
		t.Fatal(err)
	}
	var got Rules
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("rules changed over JSON round trip:\n got %s\nwant %s", got.String(), want.String())
	}
}
