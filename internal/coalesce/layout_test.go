package coalesce

import "testing"

func TestInStackRegion(t *testing.T) {
	if inStackRegion(0x3000) {
		t.Fatal("ordinary heap address should not be in the stack region")
	}
	if !inStackRegion(SIMTStackBase + 0x40) {
		t.Fatal("address at/above SIMTStackBase should be in the stack region")
	}
}

func TestTranslateStackAddressPassesThroughNonStackAddresses(t *testing.T) {
	if got := translateStackAddress(0x3000, 2, false, 1); got != 0x3000 {
		t.Fatalf("translateStackAddress(heap addr) = %#x, want unchanged 0x3000", got)
	}
}

func TestTranslateStackAddressCPULandsInFixedWindow(t *testing.T) {
	got := translateStackAddress(SIMTStackBase+0x10, 7, true, 3)
	want := uint64(CPUStackBase + 0x10)
	if got != want {
		t.Fatalf("CPU stack translation = %#x, want %#x", got, want)
	}
}

func TestTranslateStackAddressSIMTLanesDoNotAlias(t *testing.T) {
	a := translateStackAddress(SIMTStackBase+0x10, 1, false, 0)
	b := translateStackAddress(SIMTStackBase+0x10, 1, false, 1)
	if a == b {
		t.Fatal("different lanes of the same warp must land at different physical addresses")
	}
	c := translateStackAddress(SIMTStackBase+0x10, 2, false, 0)
	if a == c {
		t.Fatal("same lane of different warps must land at different physical addresses")
	}
}

func TestInterleaveAddrPassesThroughNonStackAddresses(t *testing.T) {
	if got := interleaveAddr(0x3000, 1, 0); got != 0x3000 {
		t.Fatalf("interleaveAddr(heap addr) = %#x, want unchanged 0x3000", got)
	}
}

func TestInterleaveAddrEncodesLaneInLowBits(t *testing.T) {
	a := interleaveAddr(SIMTStackBase+0x10, 1, 0)
	b := interleaveAddr(SIMTStackBase+0x10, 1, 1)
	if a == b {
		t.Fatal("interleaveAddr must distinguish lanes so stride-1 accesses land in one DRAM block")
	}
	if a>>(2+logLanes+simtLogWarps) != b>>(2+logLanes+simtLogWarps) {
		t.Fatal("same offset across lanes of one warp should share the same block")
	}
}
