package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rcornwell/simtgpu/internal/simconfig"
)

// Small RV32I(M) word encoders, just enough to hand-assemble the straight-
// line kernels these tests drive through a real Core.

func word(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

func iType(opcode, rd, funct3, rs1 uint32, imm int32) []byte {
	return word(opcode | rd<<7 | funct3<<12 | rs1<<15 | (uint32(imm)<<20)&0xFFF00000)
}

func rType(opcode, rd, funct3, rs1, rs2, funct7 uint32) []byte {
	return word(opcode | rd<<7 | funct3<<12 | rs1<<15 | rs2<<20 | funct7<<25)
}

func sType(opcode, funct3, rs1, rs2 uint32, imm int32) []byte {
	u := uint32(imm)
	lo := u & 0x1F
	hi := (u >> 5) & 0x7F
	return word(opcode | lo<<7 | funct3<<12 | rs1<<15 | rs2<<20 | hi<<25)
}

func addi(rd, rs1 uint32, imm int32) []byte { return iType(0x13, rd, 0x0, rs1, imm) }
func lw(rd, rs1 uint32, imm int32) []byte   { return iType(0x03, rd, 0x2, rs1, imm) }
func sw(rs1, rs2 uint32, imm int32) []byte  { return sType(0x23, 0x2, rs1, rs2, imm) }
func div(rd, rs1, rs2 uint32) []byte        { return rType(0x33, rd, 0x4, rs1, rs2, 0x01) }

// lui loads a clean-multiple-of-0x1000 address into rd in one instruction,
// sidestepping ADDI's 12-bit immediate range.
func lui(rd, addr uint32) []byte { return word((addr &^ 0xFFF) | rd<<7 | 0x37) }

// jalrHalt is JALR x0, x0, 0: target 0, which this simulator's lanes treat
// as termination.
func jalrHalt() []byte { return iType(0x67, 0, 0x0, 0, 0) }

// kernelEntry is where every test's SIMT program starts; the CPU's single
// halting instruction lives at address 0 in the same image.
const kernelEntry = 0x40

// buildImage lays the CPU's one-instruction halt program at address 0 and
// the given kernel instructions starting at kernelEntry.
func buildImage(kernel ...[]byte) []byte {
	img := make([]byte, kernelEntry)
	copy(img, jalrHalt())
	for _, in := range kernel {
		img = append(img, in...)
	}
	return img
}

func testConfig() *simconfig.Config {
	return &simconfig.Config{
		NumLanes: 1, NumWarps: 1, WarpsPerBlk: 0,
		MemQueueCapacity: 8, CoalesceDepth: 1, DRAMLatency: 2,
		MulLatency: 2, DivLatency: 2, ResultQueueCap: 2,
	}
}

// runToCompletion ticks a core until it reports idle, bounded so a
// regression that wedges the pipeline fails the test instead of hanging.
func runToCompletion(t *testing.T, c *Core) {
	t.Helper()
	for i := 0; i < 10000 && c.Running(); i++ {
		c.Tick()
	}
	if c.Running() {
		t.Fatal("core did not reach idle within the cycle budget")
	}
}

func TestCoreMemoryRoundTrip(t *testing.T) {
	cfg := testConfig()
	img := buildImage(
		lui(1, 0x3000),  // x1 = 0x3000
		addi(2, 0, 99), // x2 = 99
		sw(1, 2, 0),    // mem[x1] = x2
		lw(3, 1, 0),    // x3 = mem[x1]
		jalrHalt(),
	)
	c := New(cfg, &bytes.Buffer{}, nil, img, 0, 0)
	c.hostCtl.LaunchKernel(kernelEntry)

	runToCompletion(t, c)

	if c.ActiveWarps() != 0 {
		t.Fatalf("ActiveWarps = %d, want 0 once the kernel retires", c.ActiveWarps())
	}
	if zext, _ := c.dataMem.Read(0x3000, 4); zext != 99 {
		t.Fatalf("mem[0x3000] = %d, want 99", zext)
	}
}

func TestCoreDivideByZeroWritesMinusOne(t *testing.T) {
	cfg := testConfig()
	img := buildImage(
		addi(1, 0, 7), // x1 = 7 (dividend)
		addi(2, 0, 0), // x2 = 0 (divisor)
		div(3, 1, 2),  // x3 = x1 / x2
		lui(4, 0x4000),
		sw(4, 3, 0), // mem[0x4000] = x3
		jalrHalt(),
	)
	c := New(cfg, &bytes.Buffer{}, nil, img, 0, 0)
	c.hostCtl.LaunchKernel(kernelEntry)

	runToCompletion(t, c)

	zext, _ := c.dataMem.Read(0x4000, 4)
	if zext != 0xFFFFFFFF {
		t.Fatalf("mem[0x4000] = %#x, want 0xffffffff (signed divide by zero)", zext)
	}
}

// TestCoreCoalescedBroadcastCountsOneDRAMBurst drives a four-lane warp that
// all store to the same address; the coalescing unit must count this as a
// single DRAM access rather than one per lane.
func TestCoreCoalescedBroadcastCountsOneDRAMBurst(t *testing.T) {
	cfg := testConfig()
	cfg.NumLanes = 4
	img := buildImage(
		lui(1, 0x3000), // every lane computes the same address
		addi(2, 0, 7),  // every lane stores the same value
		sw(1, 2, 0),
		jalrHalt(),
	)
	c := New(cfg, &bytes.Buffer{}, nil, img, 0, 0)
	c.hostCtl.LaunchKernel(kernelEntry)

	runToCompletion(t, c)

	if got := c.stats.GPUDRAMAccs; got != 1 {
		t.Fatalf("GPUDRAMAccs = %d, want 1 for a same-address broadcast store", got)
	}
	if zext, _ := c.dataMem.Read(0x3000, 4); zext != 7 {
		t.Fatalf("mem[0x3000] = %d, want 7", zext)
	}
}

func TestCoreCPUHaltsWithoutTouchingSIMTState(t *testing.T) {
	cfg := testConfig()
	img := buildImage(jalrHalt())
	c := New(cfg, &bytes.Buffer{}, nil, img, 0, 0)

	runToCompletion(t, c)

	if c.ActiveWarps() != 0 {
		t.Fatalf("ActiveWarps = %d, want 0 when no kernel was ever launched", c.ActiveWarps())
	}
	if c.hostCtl.IsGPUBusy() {
		t.Fatal("GPU should never report busy without a launch")
	}
}
