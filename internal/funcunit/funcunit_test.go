package funcunit

import "testing"

func TestMulUnitComputesProductsAtIssueAndCompletesAfterLatency(t *testing.T) {
	u := NewMulUnit(2, 4)
	rs1 := map[int]int32{0: 6, 1: 7}
	rs2 := map[int]int32{0: 7, 1: -3}
	if ok := u.Issue(1, []int{0, 1}, rs1, rs2, 5); !ok {
		t.Fatal("Issue should succeed under capacity")
	}
	if !u.IsBusy() {
		t.Fatal("unit should be busy immediately after issue")
	}
	if _, ok := u.PeekCompleted(); ok {
		t.Fatal("should not complete before latency elapses")
	}

	u.Tick() // cyclesLeft 2 -> 1
	if _, ok := u.PeekCompleted(); ok {
		t.Fatal("should not complete after only one cycle of a 2-cycle op")
	}
	u.Tick() // cyclesLeft 1 -> 0, moves to result queue

	id, ok := u.PeekCompleted()
	if !ok || id != 1 {
		t.Fatalf("PeekCompleted = (%v, %v), want (1, true)", id, ok)
	}
	op := u.GetCompleted()
	if op.Results[0] != 42 || op.Results[1] != -21 {
		t.Fatalf("Results = %v, want {0:42, 1:-21}", op.Results)
	}
	if u.IsBusy() {
		t.Fatal("unit should be idle once the only op is drained")
	}
}

func TestMulUnitRejectsIssueWhenResultQueueFull(t *testing.T) {
	u := NewMulUnit(1, 1)
	rs1 := map[int]int32{0: 1}
	rs2 := map[int]int32{0: 1}
	if !u.Issue(1, []int{0}, rs1, rs2, 1) {
		t.Fatal("first issue should succeed")
	}
	u.Tick() // completes into the 1-slot result queue
	if u.Issue(2, []int{0}, rs1, rs2, 1) {
		t.Fatal("issue should be rejected while the result queue is at capacity")
	}
}

func TestDivRemSignedDivideByZero(t *testing.T) {
	if got := divRem(5, 0, true, false); got != -1 {
		t.Fatalf("signed div by zero = %d, want -1", got)
	}
	if got := divRem(5, 0, true, true); got != 5 {
		t.Fatalf("signed rem by zero = %d, want dividend 5", got)
	}
}

func TestDivRemUnsignedDivideByZero(t *testing.T) {
	if got := divRem(5, 0, false, false); got != -1 {
		t.Fatalf("unsigned div by zero = %#x, want all-ones", uint32(got))
	}
	if got := divRem(5, 0, false, true); got != 5 {
		t.Fatalf("unsigned rem by zero = %d, want dividend 5", got)
	}
}

func TestDivRemSignedOverflow(t *testing.T) {
	const intMin = -0x80000000
	if got := divRem(intMin, -1, true, false); got != intMin {
		t.Fatalf("INT_MIN / -1 = %d, want INT_MIN (overflow wraps)", got)
	}
	if got := divRem(intMin, -1, true, true); got != 0 {
		t.Fatalf("INT_MIN %% -1 = %d, want 0", got)
	}
}

func TestDivRemOrdinaryCases(t *testing.T) {
	if got := divRem(7, 2, true, false); got != 3 {
		t.Fatalf("7/2 = %d, want 3", got)
	}
	if got := divRem(-7, 2, true, true); got != -1 {
		t.Fatalf("-7%%2 = %d, want -1", got)
	}
	if got := divRem(-1, 2, false, false); got != int32(0x7FFFFFFF) {
		t.Fatalf("unsigned 0xFFFFFFFF/2 = %#x, want 0x7fffffff", uint32(got))
	}
}

func TestDivUnitIsSequentialSingleInFlight(t *testing.T) {
	u := NewDivUnit(3)
	rs1 := map[int]int32{0: 10}
	rs2 := map[int]int32{0: 2}
	if !u.Issue(1, []int{0}, rs1, rs2, 4, true, false) {
		t.Fatal("first issue should succeed")
	}
	if u.Issue(2, []int{0}, rs1, rs2, 4, true, false) {
		t.Fatal("second issue should be rejected while one is in flight")
	}

	u.Tick()
	u.Tick()
	if _, ok := u.PeekCompleted(); ok {
		t.Fatal("should not complete before latency elapses")
	}
	u.Tick()

	id, ok := u.PeekCompleted()
	if !ok || id != 1 {
		t.Fatalf("PeekCompleted = (%v, %v), want (1, true)", id, ok)
	}
	op := u.GetCompleted(1)
	if op.Results[0] != 5 {
		t.Fatalf("Results[0] = %d, want 5", op.Results[0])
	}
	if u.IsBusy() {
		t.Fatal("unit should be idle once drained")
	}

	// Freeing the slot on completion (before draining) should let a new
	// divide issue immediately.
	u2 := NewDivUnit(1)
	u2.Issue(1, []int{0}, rs1, rs2, 4, true, false)
	u2.Tick()
	if !u2.Issue(2, []int{0}, rs1, rs2, 4, true, false) {
		t.Fatal("a completed-but-undrained divide should free the slot for reissue")
	}
}
