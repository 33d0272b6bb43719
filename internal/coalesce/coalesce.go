/*
 * Memory coalescing / suspension unit.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package coalesce implements the shared coalescing/memory unit: request
// queueing, DRAM-burst coalescing, fixed-latency resumption, and
// stack-address interleaving.
package coalesce

import (
	"log/slog"

	"github.com/rcornwell/simtgpu/internal/datamem"
	"github.com/rcornwell/simtgpu/internal/simconfig"
	"github.com/rcornwell/simtgpu/internal/stats"
	"github.com/rcornwell/simtgpu/internal/warp"
)

// ReqKind identifies the operation a MemRequest carries.
type ReqKind int

const (
	ReqLoad ReqKind = iota
	ReqStore
	ReqAtomicAdd
	ReqFence
)

// MemRequest is queued at issue and processed after a fixed pipeline
// depth.
type MemRequest struct {
	Warp          warp.ID
	IsCPU         bool
	Kind          ReqKind
	Addrs         []uint64 // Lane-indexed virtual addresses; 0 for inactive lanes.
	Bytes         int
	RdReg         int
	StoreValues   []int32 // len == len(Addrs) for stores/atomics.
	ActiveThreads []int
	ZeroExtend    bool

	cyclesInPipeline int
}

type loadResult struct {
	rdReg  int
	values map[int]int32
}

// Unit is the coalescing/memory unit, shared by the CPU and SIMT
// pipelines and routed by each request's IsCPU tag.
type Unit struct {
	cfg    *simconfig.Config
	mem    *datamem.Memory
	stats  *stats.Stats
	log    *slog.Logger
	gpuActive func() bool // Reports whether the SIMT pipeline currently has work (for GPUActiveCPUDRAM).

	pendingQueue []*MemRequest
	pipelineQ    []*MemRequest
	blocked      map[memKey]int
	results      map[memKey]loadResult
}

// memKey identifies a warp within one pipeline. The CPU table and the
// SIMT table each number their warps from zero independently, so a bare
// warp.ID is not unique across pipelines; every map keyed by in-flight
// warp here carries the IsCPU tag alongside the ID to keep a CPU warp and
// a same-numbered SIMT warp from colliding in the same slot.
type memKey struct {
	id    warp.ID
	isCPU bool
}

// New creates a coalescing unit backed by mem, reporting into s.
// gpuActive is polled to attribute CPU DRAM accesses that race a still-
// running SIMT kernel.
func New(cfg *simconfig.Config, mem *datamem.Memory, s *stats.Stats, log *slog.Logger, gpuActive func() bool) *Unit {
	return &Unit{
		cfg: cfg, mem: mem, stats: s, log: log, gpuActive: gpuActive,
		blocked: make(map[memKey]int),
		results: make(map[memKey]loadResult),
	}
}

// CanPut reports whether the pending-request queue has room; false drives
// an execute-stage retry.
func (u *Unit) CanPut() bool {
	return len(u.pendingQueue)+len(u.pipelineQ) < u.cfg.MemQueueCapacity
}

func (u *Unit) enqueue(req *MemRequest) {
	u.pendingQueue = append(u.pendingQueue, req)
}

// Load queues a load request; the caller suspends the warp.
func (u *Unit) Load(id warp.ID, isCPU bool, addrs []uint64, bytes int, rdReg int, active []int, zeroExtend bool) {
	u.enqueue(&MemRequest{Warp: id, IsCPU: isCPU, Kind: ReqLoad, Addrs: addrs, Bytes: bytes, RdReg: rdReg, ActiveThreads: active, ZeroExtend: zeroExtend})
}

// Store queues a store request; the caller suspends the warp.
func (u *Unit) Store(id warp.ID, isCPU bool, addrs []uint64, bytes int, vals []int32, active []int) {
	if len(vals) != len(addrs) {
		panic("coalesce: store value count disagrees with address count")
	}
	u.enqueue(&MemRequest{Warp: id, IsCPU: isCPU, Kind: ReqStore, Addrs: addrs, Bytes: bytes, StoreValues: vals, ActiveThreads: active})
}

// AtomicAdd queues a read-modify-write add request.
func (u *Unit) AtomicAdd(id warp.ID, isCPU bool, addrs []uint64, bytes int, rdReg int, adds []int32, active []int) {
	if len(adds) != len(addrs) {
		panic("coalesce: atomic add value count disagrees with address count")
	}
	u.enqueue(&MemRequest{Warp: id, IsCPU: isCPU, Kind: ReqAtomicAdd, Addrs: addrs, Bytes: bytes, RdReg: rdReg, StoreValues: adds, ActiveThreads: active})
}

// Fence queues a fence request. Its initial countdown is set to the full
// queue capacity — a conservative upper bound that the request processor
// will shorten once it can see whether any same-warp request is still
// pending.
func (u *Unit) Fence(id warp.ID, isCPU bool) {
	u.enqueue(&MemRequest{Warp: id, IsCPU: isCPU, Kind: ReqFence})
	u.blocked[memKey{id, isCPU}] = u.cfg.MemQueueCapacity
}

// IsBusy reports whether any request is in flight or any warp is blocked.
func (u *Unit) IsBusy() bool {
	return len(u.pendingQueue) > 0 || len(u.pipelineQ) > 0 || len(u.blocked) > 0
}

// IsBusyForPipeline filters IsBusy by pipeline tag.
func (u *Unit) IsBusyForPipeline(isCPU bool) bool {
	for _, r := range u.pendingQueue {
		if r.IsCPU == isCPU {
			return true
		}
	}
	for _, r := range u.pipelineQ {
		if r.IsCPU == isCPU {
			return true
		}
	}
	for key := range u.blocked {
		if key.isCPU == isCPU {
			return true
		}
	}
	return false
}

func (u *Unit) hasPendingSameWarp(id warp.ID, isCPU bool, excludeFence bool) bool {
	for _, r := range u.pendingQueue {
		if r.Warp == id && r.IsCPU == isCPU && (!excludeFence || r.Kind != ReqFence) {
			return true
		}
	}
	for _, r := range u.pipelineQ {
		if r.Warp == id && r.IsCPU == isCPU && (!excludeFence || r.Kind != ReqFence) {
			return true
		}
	}
	return false
}

// GetResumableWarpForPipeline returns a warp whose blocked-countdown has
// reached zero and that belongs to this pipeline. Fences get special
// treatment: if other non-fence requests from the same warp are still in
// flight, the fence is not yet resumable and its countdown is extended by
// one more cycle.
func (u *Unit) GetResumableWarpForPipeline(isCPU bool) (warp.ID, bool) {
	for key, left := range u.blocked {
		if left > 0 || key.isCPU != isCPU {
			continue
		}
		if u.hasPendingSameWarp(key.id, isCPU, true) {
			u.blocked[key] = 1
			u.log.Debug("fence re-extended, pending same-warp op", "warp", key.id)
			continue
		}
		delete(u.blocked, key)
		return key.id, true
	}
	return 0, false
}

// GetLoadResults pops the (rd, lane->value) map recorded for a completed
// load or atomic-add. Returns ok=false if none is pending.
func (u *Unit) GetLoadResults(id warp.ID, isCPU bool) (int, map[int]int32, bool) {
	key := memKey{id, isCPU}
	r, ok := u.results[key]
	if !ok {
		return 0, nil, false
	}
	delete(u.results, key)
	return r.rdReg, r.values, true
}

// HasPendingMemoryOps reports whether a warp still has any in-flight
// memory traffic.
func (u *Unit) HasPendingMemoryOps(id warp.ID, isCPU bool) bool {
	if _, ok := u.blocked[memKey{id, isCPU}]; ok {
		return true
	}
	return u.hasPendingSameWarp(id, isCPU, false)
}

// Tick advances the pipeline, admits one new request, and ages every
// blocked countdown — in that order.
func (u *Unit) Tick() {
	next := u.pipelineQ[:0]
	for _, req := range u.pipelineQ {
		req.cyclesInPipeline++
		if req.cyclesInPipeline >= u.cfg.CoalesceDepth {
			u.process(req)
		} else {
			next = append(next, req)
		}
	}
	u.pipelineQ = next

	if len(u.pendingQueue) > 0 && len(u.pipelineQ) < u.cfg.CoalesceDepth {
		req := u.pendingQueue[0]
		u.pendingQueue = u.pendingQueue[1:]
		u.pipelineQ = append(u.pipelineQ, req)
	}

	for key, left := range u.blocked {
		if left > 0 {
			u.blocked[key] = left - 1
		}
	}
}

// process executes a request against the backing memory once it has
// travelled the full coalescing-pipeline depth, translates its address
// vector, computes its latency and DRAM-access attribution, and either
// arms the per-warp blocked-countdown (loads/stores/atomics) or re-checks
// a fence.
func (u *Unit) process(req *MemRequest) {
	key := memKey{req.Warp, req.IsCPU}
	if req.Kind == ReqFence {
		if u.hasPendingSameWarp(req.Warp, req.IsCPU, true) {
			u.blocked[key] = 1
			return
		}
		u.blocked[key] = 0
		return
	}

	translated := make([]uint64, len(req.Addrs))
	for lane, a := range req.Addrs {
		inActive := false
		for _, l := range req.ActiveThreads {
			if l == lane {
				inActive = true
				break
			}
		}
		if !inActive {
			translated[lane] = SharedSRAMBase // Filtered out of coalescing below.
			continue
		}
		translated[lane] = translateStackAddress(a, uint32(req.Warp), req.IsCPU, lane)
	}

	switch req.Kind {
	case ReqLoad:
		values := make(map[int]int32)
		for _, lane := range req.ActiveThreads {
			zext, sext := u.mem.Read(translated[lane], req.Bytes)
			if req.ZeroExtend {
				values[lane] = int32(zext)
			} else {
				values[lane] = sext
			}
		}
		u.results[key] = loadResult{rdReg: req.RdReg, values: values}
	case ReqStore:
		for _, lane := range req.ActiveThreads {
			u.mem.Write(translated[lane], req.Bytes, uint32(req.StoreValues[lane]))
		}
	case ReqAtomicAdd:
		old := make(map[int]int32)
		for _, lane := range req.ActiveThreads {
			zext, _ := u.mem.Read(translated[lane], req.Bytes)
			old[lane] = int32(zext)
			u.mem.Write(translated[lane], req.Bytes, zext+uint32(req.StoreValues[lane]))
		}
		u.results[key] = loadResult{rdReg: req.RdReg, values: old}
	}

	bursts := calculateBursts(req.Addrs, req.ActiveThreads, req.Bytes)
	latency := u.cfg.CoalesceDepth + 1
	if bursts == 1 {
		latency = u.cfg.CoalesceDepth + u.cfg.DRAMLatency
	} else if bursts > 1 {
		latency = u.cfg.CoalesceDepth + u.cfg.DRAMLatency + (bursts - 1)
		if req.Kind == ReqLoad {
			// Loads carry the extra (bursts-1) latency term; stores and
			// atomics do not.
		} else {
			latency = u.cfg.CoalesceDepth + u.cfg.DRAMLatency
		}
	}
	u.blocked[key] = latency

	dramBursts := calculateBurstsInterleaved(req.Addrs, req.ActiveThreads, req.Bytes, uint32(req.Warp))
	if req.IsCPU {
		u.stats.IncCPUDRAM(dramBursts)
		if u.gpuActive != nil && u.gpuActive() {
			u.stats.IncGPUActiveCPUDRAM(dramBursts)
		}
	} else {
		u.stats.IncGPUDRAM(dramBursts)
	}
}

// calculateBursts implements the SameAddress/SameBlock coalescing
// algorithm over the request's original (pre-translation) addresses, for
// latency purposes.
func calculateBursts(addrs []uint64, active []int, accessSize int) int {
	return coalesceCount(addrs, active, accessSize, func(uint64, int) uint64 { return 0 })
}

// calculateBurstsInterleaved applies the same algorithm to the
// coalescing-only interleaved addresses, for DRAM-access accounting.
func calculateBurstsInterleaved(addrs []uint64, active []int, accessSize int, id uint32) int {
	return coalesceCount(addrs, active, accessSize, func(a uint64, lane int) uint64 {
		return interleaveAddr(a, id, lane)
	})
}

func coalesceCount(addrs []uint64, active []int, accessSize int, xform func(uint64, int) uint64) int {
	pending := make([]int, 0, len(active))
	for _, lane := range active {
		if addrs[lane] < SharedSRAMBase {
			continue // Shared-SRAM accesses never count toward DRAM.
		}
		pending = append(pending, lane)
	}
	if len(pending) == 0 {
		return 0
	}

	addrOf := func(lane int) uint64 {
		a := addrs[lane]
		if x := xform(a, lane); x != 0 {
			return x
		}
		return a
	}

	const blockBits = logLanes + 2
	const blockMask = (uint64(1) << blockBits) - 1

	total := 0
	for len(pending) > 0 {
		leader := pending[0]
		leaderAddr := addrOf(leader)
		leaderBlock := leaderAddr &^ blockMask

		var sameAddr, sameBlock []int
		for _, lane := range pending {
			addr := addrOf(lane)
			if addr&^blockMask != leaderBlock {
				continue
			}
			if addr == leaderAddr {
				sameAddr = append(sameAddr, lane)
			}
			if inBlockPositionMatchesLane(addr, lane, accessSize) {
				sameBlock = append(sameBlock, lane)
			}
		}

		leaderInBlock := false
		for _, l := range sameBlock {
			if l == leader {
				leaderInBlock = true
				break
			}
		}

		var served []int
		if len(sameBlock) > 1 && leaderInBlock {
			served = sameBlock
			if accessSize >= 4 {
				total += 2
			} else {
				total++
			}
		} else {
			served = sameAddr
			total++
		}

		pending = removeAll(pending, served)
	}
	return total
}

// inBlockPositionMatchesLane tests the size-dependent bit layout: word
// mode checks the sub-word + word-within-block index, half mode the
// half-word slot, byte mode the byte slot.
func inBlockPositionMatchesLane(addr uint64, lane, accessSize int) bool {
	switch {
	case accessSize >= 4:
		return addr&0x3 == 0 && int((addr>>2)&((1<<logLanes)-1)) == lane
	case accessSize == 2:
		return addr&1 == 0 && int((addr>>1)&((1<<logLanes)-1)) == lane
	default:
		return int(addr&((1<<logLanes)-1)) == lane
	}
}

func removeAll(pending, served []int) []int {
	servedSet := make(map[int]bool, len(served))
	for _, l := range served {
		servedSet[l] = true
	}
	out := pending[:0]
	for _, l := range pending {
		if !servedSet[l] {
			out = append(out, l)
		}
	}
	return out
}
