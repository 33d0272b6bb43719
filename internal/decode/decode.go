/*
 * Minimal RV32IMA + custom-opcode decoding oracle.
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

// Package decode maps 4 raw instruction bytes to a tagged Instruction
// with operand fields, covering RV32IMA plus three custom opcodes.
package decode

// Op identifies the operation an Instruction performs.
type Op int

const (
	Unknown Op = iota
	Add
	Addi
	Sub
	Mul
	And
	Andi
	Or
	Ori
	Xor
	Xori
	Sll
	Slli
	Srl
	Srli
	Sra
	Srai
	Lui
	Auipc
	Lw
	Lh
	Lhu
	Lb
	Lbu
	Sw
	Sh
	Sb
	AmoaddW
	Jal
	Jalr
	Beq
	Bne
	Blt
	Bltu
	Bge
	Bgeu
	Slt
	Slti
	Sltu
	Sltiu
	Divu
	Div
	Remu
	Rem
	Fence
	Ecall
	Ebreak
	Csrrw
	NoclPush
	NoclPop
	CacheLineFlush
)

// Instruction is the decoded, tagged record the fetch stage hands
// downstream.
type Instruction struct {
	Op       Op
	Rd       int
	Rs1      int
	Rs2      int
	Imm      int32
	Csr      uint32
	RawWord  uint32
}

func word(b [4]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Decode converts 4 raw bytes at a PC into a tagged Instruction.
// Custom opcodes are recognised by their low 16 bits before falling back
// to standard RV32IMA field layout.
func Decode(raw [4]byte) Instruction {
	w := word(raw)
	switch w & 0xFFFF {
	case 0x0009:
		return Instruction{Op: NoclPush, RawWord: w}
	case 0x1009:
		return Instruction{Op: NoclPop, RawWord: w}
	case 0x0008:
		return Instruction{Op: CacheLineFlush, RawWord: w}
	}

	opcode := w & 0x7F
	rd := int((w >> 7) & 0x1F)
	funct3 := (w >> 12) & 0x7
	rs1 := int((w >> 15) & 0x1F)
	rs2 := int((w >> 20) & 0x1F)
	funct7 := (w >> 25) & 0x7F

	iImm := signExtend(w>>20, 12)
	sImm := signExtend(((w>>25)<<5)|((w>>7)&0x1F), 12)

	bBit12 := (w >> 31) & 1
	bBit11 := (w >> 7) & 1
	bBits10_5 := (w >> 25) & 0x3F
	bBits4_1 := (w >> 8) & 0xF
	bImm := signExtend((bBit12<<12)|(bBit11<<11)|(bBits10_5<<5)|(bBits4_1<<1), 13)

	uImm := int32(w & 0xFFFFF000)

	jBit20 := (w >> 31) & 1
	jBits19_12 := (w >> 12) & 0xFF
	jBit11 := (w >> 20) & 1
	jBits10_1 := (w >> 21) & 0x3FF
	jImm := signExtend((jBit20<<20)|(jBits19_12<<12)|(jBit11<<11)|(jBits10_1<<1), 21)

	in := Instruction{Rd: rd, Rs1: rs1, Rs2: rs2, RawWord: w}

	switch opcode {
	case 0x33: // R-type
		switch {
		case funct7 == 0x00 && funct3 == 0x0:
			in.Op = Add
		case funct7 == 0x20 && funct3 == 0x0:
			in.Op = Sub
		case funct7 == 0x01 && funct3 == 0x0:
			in.Op = Mul
		case funct7 == 0x00 && funct3 == 0x7:
			in.Op = And
		case funct7 == 0x00 && funct3 == 0x6:
			in.Op = Or
		case funct7 == 0x00 && funct3 == 0x4:
			in.Op = Xor
		case funct7 == 0x00 && funct3 == 0x1:
			in.Op = Sll
		case funct7 == 0x00 && funct3 == 0x5:
			in.Op = Srl
		case funct7 == 0x20 && funct3 == 0x5:
			in.Op = Sra
		case funct7 == 0x00 && funct3 == 0x2:
			in.Op = Slt
		case funct7 == 0x00 && funct3 == 0x3:
			in.Op = Sltu
		case funct7 == 0x01 && funct3 == 0x5:
			in.Op = Divu
		case funct7 == 0x01 && funct3 == 0x4:
			in.Op = Div
		case funct7 == 0x01 && funct3 == 0x7:
			in.Op = Remu
		case funct7 == 0x01 && funct3 == 0x6:
			in.Op = Rem
		default:
			in.Op = Unknown
		}
	case 0x13: // I-type ALU
		in.Imm = iImm
		switch funct3 {
		case 0x0:
			in.Op = Addi
		case 0x7:
			in.Op = Andi
		case 0x6:
			in.Op = Ori
		case 0x4:
			in.Op = Xori
		case 0x2:
			in.Op = Slti
		case 0x3:
			in.Op = Sltiu
		case 0x1:
			in.Op = Slli
			in.Imm = int32(rs2) // shamt
		case 0x5:
			in.Imm = int32(rs2)
			if funct7 == 0x20 {
				in.Op = Srai
			} else {
				in.Op = Srli
			}
		default:
			in.Op = Unknown
		}
	case 0x03: // loads
		in.Imm = iImm
		switch funct3 {
		case 0x2:
			in.Op = Lw
		case 0x1:
			in.Op = Lh
		case 0x5:
			in.Op = Lhu
		case 0x0:
			in.Op = Lb
		case 0x4:
			in.Op = Lbu
		default:
			in.Op = Unknown
		}
	case 0x23: // stores
		in.Imm = sImm
		switch funct3 {
		case 0x2:
			in.Op = Sw
		case 0x1:
			in.Op = Sh
		case 0x0:
			in.Op = Sb
		default:
			in.Op = Unknown
		}
	case 0x2F: // atomics (AMOADD.W only)
		in.Op = AmoaddW
	case 0x37:
		in.Op = Lui
		in.Imm = uImm
	case 0x17:
		in.Op = Auipc
		in.Imm = uImm
	case 0x6F:
		in.Op = Jal
		in.Imm = jImm
	case 0x67:
		in.Op = Jalr
		in.Imm = iImm
	case 0x63: // branches
		in.Imm = bImm
		switch funct3 {
		case 0x0:
			in.Op = Beq
		case 0x1:
			in.Op = Bne
		case 0x4:
			in.Op = Blt
		case 0x5:
			in.Op = Bge
		case 0x6:
			in.Op = Bltu
		case 0x7:
			in.Op = Bgeu
		default:
			in.Op = Unknown
		}
	case 0x0F:
		in.Op = Fence
	case 0x73: // SYSTEM
		switch funct3 {
		case 0x0:
			if w>>20 == 1 {
				in.Op = Ebreak
			} else {
				in.Op = Ecall
			}
		case 0x1: // CSRRW
			in.Op = Csrrw
			in.Csr = w >> 20
		default:
			in.Op = Unknown
		}
	default:
		in.Op = Unknown
	}
	return in
}
