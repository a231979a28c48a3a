// chunk.go: bytecode containers and instruction encoding.
//
// Instructions pack into a uint32 as op<<24 | imm, leaving 24 bits of
// immediate. Operations needing two operands (method calls, match) split the
// immediate into a 16-bit aux index and an 8-bit count/slot. Complex
// operations (method dispatch, declarations, struct literals, actor messages)
// carry an index into the chunk's aux tables and delegate to the same runtime
// helpers the tree-walker uses, which is what keeps the two backends
// observably identical.
package ruchy

import (
	"fmt"
	"strings"
)

type opcode uint8

const (
	opNop opcode = iota

	// constants and literals
	opConst // push Consts[imm]
	opNil
	opUnit
	opTrue
	opFalse

	// stack
	opPop
	opPopN // pop imm values
	opDup  // push a copy of the top value

	// variables
	opLoadLocal   // push locals[imm]
	opStoreLocal  // locals[imm] = pop
	opLoadUpval   // push upvals[imm]
	opStoreUpval  // upvals[imm] = pop
	opLoadGlobal  // push globals[Names[imm]]
	opStoreGlobal // globals[Names[imm]] = pop (Set semantics)
	opDefGlobal   // define Names[imm>>1], mutable when imm&1
	opLoadSelf    // push the running closure (local recursion)
	opFailImm     // raise immutable-assignment for Names[imm]

	// arithmetic and comparison
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opPow
	opEq
	opNe
	opLt
	opLe
	opGt
	opGe
	opNeg
	opNot
	opBNot

	// composite construction
	opMakeArr   // pop imm elems
	opMakeTuple // pop imm elems
	opMakeObj   // pop imm (key,value) pairs
	opMakeRange // pop end,start; imm&1 = inclusive
	opClosure   // instantiate Protos[imm], capturing per its upval descs

	// access
	opIndex    // pop idx,recv; push recv[idx]
	opIndexSet // pop idx,recv,v; assign; push Unit
	opField    // pop recv; push recv.Names[imm]
	opFieldSet // pop recv,v; assign Names[imm]; push Unit

	// control flow
	opJump        // ip = imm
	opJumpIfFalse // pop cond; if falsy ip = imm
	opJumpIfTrue  // pop cond; if truthy ip = imm
	opReturn      // pop v; unwind frame

	// calls
	opCall       // imm = argc; pop args, callee; push result
	opMethodCall // imm = nameIdx<<8|argc; delegated to DispatchMethod

	// pattern matching
	opMatch   // imm = patIdx<<8|baseSlot; peek scrutinee; push Bool
	opNoMatch // pop scrutinee; raise non-exhaustive match
	opPatFail // pop value; raise binding mismatch (imm 0 = let, 1 = loop)

	// iteration
	opIter     // pop iterable; push iterator
	opIterNext // push next elem, or pop iterator and jump to imm

	// error propagation
	opTry // pop v; unwrap Ok/Some, early-return Err/None

	// declarations and messaging
	opDecl      // run Nodes[imm] against the session; push Unit
	opPath      // resolve Nodes[imm] (a Type::name path); push the value
	opStructLit // Lits[imm]; pop field values; push instance
	opSend      // Msgs[imm]; pop args,actor; deliver; push Unit
	opAsk       // Msgs[imm]; pop args,actor; deliver; push reply
)

func pack(op opcode, imm uint32) uint32 { return uint32(op)<<24 | (imm & 0xFFFFFF) }
func uop(i uint32) opcode               { return opcode(i >> 24) }
func uimm(i uint32) uint32              { return i & 0xFFFFFF }

// structLitRef describes one compiled struct literal site.
type structLitRef struct {
	TypeName string
	Keys     []string
}

// msgRef describes one compiled actor-message site.
type msgRef struct {
	Name string
	Argc int
}

// patRef pairs a pattern with its bind names in slot order. opMatch writes
// each produced binding into base+index(name) so alternation arms that bind
// the same names in a different order still land in the right slots.
type patRef struct {
	Pat   Pattern
	Names []string
}

// Chunk is one compiled code object plus its constant and aux tables.
type Chunk struct {
	Code   []uint32
	Spans  []Span // parallel to Code
	Consts []Value
	Names  []string
	Pats   []patRef
	Protos []*Proto
	Nodes  []Expr
	Lits   []structLitRef
	Msgs   []msgRef
}

// UpvalDesc tells opClosure where a captured value comes from in the
// enclosing frame: a local slot, one of the enclosing upvalues, or the
// enclosing closure itself. Capture copies the value slot; heap payloads stay
// shared.
type UpvalDesc struct {
	Name      string
	FromLocal bool
	FromSelf  bool
	Index     int
	Mutable   bool
}

// Proto is a compiled function prototype.
type Proto struct {
	Name      string
	Params    []Param
	NumLocals int
	Upvals    []UpvalDesc
	Chunk     *Chunk
}

var opNames = [...]string{
	opNop: "NOP", opConst: "CONST", opNil: "NIL", opUnit: "UNIT",
	opTrue: "TRUE", opFalse: "FALSE", opPop: "POP", opPopN: "POPN",
	opDup: "DUP", opLoadLocal: "LOAD_LOCAL", opStoreLocal: "STORE_LOCAL",
	opLoadUpval: "LOAD_UPVAL", opStoreUpval: "STORE_UPVAL",
	opLoadGlobal: "LOAD_GLOBAL", opStoreGlobal: "STORE_GLOBAL",
	opDefGlobal: "DEF_GLOBAL", opLoadSelf: "LOAD_SELF", opFailImm: "FAIL_IMM",
	opAdd: "ADD", opSub: "SUB", opMul: "MUL", opDiv: "DIV", opMod: "MOD",
	opPow: "POW", opEq: "EQ", opNe: "NE", opLt: "LT", opLe: "LE", opGt: "GT",
	opGe: "GE", opNeg: "NEG", opNot: "NOT", opBNot: "BNOT",
	opMakeArr: "MAKE_ARR", opMakeTuple: "MAKE_TUPLE",
	opMakeObj: "MAKE_OBJ", opMakeRange: "MAKE_RANGE", opClosure: "CLOSURE",
	opIndex: "INDEX", opIndexSet: "INDEX_SET", opField: "FIELD",
	opFieldSet: "FIELD_SET", opJump: "JUMP", opJumpIfFalse: "JUMP_IF_FALSE",
	opJumpIfTrue: "JUMP_IF_TRUE", opReturn: "RETURN", opCall: "CALL",
	opMethodCall: "METHOD_CALL", opMatch: "MATCH", opNoMatch: "NO_MATCH",
	opPatFail: "PAT_FAIL", opIter: "ITER", opIterNext: "ITER_NEXT",
	opTry: "TRY", opDecl: "DECL", opPath: "PATH", opStructLit: "STRUCT_LIT",
	opSend: "SEND", opAsk: "ASK",
}

// Disassemble renders the chunk and its nested prototypes.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for i, raw := range c.Code {
		op, imm := uop(raw), uimm(raw)
		mn := "?"
		if int(op) < len(opNames) && opNames[op] != "" {
			mn = opNames[op]
		}
		fmt.Fprintf(&b, "%04d  %-14s %6d", i, mn, imm)
		switch op {
		case opConst:
			fmt.Fprintf(&b, "  ; %s", FormatValue(c.Consts[imm]))
		case opLoadGlobal, opStoreGlobal, opField, opFieldSet, opFailImm:
			fmt.Fprintf(&b, "  ; %s", c.Names[imm])
		case opDefGlobal:
			mut := ""
			if imm&1 == 1 {
				mut = " mut"
			}
			fmt.Fprintf(&b, "  ; %s%s", c.Names[imm>>1], mut)
		case opMethodCall:
			fmt.Fprintf(&b, "  ; .%s/%d", c.Names[imm>>8], imm&0xFF)
		case opMatch:
			fmt.Fprintf(&b, "  ; pat %d -> slot %d", imm>>8, imm&0xFF)
		case opClosure:
			fmt.Fprintf(&b, "  ; %s", c.Protos[imm].Name)
		case opStructLit:
			fmt.Fprintf(&b, "  ; %s", c.Lits[imm].TypeName)
		case opSend, opAsk:
			fmt.Fprintf(&b, "  ; %s/%d", c.Msgs[imm].Name, c.Msgs[imm].Argc)
		}
		b.WriteByte('\n')
	}
	for _, p := range c.Protos {
		b.WriteByte('\n')
		b.WriteString(p.Chunk.Disassemble(p.Name))
	}
	return b.String()
}
