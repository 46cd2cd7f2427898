package mqjs

// Expression compilation uses precedence-climbing: each precedence level is one function that emits left-to-
// right, with assignment handled separately since it's right-
// associative and its left side must be re-interpreted as an
// assignment target rather than evaluated for its value.

type assignOp int

const (
	assignPlain assignOp = iota
	assignAdd
	assignSub
	assignMul
	assignDiv
	assignMod
	assignAnd
	assignOr
	assignXor
	assignShl
	assignSar
	assignShr
	assignPow
)

var compoundAssignOps = map[TokenType]assignOp{
	TokPlusAssign:      assignAdd,
	TokMinusAssign:     assignSub,
	TokStarAssign:      assignMul,
	TokSlashAssign:     assignDiv,
	TokPercentAssign:   assignMod,
	TokAmpAssign:       assignAnd,
	TokPipeAssign:      assignOr,
	TokCaretAssign:     assignXor,
	TokShlAssign:       assignShl,
	TokSarAssign:       assignSar,
	TokShrAssign:       assignShr,
	TokStarStarAssign:  assignPow,
}

var binOpForAssign = map[assignOp]OpCode{
	assignAdd: OpAdd, assignSub: OpSub, assignMul: OpMul, assignDiv: OpDiv,
	assignMod: OpMod, assignAnd: OpBitAnd, assignOr: OpBitOr, assignXor: OpBitXor,
	assignShl: OpShl, assignSar: OpSar, assignShr: OpShr, assignPow: OpPow,
}

// assignTarget describes where an lvalue's final Set opcode should
// write, captured before the right-hand side is compiled so `a.b =
// (a = {}).c` style aliasing evaluates left-to-right.
type assignTargetKind int

const (
	targetLocal assignTargetKind = iota
	targetCapture
	targetGlobal
	targetField
	targetElem
)

type assignTarget struct {
	kind assignTargetKind
	slot int // local/capture/global slot, or field's const-pool name index
	// baseTemp/keyTemp are scratch local slots holding the evaluated
	// base object (field, elem) and key (elem only), so a compound
	// assignment can re-read the current value without re-evaluating
	// a base expression that might have side effects.
	baseTemp int
	keyTemp  int
}

func (c *Compiler) assignExpr() error {
	return c.ternaryOrAssign()
}

func (c *Compiler) ternaryOrAssign() error {
	if err := c.conditionalExpr(); err != nil {
		return err
	}
	if c.at(TokAssign) {
		return c.finishAssign(assignPlain)
	}
	if op, ok := compoundAssignOps[c.cur.Type]; ok {
		return c.finishAssign(op)
	}
	return nil
}

// finishAssign is called immediately after compiling the left-hand
// expression's *read* form. Since the compiler has no separate
// "compile as lvalue" pass, the trailing read instruction is
// reinterpreted in place: a bare identifier's Get becomes a Set, and a
// member Get's base (and key) are stashed into scratch locals so they
// can be pushed again for the eventual Set without re-evaluating an
// expression that might have side effects.
func (c *Compiler) finishAssign(op assignOp) error {
	target, err := c.reinterpretAsTarget()
	if err != nil {
		return err
	}
	if err := c.advance(); err != nil { // consume '=' or compound-assign token
		return err
	}
	c.pushBaseForStore(target)
	if op != assignPlain {
		c.reloadCurrentValue(target)
	}
	if err := c.assignExpr(); err != nil {
		return err
	}
	if op != assignPlain {
		c.fn().emitOp(binOpForAssign[op])
	}
	c.storeTarget(target)
	return nil
}

// reinterpretAsTarget inspects the trailing read instruction this
// expression compiled (get_local/get_capture/get_global/get_field/
// get_elem) and turns it into an lvalue descriptor while preserving
// left-to-right evaluation: a member target's base (and,
// for element access, its key) are stashed into scratch locals right
// where they were first evaluated, so neither a compound assignment's
// reload nor its final store re-evaluates an expression that might
// have side effects.
func (c *Compiler) reinterpretAsTarget() (assignTarget, error) {
	code := c.fn().Code
	n := len(code)
	if n < 3 {
		return assignTarget{}, c.errf("invalid assignment target")
	}
	last := n - 1
	op := OpCode(code[last-2])
	// GetElem has no operand, so it is the final byte itself rather than
	// sitting at last-2 like the three-byte reads; memberTail always
	// emits it right after the Swap/Pop that drops the spare base copy.
	if OpCode(code[last]) == OpGetElem && OpCode(code[last-1]) == OpPop && op == OpSwap {
		op = OpGetElem
	}
	switch op {
	case OpGetLocal:
		slot := int(code[last-1])<<8 | int(code[last])
		c.fn().Code = code[:last-2]
		return assignTarget{kind: targetLocal, slot: slot}, nil
	case OpGetCapture:
		slot := int(code[last-1])<<8 | int(code[last])
		c.fn().Code = code[:last-2]
		return assignTarget{kind: targetCapture, slot: slot}, nil
	case OpGetGlobal:
		slot := int(code[last-1])<<8 | int(code[last])
		c.fn().Code = code[:last-2]
		return assignTarget{kind: targetGlobal, slot: slot}, nil
	case OpGetField:
		slot := int(code[last-1])<<8 | int(code[last])
		c.fn().Code = code[:last-2] // drop the GetField; base is left on stack
		baseTemp := c.scope.declareLocal("")
		c.fn().emitOpU16(OpSetLocal, uint16(baseTemp))
		c.fn().emitOp(OpPop)
		return assignTarget{kind: targetField, slot: slot, baseTemp: baseTemp}, nil
	case OpGetElem:
		if n < 4 {
			return assignTarget{}, c.errf("invalid assignment target")
		}
		c.fn().Code = code[:last] // drop the 1-byte GetElem; base,key left on stack
		keyTemp := c.scope.declareLocal("")
		c.fn().emitOpU16(OpSetLocal, uint16(keyTemp))
		c.fn().emitOp(OpPop)
		baseTemp := c.scope.declareLocal("")
		c.fn().emitOpU16(OpSetLocal, uint16(baseTemp))
		c.fn().emitOp(OpPop)
		return assignTarget{kind: targetElem, baseTemp: baseTemp, keyTemp: keyTemp}, nil
	default:
		return assignTarget{}, c.errf("invalid assignment target")
	}
}

// pushBaseForStore pushes whatever the final Set opcode will need
// beneath the right-hand value: nothing for a bare name, or the
// stashed base (and, for element access, key) read back from their
// scratch locals. Locals are freely re-readable, so the same base/key
// pair can be pushed again below for reloadCurrentValue without any
// stack shuffling.
func (c *Compiler) pushBaseForStore(t assignTarget) {
	switch t.kind {
	case targetField:
		c.fn().emitOpU16(OpGetLocal, uint16(t.baseTemp))
	case targetElem:
		c.fn().emitOpU16(OpGetLocal, uint16(t.baseTemp))
		c.fn().emitOpU16(OpGetLocal, uint16(t.keyTemp))
	}
}

// reloadCurrentValue reads the target's current value for a compound
// assignment (e.g. `x += 1` needs x's value before adding). For
// member targets, base/key have already been pushed by
// pushBaseForStore; this pushes a second copy (read back from the
// temp, not duplicated off the stack) and consumes it via Get*,
// leaving the first copy in place underneath for the eventual store.
func (c *Compiler) reloadCurrentValue(t assignTarget) {
	switch t.kind {
	case targetLocal:
		c.fn().emitOpU16(OpGetLocal, uint16(t.slot))
	case targetCapture:
		c.fn().emitOpU16(OpGetCapture, uint16(t.slot))
	case targetGlobal:
		c.fn().emitOpU16(OpGetGlobal, uint16(t.slot))
	case targetField:
		c.fn().emitOpU16(OpGetLocal, uint16(t.baseTemp))
		c.fn().emitOpU16(OpGetField, uint16(t.slot))
	case targetElem:
		c.fn().emitOpU16(OpGetLocal, uint16(t.baseTemp))
		c.fn().emitOpU16(OpGetLocal, uint16(t.keyTemp))
		c.fn().emitOp(OpGetElem)
	}
}

// storeTarget emits the final Set opcode. By this point the stack
// already holds, bottom to top, [base [key]] newvalue — base/key from
// pushBaseForStore, newvalue from whatever the caller just compiled —
// so no further rearranging is needed.
func (c *Compiler) storeTarget(t assignTarget) {
	switch t.kind {
	case targetLocal:
		c.fn().emitOpU16(OpSetLocal, uint16(t.slot))
	case targetCapture:
		c.fn().emitOpU16(OpSetCapture, uint16(t.slot))
	case targetGlobal:
		c.fn().emitOpU16(OpSetGlobal, uint16(t.slot))
	case targetField:
		c.fn().emitOpU16(OpSetField, uint16(t.slot))
	case targetElem:
		c.fn().emitOp(OpSetElem)
	}
}

func (c *Compiler) conditionalExpr() error {
	if err := c.logicalOr(); err != nil {
		return err
	}
	if c.at(TokQuestion) {
		if err := c.advance(); err != nil {
			return err
		}
		elseJump := c.fn().emitOpU16(OpJumpIfFalse, 0)
		if err := c.assignExpr(); err != nil {
			return err
		}
		doneJump := c.fn().emitOpU16(OpJump, 0)
		c.fn().patchU16(elseJump, uint16(c.fn().here()))
		if err := c.expect(TokColon, "':'"); err != nil {
			return err
		}
		if err := c.assignExpr(); err != nil {
			return err
		}
		c.fn().patchU16(doneJump, uint16(c.fn().here()))
	}
	return nil
}

// logicalOr/logicalAnd short-circuit with Dup+JumpIf rather than a
// plain binary opcode.
func (c *Compiler) logicalOr() error {
	if err := c.logicalAnd(); err != nil {
		return err
	}
	for c.at(TokOrOr) {
		if err := c.advance(); err != nil {
			return err
		}
		c.fn().emitOp(OpDup)
		skip := c.fn().emitOpU16(OpJumpIfTrue, 0)
		c.fn().emitOp(OpPop)
		if err := c.logicalAnd(); err != nil {
			return err
		}
		c.fn().patchU16(skip, uint16(c.fn().here()))
	}
	return nil
}

func (c *Compiler) logicalAnd() error {
	if err := c.bitOr(); err != nil {
		return err
	}
	for c.at(TokAndAnd) {
		if err := c.advance(); err != nil {
			return err
		}
		c.fn().emitOp(OpDup)
		skip := c.fn().emitOpU16(OpJumpIfFalse, 0)
		c.fn().emitOp(OpPop)
		if err := c.bitOr(); err != nil {
			return err
		}
		c.fn().patchU16(skip, uint16(c.fn().here()))
	}
	return nil
}

func (c *Compiler) bitOr() error {
	if err := c.bitXor(); err != nil {
		return err
	}
	for c.at(TokPipe) {
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.bitXor(); err != nil {
			return err
		}
		c.fn().emitOp(OpBitOr)
	}
	return nil
}

func (c *Compiler) bitXor() error {
	if err := c.bitAnd(); err != nil {
		return err
	}
	for c.at(TokCaret) {
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.bitAnd(); err != nil {
			return err
		}
		c.fn().emitOp(OpBitXor)
	}
	return nil
}

func (c *Compiler) bitAnd() error {
	if err := c.equality(); err != nil {
		return err
	}
	for c.at(TokAmp) {
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.equality(); err != nil {
			return err
		}
		c.fn().emitOp(OpBitAnd)
	}
	return nil
}

var equalityOps = map[TokenType]OpCode{
	TokEq: OpEq, TokNotEq: OpNe, TokStrictEq: OpStrictEq, TokStrictNotEq: OpStrictNe,
}

func (c *Compiler) equality() error {
	if err := c.relational(); err != nil {
		return err
	}
	for {
		op, ok := equalityOps[c.cur.Type]
		if !ok {
			return nil
		}
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.relational(); err != nil {
			return err
		}
		c.fn().emitOp(op)
	}
}

var relationalOps = map[TokenType]OpCode{
	TokLt: OpLt, TokLe: OpLe, TokGt: OpGt, TokGe: OpGe,
	TokInstanceof: OpInstanceOf, TokIn: OpIn,
}

func (c *Compiler) relational() error {
	if err := c.shift(); err != nil {
		return err
	}
	for {
		op, ok := relationalOps[c.cur.Type]
		if !ok {
			return nil
		}
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.shift(); err != nil {
			return err
		}
		c.fn().emitOp(op)
	}
}

var shiftOps = map[TokenType]OpCode{TokShl: OpShl, TokSar: OpSar, TokShr: OpShr}

func (c *Compiler) shift() error {
	if err := c.additive(); err != nil {
		return err
	}
	for {
		op, ok := shiftOps[c.cur.Type]
		if !ok {
			return nil
		}
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.additive(); err != nil {
			return err
		}
		c.fn().emitOp(op)
	}
}

func (c *Compiler) additive() error {
	if err := c.multiplicative(); err != nil {
		return err
	}
	for c.at(TokPlus) || c.at(TokMinus) {
		op := OpAdd
		if c.at(TokMinus) {
			op = OpSub
		}
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.multiplicative(); err != nil {
			return err
		}
		c.fn().emitOp(op)
	}
	return nil
}

func (c *Compiler) multiplicative() error {
	if err := c.exponent(); err != nil {
		return err
	}
	for c.at(TokStar) || c.at(TokSlash) || c.at(TokPercent) {
		var op OpCode
		switch c.cur.Type {
		case TokStar:
			op = OpMul
		case TokSlash:
			op = OpDiv
		default:
			op = OpMod
		}
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.exponent(); err != nil {
			return err
		}
		c.fn().emitOp(op)
	}
	return nil
}

// exponent is right-associative: recurse into itself on the
// right rather than looping.
func (c *Compiler) exponent() error {
	if err := c.unary(); err != nil {
		return err
	}
	if c.at(TokStarStar) {
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.exponent(); err != nil {
			return err
		}
		c.fn().emitOp(OpPow)
	}
	return nil
}

func (c *Compiler) unary() error {
	switch c.cur.Type {
	case TokMinus:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		c.fn().emitOp(OpNeg)
		return nil
	case TokPlus:
		if err := c.advance(); err != nil {
			return err
		}
		return c.unary()
	case TokBang:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		c.fn().emitOp(OpNot)
		return nil
	case TokTilde:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		c.fn().emitOp(OpBitNot)
		return nil
	case TokTypeof:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		c.fn().emitOp(OpTypeOf)
		return nil
	case TokDelete:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		code := c.fn().Code
		n := len(code)
		if n >= 3 && OpCode(code[n-3]) == OpGetField {
			slot := int(code[n-2])<<8 | int(code[n-1])
			c.fn().Code = code[:n-3]
			c.fn().emitOpU16(OpDeleteField, uint16(slot))
		} else {
			c.fn().emitOp(OpPop)
			c.fn().emitOp(OpPushTrue)
		}
		return nil
	case TokPlusPlus, TokMinusMinus:
		isInc := c.at(TokPlusPlus)
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.unary(); err != nil {
			return err
		}
		target, err := c.reinterpretAsTarget()
		if err != nil {
			return err
		}
		c.pushBaseForStore(target)
		c.reloadCurrentValue(target)
		c.fn().emitOp(OpPushIntSmall1)
		if isInc {
			c.fn().emitOp(OpAdd)
		} else {
			c.fn().emitOp(OpSub)
		}
		c.storeTarget(target)
		return nil
	default:
		return c.postfix()
	}
}

// postfix compiles `expr++`/`expr--`. The expression's value is the
// PRE-increment value, unlike the prefix form, so the old value is
// stashed in a scratch local before the store overwrites it on the
// stack.
func (c *Compiler) postfix() error {
	if err := c.callOrMember(); err != nil {
		return err
	}
	if c.at(TokPlusPlus) || c.at(TokMinusMinus) {
		isInc := c.at(TokPlusPlus)
		target, err := c.reinterpretAsTarget()
		if err != nil {
			return err
		}
		if err := c.advance(); err != nil {
			return err
		}
		oldTemp := c.scope.declareLocal("")
		c.pushBaseForStore(target)
		c.reloadCurrentValue(target)
		c.fn().emitOpU16(OpSetLocal, uint16(oldTemp))
		c.fn().emitOp(OpPop)
		c.fn().emitOpU16(OpGetLocal, uint16(oldTemp))
		c.fn().emitOp(OpPushIntSmall1)
		if isInc {
			c.fn().emitOp(OpAdd)
		} else {
			c.fn().emitOp(OpSub)
		}
		c.storeTarget(target)
		c.fn().emitOp(OpPop)
		c.fn().emitOpU16(OpGetLocal, uint16(oldTemp))
		return nil
	}
	return nil
}

// callOrMember parses primary expressions followed by any chain of
// `.field`, `[expr]`, and `(args)` suffixes, plus `new`.
func (c *Compiler) callOrMember() error {
	if c.at(TokNew) {
		return c.newExpr()
	}
	if err := c.primary(); err != nil {
		return err
	}
	return c.memberTail(false)
}

func (c *Compiler) memberTail(methodBaseOnStack bool) error {
	for {
		switch c.cur.Type {
		case TokDot:
			if err := c.advance(); err != nil {
				return err
			}
			if c.cur.Type != TokIdent && keywordName(c.cur.Type) == "" {
				return c.errf("expected property name after '.'")
			}
			name := c.propertyName()
			if err := c.advance(); err != nil {
				return err
			}
			idx := c.fn().addConst(c.internStringValue(name))
			if c.at(TokLParen) {
				// Pushes the retrieved callee and then the base above it,
				// the (callee, this) order CallMethod reads.
				c.fn().emitOpU16(OpGetFieldKeepBase, uint16(idx))
				if err := c.callArgs(OpCallMethod); err != nil {
					return err
				}
			} else {
				c.fn().emitOpU16(OpGetField, uint16(idx))
			}
		case TokLBracket:
			// Duplicate the base ahead of the key expression: whichever
			// branch below runs, it needs a spare base copy underneath
			// the key so a trailing call can still bind `this`.
			c.fn().emitOp(OpDup)
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.assignExpr(); err != nil {
				return err
			}
			if err := c.expect(TokRBracket, "']'"); err != nil {
				return err
			}
			if c.at(TokLParen) {
				// stack: base base key -- resolve the method, then swap
				// so the spare base sits above it as `this`.
				c.fn().emitOp(OpGetElem)
				c.fn().emitOp(OpSwap)
				if err := c.callArgs(OpCallMethod); err != nil {
					return err
				}
			} else {
				// stack: base base key -- no call follows, so the spare
				// base copy is unneeded; drop it before the element
				// read. Swap brings it to the top (base key base),
				// Pop removes it, leaving (base key) for GetElem.
				c.fn().emitOp(OpSwap)
				c.fn().emitOp(OpPop)
				c.fn().emitOp(OpGetElem)
			}
		case TokLParen:
			if err := c.callArgs(OpCall); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (c *Compiler) propertyName() string {
	if c.cur.Type == TokIdent {
		return c.cur.Str
	}
	return keywordName(c.cur.Type)
}

func keywordName(t TokenType) string {
	for k, v := range keywords {
		if v == t {
			return k
		}
	}
	return ""
}

func (c *Compiler) callArgs(op OpCode) error {
	if err := c.expect(TokLParen, "'('"); err != nil {
		return err
	}
	argc := 0
	for !c.at(TokRParen) {
		if err := c.assignExpr(); err != nil {
			return err
		}
		argc++
		if c.at(TokComma) {
			if err := c.advance(); err != nil {
				return err
			}
		}
	}
	if err := c.advance(); err != nil { // consume )
		return err
	}
	c.fn().emitOpU16(op, uint16(argc))
	return nil
}

// newExpr compiles `new Ctor(args)`: pushes the constructor
// value, its arguments, then OpCallConstructor, which the VM
// interprets as "allocate a fresh object, run the constructor with it
// bound as `this`, and leave the object on the stack unless the
// constructor explicitly returns an object".
func (c *Compiler) newExpr() error {
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.primary(); err != nil {
		return err
	}
	// Consume member access on the constructor expression itself
	// (e.g. `new foo.Bar()`) but stop before a call, which belongs to
	// `new`, not to the constructor lookup.
	for c.at(TokDot) || c.at(TokLBracket) {
		if c.at(TokDot) {
			if err := c.advance(); err != nil {
				return err
			}
			name := c.propertyName()
			if err := c.advance(); err != nil {
				return err
			}
			idx := c.fn().addConst(c.internStringValue(name))
			c.fn().emitOpU16(OpGetField, uint16(idx))
		} else {
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.assignExpr(); err != nil {
				return err
			}
			if err := c.expect(TokRBracket, "']'"); err != nil {
				return err
			}
			c.fn().emitOp(OpGetElem)
		}
	}
	if c.at(TokLParen) {
		if err := c.callArgs(OpCallConstructor); err != nil {
			return err
		}
	} else {
		c.fn().emitOpU16(OpCallConstructor, 0)
	}
	return c.memberTail(false)
}

func (c *Compiler) internStringValue(s string) Value {
	return StringVal(c.heap.InternString(s))
}

// splitRegexpLiteral takes the raw `/body/flags` lexeme and returns
// its two halves. The lexer guarantees the delimiters are present.
func splitRegexpLiteral(lit string) (string, string) {
	end := len(lit) - 1
	for lit[end] != '/' {
		end--
	}
	return lit[1:end], lit[end+1:]
}

func (c *Compiler) primary() error {
	switch c.cur.Type {
	case TokNumber:
		c.emitNumberLiteral(c.cur.Num)
		return c.advance()
	case TokString:
		idx := c.fn().addConst(c.internStringValue(c.cur.Str))
		c.fn().emitOpU16(OpPushConst, uint16(idx))
		return c.advance()
	case TokRegexp:
		source, flags := splitRegexpLiteral(c.cur.Str)
		idx := c.fn().addConst(RegexpVal(c.heap.NewRegexp(source, flags)))
		c.fn().emitOpU16(OpPushConst, uint16(idx))
		return c.advance()
	case TokTrue:
		c.fn().emitOp(OpPushTrue)
		return c.advance()
	case TokFalse:
		c.fn().emitOp(OpPushFalse)
		return c.advance()
	case TokNull:
		c.fn().emitOp(OpPushNull)
		return c.advance()
	case TokUndefined:
		c.fn().emitOp(OpPushUndefined)
		return c.advance()
	case TokThis:
		slot, ok := c.scope.resolveLocal("this")
		if ok {
			c.fn().emitOpU16(OpGetLocal, uint16(slot))
		} else if idx, ok := c.scope.resolveCapture("this"); ok {
			c.fn().emitOpU16(OpGetCapture, uint16(idx))
		} else {
			c.fn().emitOp(OpPushUndefined)
		}
		return c.advance()
	case TokIdent:
		return c.identifierRef()
	case TokLParen:
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.assignExpr(); err != nil {
			return err
		}
		return c.expect(TokRParen, "')'")
	case TokLBracket:
		return c.arrayLiteral()
	case TokLBrace:
		return c.objectLiteral()
	case TokFunction:
		if err := c.advance(); err != nil {
			return err
		}
		name := ""
		if c.at(TokIdent) {
			name = c.cur.Str
			if err := c.advance(); err != nil {
				return err
			}
		}
		return c.compileFunctionLiteral(name)
	default:
		return c.errf("unexpected token in expression")
	}
}

// emitNumberLiteral chooses the most compact encoding: a dedicated
// opcode for 0..7, PushInt8/PushInt16 for other integers that fit 8 or
// 16 signed bits, and the const pool for anything else.
func (c *Compiler) emitNumberLiteral(f float64) {
	if i := int64(f); float64(i) == f && i >= 0 && i <= 7 {
		c.fn().emitOp(OpCode(int(OpPushIntSmall0) + int(i)))
		return
	}
	if i := int64(f); float64(i) == f && i >= -128 && i <= 127 {
		c.fn().emitOpU8(OpPushInt8, byte(int8(i)))
		return
	}
	if i := int64(f); float64(i) == f && i >= -32768 && i <= 32767 {
		c.fn().emitOpU16(OpPushInt16, uint16(int16(i)))
		return
	}
	if i := int64(f); float64(i) == f && i >= MinInt31 && i <= MaxInt31 {
		idx := c.fn().addConst(Int(i))
		c.fn().emitOpU16(OpPushConst, uint16(idx))
		return
	}
	idx := c.fn().addConst(Float(f))
	c.fn().emitOpU16(OpPushConst, uint16(idx))
}

// identifierRef resolves a bare name against locals, then enclosing
// captures, then falls back to a global lookup.
func (c *Compiler) identifierRef() error {
	name := c.cur.Str
	if err := c.advance(); err != nil {
		return err
	}
	if slot, ok := c.scope.resolveLocal(name); ok {
		c.fn().emitOpU16(OpGetLocal, uint16(slot))
		return nil
	}
	if idx, ok := c.scope.resolveCapture(name); ok {
		c.fn().emitOpU16(OpGetCapture, uint16(idx))
		return nil
	}
	idx := c.fn().addConst(c.internStringValue(name))
	c.fn().emitOpU16(OpGetGlobal, uint16(idx))
	return nil
}

func (c *Compiler) arrayLiteral() error {
	if err := c.advance(); err != nil {
		return err
	}
	count := 0
	for !c.at(TokRBracket) {
		if err := c.assignExpr(); err != nil {
			return err
		}
		count++
		if c.at(TokComma) {
			if err := c.advance(); err != nil {
				return err
			}
		}
	}
	if err := c.advance(); err != nil {
		return err
	}
	c.fn().emitOpU16(OpMakeArray, uint16(count))
	return nil
}

func (c *Compiler) objectLiteral() error {
	if err := c.advance(); err != nil {
		return err
	}
	count := 0
	for !c.at(TokRBrace) {
		var keyName string
		switch c.cur.Type {
		case TokIdent:
			keyName = c.cur.Str
		case TokString:
			keyName = c.cur.Str
		case TokNumber:
			keyName = formatNumberKey(c.cur.Num)
		default:
			if kn := keywordName(c.cur.Type); kn != "" {
				keyName = kn
			} else {
				return c.errf("expected property key")
			}
		}
		if err := c.advance(); err != nil {
			return err
		}
		idx := c.fn().addConst(c.internStringValue(keyName))
		c.fn().emitOpU16(OpPushConst, uint16(idx))
		if err := c.expect(TokColon, "':'"); err != nil {
			return err
		}
		if err := c.assignExpr(); err != nil {
			return err
		}
		count++
		if c.at(TokComma) {
			if err := c.advance(); err != nil {
				return err
			}
		}
	}
	if err := c.advance(); err != nil {
		return err
	}
	c.fn().emitOpU16(OpMakeObject, uint16(count))
	return nil
}

func formatNumberKey(f float64) string {
	if i := int64(f); float64(i) == f {
		return itoa(i)
	}
	return ftoa(f)
}
