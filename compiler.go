package mqjs

import "fmt"

// localVar is one slot in a function's local-variable frame.
type localVar struct {
	name  string
	slot  int
	depth int
}

// captureVar records one slot a closure captures from an enclosing
// function, either straight off that function's locals or, for
// functions nested more than one level deep, off that function's own
// capture vector.
type captureVar struct {
	name      string
	fromLocal bool
	index     int
}

// loopCtx tracks the backpatch lists a break/continue inside the
// current loop needs to resolve once the loop's bounds are known.
type loopCtx struct {
	breaks       []int
	continues    []int
	continueAddr int
	parent       *loopCtx
}

// funcScope is the compiler's per-function compilation record. Scopes
// nest one per function literal; block scopes within a function only
// affect local-variable visibility; they don't get their own
// CompiledFunction.
type funcScope struct {
	fn       *CompiledFunction
	parent   *funcScope
	locals   []localVar
	captures []captureVar
	depth    int
	loop     *loopCtx
}

func (s *funcScope) declareLocal(name string) int {
	slot := len(s.locals)
	s.locals = append(s.locals, localVar{name: name, slot: slot, depth: s.depth})
	if slot+1 > s.fn.NumLocals {
		s.fn.NumLocals = slot + 1
	}
	return slot
}

// declareVar registers a function-scoped (`var`) binding. Depth 0
// keeps it out of endBlock's reach, the same way parameters and the
// implicit this/arguments slots survive every block.
func (s *funcScope) declareVar(name string) int {
	slot := len(s.locals)
	s.locals = append(s.locals, localVar{name: name, slot: slot, depth: 0})
	if slot+1 > s.fn.NumLocals {
		s.fn.NumLocals = slot + 1
	}
	return slot
}

func (s *funcScope) resolveLocal(name string) (int, bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return s.locals[i].slot, true
		}
	}
	return 0, false
}

// resolveCapture walks enclosing scopes to find name, recording a
// capture chain through every intermediate function scope so nested
// closures each get their own slot pointing at their immediate
// parent's locals or captures.
func (s *funcScope) resolveCapture(name string) (int, bool) {
	if s.parent == nil {
		return 0, false
	}
	if slot, ok := s.parent.resolveLocal(name); ok {
		return s.addCapture(captureVar{name: name, fromLocal: true, index: slot}), true
	}
	if idx, ok := s.parent.resolveCapture(name); ok {
		return s.addCapture(captureVar{name: name, fromLocal: false, index: idx}), true
	}
	return 0, false
}

func (s *funcScope) addCapture(cv captureVar) int {
	for i, c := range s.captures {
		if c.name == cv.name {
			return i
		}
	}
	s.captures = append(s.captures, cv)
	s.fn.CaptureNames = append(s.fn.CaptureNames, cv.name)
	return len(s.captures) - 1
}

// Compiler performs a single pass over the token stream, emitting
// bytecode directly with no intermediate AST: every
// construct is parsed and encoded in the same walk, with forward
// jumps backpatched once their target address is known.
type Compiler struct {
	lex     *Lexer
	cur     Token
	heap    *Heap
	config  *Config
	funcs []*CompiledFunction
	scope *funcScope
	// errOffset is the byte offset of the current token, stamped onto
	// any CompileError this pass produces.
	errOffset int
}

// NewCompiler builds a Compiler sharing the given heap, so string
// literals intern directly into the engine that will run the result.
func NewCompiler(src []byte, heap *Heap, config *Config) (*Compiler, error) {
	c := &Compiler{lex: NewLexer(src), heap: heap, config: config}
	if err := c.advance(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Compiler) advance() error {
	tok, err := c.lex.Next()
	if err != nil {
		return err
	}
	c.cur = tok
	c.errOffset = tok.Start
	return nil
}

func (c *Compiler) at(t TokenType) bool { return c.cur.Type == t }

func (c *Compiler) expect(t TokenType, what string) error {
	if c.cur.Type != t {
		return c.errf("expected %s", what)
	}
	return c.advance()
}

func (c *Compiler) errf(format string, args ...interface{}) error {
	return CompileError{Message: fmt.Sprintf(format, args...), Offset: c.errOffset}
}

// Compile parses the full source as a top-level script and returns
// the resulting Program.
func Compile(src []byte, heap *Heap, config *Config) (*Program, error) {
	c, err := NewCompiler(src, heap, config)
	if err != nil {
		return nil, err
	}
	return c.compileProgram()
}

func (c *Compiler) compileProgram() (*Program, error) {
	top := newCompiledFunction("<script>", 0)
	top.IsScript = true
	c.funcs = append(c.funcs, top)
	c.scope = &funcScope{fn: top}

	// Slot 0 of the script holds the value of the last expression
	// statement executed, which is what Eval returns.
	c.scope.declareLocal("")

	for !c.at(TokEOF) {
		if err := c.statement(); err != nil {
			return nil, err
		}
	}
	top.emitOpU16(OpGetLocal, 0)
	top.emitOp(OpReturn)
	return &Program{Functions: c.funcs, Entry: 0}, nil
}

// atTopLevel reports whether the compiler is emitting into the script
// function itself. Declarations there bind into the engine's globals
// map rather than script locals, so a REPL's later lines and any
// closure created at the top level see them by name at call time —
// which is also what lets a top-level recursive function find itself
// despite captures being value snapshots.
func (c *Compiler) atTopLevel() bool { return c.scope.parent == nil }

func (c *Compiler) fn() *CompiledFunction { return c.scope.fn }

// beginBlock/endBlock implement lexical block scoping for `let` and
// `const`: names declared at the closing block's depth stop resolving
// once it ends. `var` bindings are declared at depth 0 (declareVar)
// and survive, since they hoist to the function scope. Slots are not
// physically reclaimed — the frame size is fixed to NumLocals anyway.
func (c *Compiler) beginBlock() { c.scope.depth++ }

func (c *Compiler) endBlock() {
	d := c.scope.depth
	kept := c.scope.locals[:0]
	for _, lv := range c.scope.locals {
		if lv.depth != d {
			kept = append(kept, lv)
		}
	}
	c.scope.locals = kept
	c.scope.depth--
}

func (c *Compiler) statement() error {
	switch c.cur.Type {
	case TokLBrace:
		return c.blockStatement()
	case TokVar, TokLet, TokConst:
		return c.varStatement()
	case TokFunction:
		return c.functionDeclaration()
	case TokIf:
		return c.ifStatement()
	case TokWhile:
		return c.whileStatement()
	case TokDo:
		return c.doWhileStatement()
	case TokFor:
		return c.forStatement()
	case TokReturn:
		return c.returnStatement()
	case TokBreak:
		return c.breakStatement()
	case TokContinue:
		return c.continueStatement()
	case TokTry:
		return c.tryStatement()
	case TokThrow:
		return c.throwStatement()
	case TokSemi:
		return c.advance()
	default:
		return c.expressionStatement()
	}
}

func (c *Compiler) blockStatement() error {
	if err := c.advance(); err != nil { // consume {
		return err
	}
	c.beginBlock()
	for !c.at(TokRBrace) && !c.at(TokEOF) {
		if err := c.statement(); err != nil {
			return err
		}
	}
	c.endBlock()
	return c.expect(TokRBrace, "'}'")
}

func (c *Compiler) varStatement() error {
	isVar := c.at(TokVar)
	if err := c.advance(); err != nil { // consume var/let/const
		return err
	}
	for {
		if !c.at(TokIdent) {
			return c.errf("expected identifier in declaration")
		}
		name := c.cur.Str
		if err := c.advance(); err != nil {
			return err
		}
		slot := -1
		if !c.atTopLevel() {
			if isVar {
				slot = c.scope.declareVar(name)
			} else {
				slot = c.scope.declareLocal(name)
			}
		}
		if c.at(TokAssign) {
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.assignExpr(); err != nil {
				return err
			}
		} else {
			c.fn().emitOp(OpPushUndefined)
		}
		if slot >= 0 {
			c.fn().emitOpU16(OpSetLocal, uint16(slot))
		} else {
			idx := c.fn().addConst(c.internStringValue(name))
			c.fn().emitOpU16(OpSetGlobal, uint16(idx))
		}
		c.fn().emitOp(OpPop)
		if !c.at(TokComma) {
			break
		}
		if err := c.advance(); err != nil {
			return err
		}
	}
	return c.consumeSemi()
}

// consumeSemi eats a statement terminator. The grammar accepted is the
// statement-terminated subset — there is no automatic semicolon
// insertion — so under strict_semicolons a missing `;` is a
// syntax error unless the statement ends at a block close or at EOF.
func (c *Compiler) consumeSemi() error {
	if c.at(TokSemi) {
		return c.advance()
	}
	if c.config != nil && c.config.StrictSemicolons &&
		!c.at(TokRBrace) && !c.at(TokEOF) {
		return c.errf("expected ';'")
	}
	return nil
}

func (c *Compiler) expressionStatement() error {
	if err := c.assignExpr(); err != nil {
		return err
	}
	if c.atTopLevel() {
		// Keep the value around as the script's result (slot 0).
		c.fn().emitOpU16(OpSetLocal, 0)
	}
	c.fn().emitOp(OpPop)
	return c.consumeSemi()
}

func (c *Compiler) ifStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(TokLParen, "'('"); err != nil {
		return err
	}
	if err := c.assignExpr(); err != nil {
		return err
	}
	if err := c.expect(TokRParen, "')'"); err != nil {
		return err
	}
	elseJump := c.fn().emitOpU16(OpJumpIfFalse, 0)
	if err := c.statement(); err != nil {
		return err
	}
	if c.at(TokElse) {
		doneJump := c.fn().emitOpU16(OpJump, 0)
		c.fn().patchU16(elseJump, uint16(c.fn().here()))
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.statement(); err != nil {
			return err
		}
		c.fn().patchU16(doneJump, uint16(c.fn().here()))
	} else {
		c.fn().patchU16(elseJump, uint16(c.fn().here()))
	}
	return nil
}

func (c *Compiler) pushLoop() *loopCtx {
	lc := &loopCtx{parent: c.scope.loop}
	c.scope.loop = lc
	return lc
}

func (c *Compiler) popLoop(lc *loopCtx, continueAddr, breakAddr int) {
	for _, at := range lc.breaks {
		c.fn().patchU16(at, uint16(breakAddr))
	}
	for _, at := range lc.continues {
		c.fn().patchU16(at, uint16(continueAddr))
	}
	c.scope.loop = lc.parent
}

func (c *Compiler) whileStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(TokLParen, "'('"); err != nil {
		return err
	}
	condAddr := c.fn().here()
	if err := c.assignExpr(); err != nil {
		return err
	}
	if err := c.expect(TokRParen, "')'"); err != nil {
		return err
	}
	exitJump := c.fn().emitOpU16(OpJumpIfFalse, 0)
	lc := c.pushLoop()
	if err := c.statement(); err != nil {
		return err
	}
	c.fn().emitOpU16(OpJump, uint16(condAddr))
	c.fn().patchU16(exitJump, uint16(c.fn().here()))
	c.popLoop(lc, condAddr, c.fn().here())
	return nil
}

func (c *Compiler) doWhileStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	bodyAddr := c.fn().here()
	lc := c.pushLoop()
	if err := c.statement(); err != nil {
		return err
	}
	if err := c.expect(TokWhile, "'while'"); err != nil {
		return err
	}
	if err := c.expect(TokLParen, "'('"); err != nil {
		return err
	}
	condAddr := c.fn().here()
	if err := c.assignExpr(); err != nil {
		return err
	}
	if err := c.expect(TokRParen, "')'"); err != nil {
		return err
	}
	c.fn().emitOpU16(OpJumpIfTrue, uint16(bodyAddr))
	c.popLoop(lc, condAddr, c.fn().here())
	return c.consumeSemi()
}

// forStatement handles the classic three-clause form as well as
// for-in/for-of, disambiguated the way a hand-written recursive
// descent parser naturally does: parse the init clause and see what
// follows it.
func (c *Compiler) forStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.expect(TokLParen, "'('"); err != nil {
		return err
	}
	c.beginBlock()

	if c.at(TokVar) || c.at(TokLet) || c.at(TokConst) {
		isVar := c.at(TokVar)
		if err := c.advance(); err != nil {
			return err
		}
		if !c.at(TokIdent) {
			return c.errf("expected identifier in for-loop")
		}
		name := c.cur.Str
		if err := c.advance(); err != nil {
			return err
		}
		if c.at(TokIn) || isForOf(c.cur) {
			isOf := isForOf(c.cur)
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.assignExpr(); err != nil {
				return err
			}
			if isOf {
				c.fn().emitOp(OpForOfStart)
			} else {
				c.fn().emitOp(OpForInStart)
			}
			if err := c.expect(TokRParen, "')'"); err != nil {
				return err
			}
			return c.forEachBody(c.declareLoopVar(name, isVar))
		}
		// classic three-clause with a var/let/const init
		store := c.declareLoopVar(name, isVar)
		if c.at(TokAssign) {
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.assignExpr(); err != nil {
				return err
			}
		} else {
			c.fn().emitOp(OpPushUndefined)
		}
		c.emitLoopVarStore(store)
		c.fn().emitOp(OpPop)
		return c.forClassicTail()
	}

	if !c.at(TokSemi) {
		if err := c.assignExpr(); err != nil {
			return err
		}
		c.fn().emitOp(OpPop)
	}
	return c.forClassicTail()
}

func isForOf(t Token) bool {
	return t.Type == TokIdent && t.Str == "of"
}

// loopVarStore records where a for-loop's declared variable lives: a
// local slot inside a function, or a named global at the top level,
// the same split every other declaration form makes.
type loopVarStore struct {
	global  bool
	slot    int
	nameIdx int
}

func (c *Compiler) declareLoopVar(name string, isVar bool) loopVarStore {
	if c.atTopLevel() {
		return loopVarStore{global: true, nameIdx: c.fn().addConst(c.internStringValue(name))}
	}
	if isVar {
		return loopVarStore{slot: c.scope.declareVar(name)}
	}
	return loopVarStore{slot: c.scope.declareLocal(name)}
}

func (c *Compiler) emitLoopVarStore(s loopVarStore) {
	if s.global {
		c.fn().emitOpU16(OpSetGlobal, uint16(s.nameIdx))
	} else {
		c.fn().emitOpU16(OpSetLocal, uint16(s.slot))
	}
}

// forEachBody compiles the shared tail of for-in/for-of once the
// iterator has been pushed and the loop variable's store is known: a
// backward-branching IterNext pair bracketing the body. The iterator
// sits on the operand stack for the loop's whole extent; both normal
// exhaustion and `break` land on the trailing Pop that discards it.
func (c *Compiler) forEachBody(store loopVarStore) error {
	condAddr := c.fn().here()
	exitJump := c.fn().emitOpU16(OpIterNext, 0)
	c.emitLoopVarStore(store)
	c.fn().emitOp(OpPop)
	lc := c.pushLoop()
	if err := c.statement(); err != nil {
		return err
	}
	c.fn().emitOpU16(OpJump, uint16(condAddr))
	exitAddr := c.fn().here()
	c.fn().patchU16(exitJump, uint16(exitAddr))
	c.fn().emitOp(OpPop) // drop the exhausted iterator
	c.popLoop(lc, condAddr, exitAddr)
	c.endBlock()
	return nil
}

func (c *Compiler) forClassicTail() error {
	if err := c.expect(TokSemi, "';'"); err != nil {
		return err
	}
	condAddr := c.fn().here()
	exitJump := -1
	if !c.at(TokSemi) {
		if err := c.assignExpr(); err != nil {
			return err
		}
		exitJump = c.fn().emitOpU16(OpJumpIfFalse, 0)
	}
	if err := c.expect(TokSemi, "';'"); err != nil {
		return err
	}
	bodyJump := c.fn().emitOpU16(OpJump, 0)
	updateAddr := c.fn().here()
	if !c.at(TokRParen) {
		if err := c.assignExpr(); err != nil {
			return err
		}
		c.fn().emitOp(OpPop)
	}
	c.fn().emitOpU16(OpJump, uint16(condAddr))
	if err := c.expect(TokRParen, "')'"); err != nil {
		return err
	}
	c.fn().patchU16(bodyJump, uint16(c.fn().here()))
	lc := c.pushLoop()
	if err := c.statement(); err != nil {
		return err
	}
	c.fn().emitOpU16(OpJump, uint16(updateAddr))
	exitAddr := c.fn().here()
	if exitJump >= 0 {
		c.fn().patchU16(exitJump, uint16(exitAddr))
	}
	c.popLoop(lc, updateAddr, exitAddr)
	c.endBlock()
	return nil
}

func (c *Compiler) returnStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if c.at(TokSemi) || c.at(TokRBrace) {
		c.fn().emitOp(OpPushUndefined)
	} else {
		if err := c.assignExpr(); err != nil {
			return err
		}
	}
	c.fn().emitOp(OpReturn)
	return c.consumeSemi()
}

func (c *Compiler) breakStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if c.scope.loop == nil {
		return c.errf("'break' outside loop")
	}
	at := c.fn().emitOpU16(OpJump, 0)
	c.scope.loop.breaks = append(c.scope.loop.breaks, at)
	return c.consumeSemi()
}

func (c *Compiler) continueStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if c.scope.loop == nil {
		return c.errf("'continue' outside loop")
	}
	at := c.fn().emitOpU16(OpJump, 0)
	c.scope.loop.continues = append(c.scope.loop.continues, at)
	return c.consumeSemi()
}

// throwStatement emits OpThrow over the evaluated expression.
func (c *Compiler) throwStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	if err := c.assignExpr(); err != nil {
		return err
	}
	c.fn().emitOp(OpThrow)
	return c.consumeSemi()
}

// tryStatement compiles try/catch/finally using a PushHandler/
// PopHandler bracket the VM's handler stack interprets at
// runtime: PushHandler records the catch address to jump to on a throw
// inside the protected region.
//
// A bare try/finally (no catch clause) still has to run finally and
// then re-raise, rather than let the handler jump silently resume
// normal control flow with the thrown value abandoned on the operand
// stack — so that case stashes the value in a hidden local and
// re-throws it after finally runs.
func (c *Compiler) tryStatement() error {
	if err := c.advance(); err != nil {
		return err
	}
	handlerAt := c.fn().emitOpU16(OpPushHandler, 0)
	if err := c.blockStatement(); err != nil {
		return err
	}
	// Peek before emitting the normal-path tail: a bare try/finally (no
	// catch) needs a "did we arrive here via an exception" flag set on
	// both the normal path (false, below) and the exception path (true,
	// after the handler jump) so the re-throw after finally only fires
	// on the exception path.
	hasCatch := c.at(TokCatch)
	pendingSlot := -1
	flagSlot := -1
	c.fn().emitOp(OpPopHandler)
	if !hasCatch {
		pendingSlot = c.scope.declareLocal("")
		flagSlot = c.scope.declareLocal("")
		c.fn().emitOp(OpPushFalse)
		c.fn().emitOpU16(OpSetLocal, uint16(flagSlot))
		c.fn().emitOp(OpPop)
	}
	afterTryJump := c.fn().emitOpU16(OpJump, 0)

	catchAddr := c.fn().here()
	c.fn().patchU16(handlerAt, uint16(catchAddr))

	if hasCatch {
		if err := c.advance(); err != nil {
			return err
		}
		c.beginBlock()
		var slot int
		hasParam := false
		if c.at(TokLParen) {
			if err := c.advance(); err != nil {
				return err
			}
			if !c.at(TokIdent) {
				return c.errf("expected identifier in catch clause")
			}
			slot = c.scope.declareLocal(c.cur.Str)
			hasParam = true
			if err := c.advance(); err != nil {
				return err
			}
			if err := c.expect(TokRParen, "')'"); err != nil {
				return err
			}
		}
		if hasParam {
			c.fn().emitOpU16(OpSetLocal, uint16(slot))
			c.fn().emitOp(OpPop)
		} else {
			c.fn().emitOp(OpPop)
		}
		if err := c.blockStatement(); err != nil {
			return err
		}
		c.endBlock()
	} else {
		// Stash the thrown value and mark the flag so it can be
		// re-raised once finally has run.
		c.fn().emitOpU16(OpSetLocal, uint16(pendingSlot))
		c.fn().emitOp(OpPop)
		c.fn().emitOp(OpPushTrue)
		c.fn().emitOpU16(OpSetLocal, uint16(flagSlot))
		c.fn().emitOp(OpPop)
	}
	c.fn().patchU16(afterTryJump, uint16(c.fn().here()))

	if c.at(TokFinally) {
		if err := c.advance(); err != nil {
			return err
		}
		if err := c.blockStatement(); err != nil {
			return err
		}
	}
	if !hasCatch {
		c.fn().emitOpU16(OpGetLocal, uint16(flagSlot))
		skipRethrow := c.fn().emitOpU16(OpJumpIfFalse, 0)
		c.fn().emitOpU16(OpGetLocal, uint16(pendingSlot))
		c.fn().emitOp(OpThrow)
		c.fn().patchU16(skipRethrow, uint16(c.fn().here()))
	}
	return nil
}

// functionDeclaration compiles `function name(...) { ... }` as sugar
// for binding name to a MakeClosure result: a global at the top level,
// a declared local inside a function.
func (c *Compiler) functionDeclaration() error {
	if err := c.advance(); err != nil {
		return err
	}
	if !c.at(TokIdent) {
		return c.errf("expected function name")
	}
	name := c.cur.Str
	if err := c.advance(); err != nil {
		return err
	}
	if c.atTopLevel() {
		if err := c.compileFunctionLiteral(name); err != nil {
			return err
		}
		idx := c.fn().addConst(c.internStringValue(name))
		c.fn().emitOpU16(OpSetGlobal, uint16(idx))
		c.fn().emitOp(OpPop)
		return nil
	}
	slot := c.scope.declareLocal(name)
	if err := c.compileFunctionLiteral(name); err != nil {
		return err
	}
	c.fn().emitOpU16(OpSetLocal, uint16(slot))
	c.fn().emitOp(OpPop)
	return nil
}

// compileFunctionLiteral parses a parameter list and body, compiling
// them into a brand new CompiledFunction, then emits OpMakeClosure in
// the enclosing function referencing it plus its resolved captures.
func (c *Compiler) compileFunctionLiteral(name string) error {
	if err := c.expect(TokLParen, "'('"); err != nil {
		return err
	}
	fn := newCompiledFunction(name, 0)
	funcIndex := len(c.funcs)
	c.funcs = append(c.funcs, fn)
	childScope := &funcScope{fn: fn, parent: c.scope}
	outer := c.scope
	c.scope = childScope

	// Slot 0 is `this`, filled by the VM at call time; `arguments`
	// follows the declared parameters. Both are ordinary locals as far
	// as resolution is concerned, so nested closures can capture them.
	c.scope.declareLocal("this")
	for !c.at(TokRParen) {
		if !c.at(TokIdent) {
			return c.errf("expected parameter name")
		}
		c.scope.declareLocal(c.cur.Str)
		fn.NumParams++
		if err := c.advance(); err != nil {
			return err
		}
		if c.at(TokComma) {
			if err := c.advance(); err != nil {
				return err
			}
		}
	}
	c.scope.declareLocal("arguments")
	if err := c.advance(); err != nil { // consume )
		return err
	}
	if err := c.expect(TokLBrace, "'{'"); err != nil {
		return err
	}
	for !c.at(TokRBrace) && !c.at(TokEOF) {
		if err := c.statement(); err != nil {
			return err
		}
	}
	if err := c.expect(TokRBrace, "'}'"); err != nil {
		return err
	}
	fn.emitOp(OpPushUndefined)
	fn.emitOp(OpReturn)

	captures := childScope.captures
	c.scope = outer

	outer.fn.emitOpU16(OpMakeClosure, uint16(funcIndex))
	var buf []byte
	buf = append(buf, byte(len(captures)))
	outer.fn.Code = append(outer.fn.Code, buf...)
	for _, cap := range captures {
		var tag byte
		if cap.fromLocal {
			tag = 1
		}
		outer.fn.Code = append(outer.fn.Code, tag)
		outer.fn.Code = append(outer.fn.Code, byte(cap.index>>8), byte(cap.index))
	}
	return nil
}
