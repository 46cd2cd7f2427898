package mqjs

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mqjs-project/mqjs/ascii"
)

// DisassembleProgram renders a compiled program as readable assembly,
// one function per section. With color enabled the listing uses the
// default terminal theme (labels for function headers, operators for
// opcode names, literals for constants), the same scheme the CLI's
// -asm flag prints with.
func DisassembleProgram(p *Program, h *Heap, color bool) string {
	var sb strings.Builder
	for i, fn := range p.Functions {
		name := fn.Name
		if name == "" {
			name = "<anonymous>"
		}
		header := fmt.Sprintf("fn[%d] %s (params=%d locals=%d)", i, name, fn.NumParams, fn.NumLocals)
		sb.WriteString(paint(color, ascii.DefaultTheme.Label, header))
		sb.WriteByte('\n')
		disassembleCode(&sb, fn, h, color)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func paint(color bool, col, s string) string {
	if !color {
		return s
	}
	return ascii.Color(col, "%s", s)
}

func disassembleCode(sb *strings.Builder, fn *CompiledFunction, h *Heap, color bool) {
	pc := 0
	for pc < len(fn.Code) {
		op := OpCode(fn.Code[pc])
		fmt.Fprintf(sb, "  %s ", paint(color, ascii.DefaultTheme.Span, fmt.Sprintf("%04d", pc)))
		sb.WriteString(paint(color, ascii.DefaultTheme.Operator, op.String()))
		pc++

		if op == OpMakeClosure {
			funcIdx := int(binary.BigEndian.Uint16(fn.Code[pc:]))
			pc += 2
			count := int(fn.Code[pc])
			pc++
			fmt.Fprintf(sb, " %s", paint(color, ascii.DefaultTheme.Operand, fmt.Sprintf("fn[%d]", funcIdx)))
			for i := 0; i < count; i++ {
				fromLocal := fn.Code[pc] == 1
				idx := int(binary.BigEndian.Uint16(fn.Code[pc+1:]))
				pc += 3
				src := "capture"
				if fromLocal {
					src = "local"
				}
				fmt.Fprintf(sb, " %s", paint(color, ascii.DefaultTheme.Operand, fmt.Sprintf("(%s %d)", src, idx)))
			}
			sb.WriteByte('\n')
			continue
		}

		switch operandBytes(op) {
		case 1:
			fmt.Fprintf(sb, " %s", paint(color, ascii.DefaultTheme.Operand, fmt.Sprintf("%d", int8(fn.Code[pc]))))
			pc++
		case 2:
			operand := int(binary.BigEndian.Uint16(fn.Code[pc:]))
			pc += 2
			sb.WriteString(" " + paint(color, ascii.DefaultTheme.Operand, fmt.Sprintf("%d", operand)))
			if isConstOperand(op) && operand < len(fn.Consts) {
				sb.WriteString(" " + paint(color, ascii.DefaultTheme.Literal, constComment(fn.Consts[operand], h)))
			}
		}
		sb.WriteByte('\n')
	}
}

func isConstOperand(op OpCode) bool {
	switch op {
	case OpPushConst, OpGetGlobal, OpSetGlobal, OpGetField,
		OpGetFieldKeepBase, OpSetField, OpDeleteField:
		return true
	}
	return false
}

func constComment(v Value, h *Heap) string {
	switch v.Kind() {
	case KindString:
		return fmt.Sprintf("; %q", h.String(v.Index()))
	case KindInt31:
		return fmt.Sprintf("; %d", v.Int())
	case KindFloat:
		return fmt.Sprintf("; %s", ftoa(v.Float()))
	default:
		return ""
	}
}
