package mqjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer([]byte(src))
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Type == TokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func tokenTypes(toks []Token) []TokenType {
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	return types
}

func TestLexerBasics(t *testing.T) {
	t.Run("declaration statement", func(t *testing.T) {
		toks := lexAll(t, "var x = 1;")
		assert.Equal(t, []TokenType{TokVar, TokIdent, TokAssign, TokNumber, TokSemi}, tokenTypes(toks))
		assert.Equal(t, "x", toks[1].Str)
		assert.Equal(t, 1.0, toks[3].Num)
	})

	t.Run("keywords are classified", func(t *testing.T) {
		toks := lexAll(t, "if else while return typeof instanceof")
		assert.Equal(t, []TokenType{TokIf, TokElse, TokWhile, TokReturn, TokTypeof, TokInstanceof}, tokenTypes(toks))
	})

	t.Run("identifiers with keyword prefixes stay identifiers", func(t *testing.T) {
		toks := lexAll(t, "iffy variance newish")
		for _, tok := range toks {
			assert.Equal(t, TokIdent, tok.Type)
		}
	})

	t.Run("comments are trivia", func(t *testing.T) {
		toks := lexAll(t, "1 // line comment\n/* block\ncomment */ 2")
		assert.Equal(t, []TokenType{TokNumber, TokNumber}, tokenTypes(toks))
		assert.True(t, toks[1].NewlineBefore)
	})
}

func TestLexerOperators(t *testing.T) {
	for _, test := range []struct {
		src  string
		want TokenType
	}{
		{"===", TokStrictEq},
		{"!==", TokStrictNotEq},
		{"==", TokEq},
		{"!=", TokNotEq},
		{"<=", TokLe},
		{">=", TokGe},
		{"<<", TokShl},
		{">>", TokSar},
		{">>>", TokShr},
		{"**", TokStarStar},
		{"**=", TokStarStarAssign},
		{"+=", TokPlusAssign},
		{">>>=", TokShrAssign},
		{"<<=", TokShlAssign},
		{"&&", TokAndAnd},
		{"||", TokOrOr},
		{"++", TokPlusPlus},
		{"--", TokMinusMinus},
		{"...", TokDotDotDot},
		{"=>", TokArrow},
	} {
		t.Run(test.src, func(t *testing.T) {
			toks := lexAll(t, test.src)
			require.Len(t, toks, 1)
			assert.Equal(t, test.want, toks[0].Type)
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	for _, test := range []struct {
		src  string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.14", 3.14},
		{"1e3", 1000},
		{"2.5e-1", 0.25},
		{"0xff", 255},
		{"0o17", 15},
	} {
		t.Run(test.src, func(t *testing.T) {
			toks := lexAll(t, test.src)
			require.Len(t, toks, 1)
			assert.Equal(t, TokNumber, toks[0].Type)
			assert.Equal(t, test.want, toks[0].Num)
		})
	}
}

func TestLexerStrings(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{`"double"`, "double"},
		{`'single'`, "single"},
		{`"a\nb\tc"`, "a\nb\tc"},
		{`"q\"inner\"q"`, `q"inner"q`},
		{`'\x41B'`, "AB"},
		{`"back\\slash"`, `back\slash`},
		{`"nul\0byte"`, "nul\x00byte"},
	} {
		t.Run(test.src, func(t *testing.T) {
			toks := lexAll(t, test.src)
			require.Len(t, toks, 1)
			assert.Equal(t, TokString, toks[0].Type)
			assert.Equal(t, test.want, toks[0].Str)
		})
	}

	t.Run("unterminated string errors", func(t *testing.T) {
		l := NewLexer([]byte(`"open`))
		_, err := l.Next()
		assert.Error(t, err)
	})

	t.Run("bad hex escape errors", func(t *testing.T) {
		l := NewLexer([]byte(`"\xZZ"`))
		_, err := l.Next()
		assert.Error(t, err)
	})
}

func TestLexerRegexpDisambiguation(t *testing.T) {
	t.Run("slash after a value is division", func(t *testing.T) {
		toks := lexAll(t, "a / b")
		assert.Equal(t, []TokenType{TokIdent, TokSlash, TokIdent}, tokenTypes(toks))
	})

	t.Run("slash after close paren is division", func(t *testing.T) {
		toks := lexAll(t, "(1) / 2")
		assert.Equal(t, TokSlash, toks[3].Type)
	})

	t.Run("slash after an operator starts a regex literal", func(t *testing.T) {
		toks := lexAll(t, "x = /ab+c/g")
		require.Len(t, toks, 3)
		assert.Equal(t, TokRegexp, toks[2].Type)
		assert.Equal(t, "/ab+c/g", toks[2].Str)
	})

	t.Run("character classes may contain a slash", func(t *testing.T) {
		toks := lexAll(t, "x = /[/]+/")
		require.Len(t, toks, 3)
		assert.Equal(t, TokRegexp, toks[2].Type)
	})

	t.Run("divide assign", func(t *testing.T) {
		toks := lexAll(t, "a /= 2")
		assert.Equal(t, TokSlashAssign, toks[1].Type)
	})
}
