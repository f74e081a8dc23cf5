package js_lexer

import (
	"math"
	"testing"

	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/test"
	"github.com/stretchr/testify/require"
)

// Lexes the first token, returning the lexer and any messages. A lexer
// panic leaves the zero lexer behind.
func lexFirst(t *testing.T, contents string) (Lexer, string) {
	t.Helper()
	log := logger.NewDeferLog()
	lexer := func() Lexer {
		defer func() {
			r := recover()
			if _, isLexerPanic := r.(LexerPanic); r != nil && !isLexerPanic {
				panic(r)
			}
		}()
		return NewLexer(log, test.SourceForTest(contents))
	}()
	text := ""
	for _, msg := range log.Done() {
		text += msg.String(logger.OutputOptions{}, logger.TerminalInfo{})
	}
	return lexer, text
}

func expectLexerError(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		_, text := lexFirst(t, contents)
		test.AssertEqualWithDiff(t, text, expected)
	})
}

func TestComment(t *testing.T) {
	expectLexerError(t, "/*", "<stdin>: error: Expected \"*/\" to terminate multi-line comment\n")
	expectLexerError(t, "/*/", "<stdin>: error: Expected \"*/\" to terminate multi-line comment\n")
	expectLexerError(t, "/**/", "")
	expectLexerError(t, "//", "")

	lexer, _ := lexFirst(t, "/* a */\nx")
	require.Equal(t, TIdentifier, lexer.Token)
	require.True(t, lexer.HasNewlineBefore)
}

func TestHashbang(t *testing.T) {
	for _, contents := range []string{"#!/usr/bin/env node", "#!/usr/bin/env node\n", "#!/usr/bin/env node\nlet x"} {
		lexer, text := lexFirst(t, contents)
		require.Empty(t, text)
		require.Equal(t, THashbang, lexer.Token)
		require.Equal(t, "#!/usr/bin/env node", lexer.Identifier)
	}

	expectLexerError(t, " #!/usr/bin/env node", "<stdin>: error: Syntax error \"!\"\n")
}

func expectIdentifier(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		lexer, text := lexFirst(t, contents)
		require.Empty(t, text)
		require.Equal(t, TIdentifier, lexer.Token)
		require.Equal(t, expected, lexer.Identifier)
	})
}

func TestIdentifier(t *testing.T) {
	expectIdentifier(t, "_", "_")
	expectIdentifier(t, "$", "$")
	expectIdentifier(t, "test", "test")
	expectIdentifier(t, "t\\u0065st", "test")
	expectIdentifier(t, "t\\u{65}st", "test")
	expectIdentifier(t, "a\u200C", "a\u200C")

	expectLexerError(t, "t\\u.", "<stdin>: error: Syntax error \".\"\n")
	expectLexerError(t, "t\\u{.", "<stdin>: error: Syntax error \".\"\n")

	lexer, _ := lexFirst(t, "#foo")
	require.Equal(t, TPrivateIdentifier, lexer.Token)
	require.Equal(t, "#foo", lexer.Identifier)
}

func expectNumber(t *testing.T, contents string, expected float64) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		lexer, text := lexFirst(t, contents)
		require.Empty(t, text)
		require.Equal(t, TNumericLiteral, lexer.Token)
		require.Equal(t, expected, lexer.Number)
	})
}

func TestNumericLiteral(t *testing.T) {
	expectNumber(t, "0", 0.0)
	expectNumber(t, "123", 123.0)
	expectNumber(t, "1.5", 1.5)
	expectNumber(t, ".5", 0.5)
	expectNumber(t, "1e3", 1000.0)
	expectNumber(t, "1E-3", 0.001)
	expectNumber(t, "1_000", 1000.0)
	expectNumber(t, "0x10", 16.0)
	expectNumber(t, "0XFF", 255.0)
	expectNumber(t, "0b101", 5.0)
	expectNumber(t, "0o17", 15.0)
	expectNumber(t, "010", 8.0)
	expectNumber(t, "1e400", math.Inf(1))

	expectLexerError(t, "1_", "<stdin>: error: Syntax error \"_\"\n")
	expectLexerError(t, "1__0", "<stdin>: error: Syntax error \"_\"\n")
	expectLexerError(t, "0_1", "<stdin>: error: Syntax error \"_\"\n")
	expectLexerError(t, "1e", "<stdin>: error: Unexpected end of file\n")
	expectLexerError(t, "1a", "<stdin>: error: Syntax error \"a\"\n")
	expectLexerError(t, "019", "<stdin>: error: Syntax error \"9\"\n")
}

func TestBigIntegerLiteral(t *testing.T) {
	for contents, expected := range map[string]string{
		"0n":    "0",
		"123n":  "123",
		"1_0n":  "10",
		"0x10n": "0x10",
	} {
		lexer, text := lexFirst(t, contents)
		require.Empty(t, text, contents)
		require.Equal(t, TBigIntegerLiteral, lexer.Token, contents)
		require.Equal(t, expected, lexer.Identifier, contents)
	}

	expectLexerError(t, "01n", "<stdin>: error: Syntax error \"n\"\n")
}

func expectString(t *testing.T, contents string, expected string) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		lexer, text := lexFirst(t, contents)
		require.Empty(t, text)
		require.Equal(t, TStringLiteral, lexer.Token)
		require.Equal(t, expected, lexer.StringLiteral)
		require.Equal(t, contents, lexer.Raw())
	})
}

func TestStringLiteral(t *testing.T) {
	expectString(t, "''", "")
	expectString(t, "'abc'", "abc")
	expectString(t, "\"abc\"", "abc")
	expectString(t, "'\\n\\t'", "\n\t")
	expectString(t, "'\\x41'", "A")
	expectString(t, "'\\u0041'", "A")
	expectString(t, "'\\u{1F600}'", "\U0001F600")
	expectString(t, "'\\101'", "A")
	expectString(t, "'\\''", "'")
	expectString(t, "'a\\\nb'", "ab")

	expectLexerError(t, "'abc", "<stdin>: error: Unexpected end of file\n")
	expectLexerError(t, "'a\nb'", "<stdin>: error: Unterminated string literal\n")
}

func TestTemplate(t *testing.T) {
	lexer, text := lexFirst(t, "`a\\n${")
	require.Empty(t, text)
	require.Equal(t, TTemplateHead, lexer.Token)
	require.Equal(t, "a\\n", lexer.StringLiteral)

	lexer, text = lexFirst(t, "`abc`")
	require.Empty(t, text)
	require.Equal(t, TNoSubstitutionTemplateLiteral, lexer.Token)
	require.Equal(t, "abc", lexer.StringLiteral)
}

func TestIsIdentifier(t *testing.T) {
	require.True(t, IsIdentifier("a"))
	require.True(t, IsIdentifier("$_1"))
	require.True(t, IsIdentifier("été"))
	require.False(t, IsIdentifier(""))
	require.False(t, IsIdentifier("1a"))
	require.False(t, IsIdentifier("a-b"))
	require.False(t, IsIdentifier("a b"))
}

func TestRangeOfIdentifier(t *testing.T) {
	source := test.SourceForTest("let foo = 1")
	r := RangeOfIdentifier(source, logger.Loc{Start: 4})
	require.Equal(t, logger.Range{Loc: logger.Loc{Start: 4}, Len: 3}, r)
}

func TestTokens(t *testing.T) {
	expected := []struct {
		contents string
		token    T
	}{
		{"", TEndOfFile},

		// Punctuation
		{"(", TOpenParen},
		{")", TCloseParen},
		{"[", TOpenBracket},
		{"]", TCloseBracket},
		{"{", TOpenBrace},
		{"}", TCloseBrace},
		{"...", TDotDotDot},
		{"?.a", TQuestionDot},
		{"?.1", TQuestion},
		{"??", TQuestionQuestion},
		{"??=", TQuestionQuestionEquals},
		{"=>", TEqualsGreaterThan},
		{"**=", TAsteriskAsteriskEquals},
		{">>>=", TGreaterThanGreaterThanGreaterThanEquals},

		// Reserved words
		{"break", TBreak},
		{"case", TCase},
		{"catch", TCatch},
		{"class", TClass},
		{"const", TConst},
		{"continue", TContinue},
		{"debugger", TDebugger},
		{"default", TDefault},
		{"delete", TDelete},
		{"do", TDo},
		{"else", TElse},
		{"enum", TEnum},
		{"export", TExport},
		{"extends", TExtends},
		{"false", TFalse},
		{"finally", TFinally},
		{"for", TFor},
		{"function", TFunction},
		{"if", TIf},
		{"import", TImport},
		{"in", TIn},
		{"instanceof", TInstanceof},
		{"new", TNew},
		{"null", TNull},
		{"return", TReturn},
		{"super", TSuper},
		{"switch", TSwitch},
		{"this", TThis},
		{"throw", TThrow},
		{"true", TTrue},
		{"try", TTry},
		{"typeof", TTypeof},
		{"var", TVar},
		{"void", TVoid},
		{"while", TWhile},
		{"with", TWith},
	}

	for _, it := range expected {
		contents := it.contents
		token := it.token
		t.Run(contents, func(t *testing.T) {
			lexer, _ := lexFirst(t, contents)
			require.Equal(t, token, lexer.Token)
		})
	}
}
