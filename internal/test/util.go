package test

import (
	"testing"

	"github.com/esmlink/esmlink/internal/logger"
	"github.com/pmezard/go-difflib/difflib"
)

// Fails with a unified line diff when the two strings differ. Snapshot tests
// compare whole chunks, so a diff is much easier to read than the two texts.
func AssertEqualWithDiff(t *testing.T, observed string, expected string) {
	t.Helper()
	if observed == expected {
		return
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(observed),
		FromFile: "expected",
		ToFile:   "observed",
		Context:  3,
	})
	if err != nil {
		t.Fatalf("\nexpected:\n%s\nobserved:\n%s", expected, observed)
	}
	t.Fatalf("\n%s", diff)
}

func SourceForTest(contents string) logger.Source {
	return logger.Source{
		Index:          0,
		KeyPath:        logger.Path{Text: "<stdin>"},
		PrettyPath:     "<stdin>",
		Contents:       contents,
		IdentifierName: "stdin",
	}
}

// Renders messages the way the CLI would without color, one after another
func MsgsToString(msgs []logger.Msg) string {
	text := ""
	for _, msg := range msgs {
		text += msg.String(logger.OutputOptions{IncludeSource: true}, logger.TerminalInfo{})
	}
	return text
}
