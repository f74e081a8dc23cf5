package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esmlink/esmlink/internal/logger"
)

func TestMsgIDs(t *testing.T) {
	for id := logger.MsgID_None + 1; id < logger.MsgID_END; id++ {
		str := logger.MsgIDToString(id)
		require.NotEmpty(t, str, "message id %d has no name", id)

		parsed, ok := logger.StringToMsgID(str)
		require.True(t, ok)
		assert.Equal(t, id, parsed)
	}
}

func TestMsgString(t *testing.T) {
	source := logger.Source{
		PrettyPath: "entry.js",
		Contents:   "import {x} from './missing'\nconsole.log(x)\n",
	}
	r := source.RangeOfString(logger.Loc{Start: 16})

	log := logger.NewDeferLog()
	log.AddErrorWithNotes(&source, r, logger.MsgID_UnresolvedModule, "Could not resolve \"./missing\"",
		[]logger.MsgData{{Text: "The import chain is: entry.js"}})
	msgs := log.Done()
	require.Len(t, msgs, 1)
	assert.True(t, log.HasErrors())

	text := msgs[0].String(logger.OutputOptions{IncludeSource: true}, logger.TerminalInfo{})
	assert.Equal(t, `entry.js:1:16: error: Could not resolve "./missing"
import {x} from './missing'
                ~~~~~~~~~~~
note: The import chain is: entry.js
`, text)
}

func TestDeferLogSortsByLocation(t *testing.T) {
	source := logger.Source{PrettyPath: "a.js", Contents: "let a\nlet b\n"}

	log := logger.NewDeferLog()
	log.AddWarning(&source, logger.Range{Loc: logger.Loc{Start: 6}}, logger.MsgID_CircularDependency, "second")
	log.AddWarning(&source, logger.Range{Loc: logger.Loc{Start: 0}}, logger.MsgID_CircularDependency, "first")
	log.AddInfo("no location", nil)

	msgs := log.Done()
	require.Len(t, msgs, 3)
	assert.Equal(t, "no location", msgs[0].Data.Text)
	assert.Equal(t, "first", msgs[1].Data.Text)
	assert.Equal(t, "second", msgs[2].Data.Text)
	assert.False(t, log.HasErrors())
}
