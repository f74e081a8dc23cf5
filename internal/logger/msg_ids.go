package logger

// Every message produced by a build carries an ID naming the kind of problem
// so that callers can react to a category without matching on message text.
// Informational output such as phase timings uses "MsgID_None".
type MsgID = uint8

const (
	MsgID_None MsgID = iota

	// Fatal to the build
	MsgID_ParseError
	MsgID_UnresolvedModule
	MsgID_DuplicateBinding
	MsgID_CircularReexport
	MsgID_MissingExport
	MsgID_OrphanModule

	// Recovered locally
	MsgID_AmbiguousExport
	MsgID_CircularDependency
	MsgID_UnsupportedExternalExportStar

	MsgID_END // Keep this at the end (used only for tests)
)

func MsgIDToString(id MsgID) string {
	switch id {
	case MsgID_ParseError:
		return "ParseError"
	case MsgID_UnresolvedModule:
		return "UnresolvedModule"
	case MsgID_DuplicateBinding:
		return "DuplicateBinding"
	case MsgID_CircularReexport:
		return "CircularReexport"
	case MsgID_MissingExport:
		return "MissingExport"
	case MsgID_OrphanModule:
		return "OrphanModule"
	case MsgID_AmbiguousExport:
		return "AmbiguousExport"
	case MsgID_CircularDependency:
		return "CircularDependency"
	case MsgID_UnsupportedExternalExportStar:
		return "UnsupportedExternalExportStar"
	}

	return ""
}

func StringToMsgID(str string) (MsgID, bool) {
	for id := MsgID_None + 1; id < MsgID_END; id++ {
		if MsgIDToString(id) == str {
			return id, true
		}
	}
	return MsgID_None, false
}
