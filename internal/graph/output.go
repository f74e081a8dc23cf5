package graph

type EntryPoint struct {
	// This may be an absolute path or a relative path. If absolute, it will
	// eventually be turned into a relative path by computing the path relative
	// to the output directory. Either way the final path is "/"-separated.
	OutputPath string

	SourceIndex uint32
}

type OutputKind uint8

const (
	OutputEntryPoint OutputKind = iota
	OutputDynamicImport
	OutputShared
)

func (kind OutputKind) String() string {
	switch kind {
	case OutputEntryPoint:
		return "entry"
	case OutputDynamicImport:
		return "dynamic"
	case OutputShared:
		return "shared"
	default:
		panic("Internal error")
	}
}

type OutputFile struct {
	// The chunk path relative to the output directory, and the same path
	// joined onto the output directory
	Path    string
	AbsPath string

	Contents []byte

	// This is nil unless source maps are enabled. It's written next to the
	// chunk as "<path>.map".
	SourceMap []byte

	Kind OutputKind

	// The pretty path of the module this chunk was generated for. This is
	// empty for shared chunks.
	EntryPoint string

	// This chunk's entry in the "outputs" map of the metafile, or empty if no
	// metafile was requested
	JSONMetadataChunk string
}
