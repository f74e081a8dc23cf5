package helpers

// Collects output pieces and copies them into a single buffer at the end.
// Chunks are assembled from many already-printed module bodies, so growing a
// buffer as they arrive would copy each body several times.
type Joiner struct {
	pieces   []joinerPiece
	length   uint32
	lastByte byte
}

// Exactly one of these is used
type joinerPiece struct {
	text string
	data []byte
}

func (j *Joiner) add(piece joinerPiece, size int, last byte) {
	if size > 0 {
		j.lastByte = last
	}
	j.pieces = append(j.pieces, piece)
	j.length += uint32(size)
}

func (j *Joiner) AddString(text string) {
	var last byte
	if len(text) > 0 {
		last = text[len(text)-1]
	}
	j.add(joinerPiece{text: text}, len(text), last)
}

func (j *Joiner) AddBytes(data []byte) {
	var last byte
	if len(data) > 0 {
		last = data[len(data)-1]
	}
	j.add(joinerPiece{data: data}, len(data), last)
}

func (j *Joiner) LastByte() byte {
	return j.lastByte
}

func (j *Joiner) Length() uint32 {
	return j.length
}

func (j *Joiner) EnsureNewlineAtEnd() {
	if j.length > 0 && j.lastByte != '\n' {
		j.AddString("\n")
	}
}

func (j *Joiner) Done() []byte {
	// A single byte slice can be returned as-is
	if len(j.pieces) == 1 && j.pieces[0].data != nil {
		return j.pieces[0].data
	}
	buffer := make([]byte, 0, j.length)
	for _, piece := range j.pieces {
		if piece.data != nil {
			buffer = append(buffer, piece.data...)
		} else {
			buffer = append(buffer, piece.text...)
		}
	}
	return buffer
}
