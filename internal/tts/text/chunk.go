package text

// Chunker splits sanitized text into windows the synthesis API accepts.
type Chunker struct {
	defaultSize    int
	devanagariSize int
}

// NewChunker creates a Chunker with a ceiling per script, in characters.
func NewChunker(defaultSize, devanagariSize int) *Chunker {
	return &Chunker{
		defaultSize:    defaultSize,
		devanagariSize: devanagariSize,
	}
}

// SizeFor returns the chunk ceiling for a script.
func (c *Chunker) SizeFor(script Script) int {
	if script == ScriptDevanagari {
		return c.devanagariSize
	}

	return c.defaultSize
}

// Chunk splits text with the ceiling of the detected script.
func (c *Chunker) Chunk(text string, script Script) []string {
	return Split(text, c.SizeFor(script))
}

// Split cuts text into consecutive windows of at most size characters. Windows
// ignore word boundaries, so a word may straddle two chunks. Concatenating the
// result in order gives back text. A size below one is treated as one.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}

	if size < 1 {
		size = 1
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)

	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}
