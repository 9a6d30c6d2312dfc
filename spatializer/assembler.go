package spatializer

type assemblyPhase int

const (
	phaseIdle assemblyPhase = iota
	phaseCollecting
	phaseComplete
)

// Assembler rebuilds a byte string sent one byte per parameter write, with
// the total length declared by a separate write that may come before,
// between or after the bytes.
//
// Not safe for concurrent use; the State serializes access.
type Assembler struct {
	buf    []byte
	length int
	phase  assemblyPhase
	max    int
}

// NewAssembler returns an idle assembler that never buffers more than
// maxLen bytes.
func NewAssembler(maxLen int) *Assembler {
	if maxLen <= 0 {
		maxLen = DefaultMaxResourceLength
	}
	return &Assembler{max: maxLen}
}

// Append adds one byte and reports whether the assembly is complete. The
// first byte after a completed or cleared assembly starts a new one. Bytes
// beyond a declared length, or beyond the cap when no length is declared,
// are ignored.
func (a *Assembler) Append(b byte) bool {
	switch a.phase {
	case phaseComplete:
		a.Reset()
		fallthrough
	case phaseIdle:
		a.buf = a.buf[:0]
		a.phase = phaseCollecting
	}

	if a.length > 0 && len(a.buf) >= a.length {
		return a.Complete()
	}
	if len(a.buf) >= a.max {
		return false
	}

	a.buf = append(a.buf, b)
	return a.settle()
}

// SetLength declares the total length and reports whether the assembly is
// complete. Zero clears any partial buffer. A length not above the bytes
// already collected completes at once with the first n bytes.
func (a *Assembler) SetLength(n int) bool {
	if n <= 0 {
		a.Reset()
		return false
	}
	if a.phase == phaseComplete {
		a.Reset()
	}

	a.length = min(n, a.max)
	if len(a.buf) > a.length {
		a.buf = a.buf[:a.length]
	}
	return a.settle()
}

func (a *Assembler) settle() bool {
	if a.Complete() {
		a.phase = phaseComplete
		return true
	}
	return false
}

// Complete reports whether the collected bytes match the declared length.
func (a *Assembler) Complete() bool {
	return a.length > 0 && len(a.buf) == a.length
}

// InProgress reports whether an unfinished assembly holds bytes or a
// declared length.
func (a *Assembler) InProgress() bool {
	return a.phase != phaseComplete && (len(a.buf) > 0 || a.length > 0)
}

// Count returns the number of bytes collected.
func (a *Assembler) Count() int { return len(a.buf) }

// Length returns the declared length, 0 if none.
func (a *Assembler) Length() int { return a.length }

// Take returns the completed bytes once and returns the assembler to idle.
// It returns nil when the assembly is not complete.
func (a *Assembler) Take() []byte {
	if !a.Complete() {
		return nil
	}
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	a.Reset()
	return out
}

// Reset discards any partial or completed assembly.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.length = 0
	a.phase = phaseIdle
}
