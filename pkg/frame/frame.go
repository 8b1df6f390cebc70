package frame

// Framing constants.
const (
	// Delimiter separates groups and terminates frames.
	Delimiter byte = 0x00

	// MaxGroup is the largest group length code. A group of this length is
	// not followed by an implicit zero.
	MaxGroup = 255

	// HeaderLen is the number of leading decoded bytes that echo the
	// domain and message type of the request.
	HeaderLen = 2
)

// Encode stuffs payload so that it contains no zero bytes. When terminate is
// true a trailing Delimiter is appended to mark the end of the frame.
func Encode(payload []byte, terminate bool) []byte {
	out := make([]byte, 1, len(payload)+len(payload)/254+3)
	code := 0 // index of the open group's length byte
	n := byte(1)

	closeGroup := func(delimit bool) {
		out[code] = n
		code = len(out)
		if delimit {
			out = append(out, Delimiter)
		}
		n = 1
	}

	for _, b := range payload {
		if b == Delimiter {
			closeGroup(true)
			continue
		}
		out = append(out, b)
		n++
		if n == MaxGroup {
			closeGroup(true)
		}
	}
	closeGroup(false)

	if terminate {
		out = append(out, Delimiter)
	}
	return out
}

// Result is the outcome of decoding a possibly partial frame.
type Result struct {
	// Header holds the domain and message type echoed by the appliance.
	// It is shorter than HeaderLen only when too few bytes were decoded.
	Header []byte

	// Payload is the decoded message following the header. Positions that
	// have not been received yet hold 0 and are counted in Missing.
	Payload []byte

	// Missing counts payload bytes announced by a group length but absent
	// from the input.
	Missing int

	// Terminated reports whether the input ended with a Delimiter.
	Terminated bool
}

// Complete reports whether the decoded payload is whole and authoritative.
func (r Result) Complete() bool {
	return r.Terminated && r.Missing == 0
}

// Decode unstuffs raw. The final byte of raw is treated as the end-of-frame
// marker and dropped before decoding. Decode never fails: truncated input is
// reported through Result.Missing.
func Decode(raw []byte) Result {
	res := Result{Terminated: len(raw) > 0 && raw[len(raw)-1] == Delimiter}
	if len(raw) == 0 {
		return res
	}
	data := raw[:len(raw)-1]

	out := make([]byte, 0, len(data))
	missing := make([]bool, 0, len(data))
	push := func(b byte, absent bool) {
		out = append(out, b)
		missing = append(missing, absent)
	}

	for i := 0; i < len(data); {
		l := int(data[i])
		i++
		for k := 1; k < l; k++ {
			if i < len(data) {
				push(data[i], false)
			} else {
				push(0, true)
			}
			i++
		}
		if l < MaxGroup && i < len(data) {
			push(Delimiter, false)
		}
	}

	if len(out) <= HeaderLen {
		res.Header = out
		for _, m := range missing {
			if m {
				res.Missing++
			}
		}
		return res
	}

	res.Header = out[:HeaderLen]
	res.Payload = out[HeaderLen:]
	for _, m := range missing[HeaderLen:] {
		if m {
			res.Missing++
		}
	}
	return res
}

// Accumulator collects notification chunks until they form a complete frame.
// It is not safe for concurrent use.
type Accumulator struct {
	buf []byte
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends chunk and decodes everything received so far.
func (a *Accumulator) Add(chunk []byte) (Result, bool) {
	a.buf = append(a.buf, chunk...)
	res := Decode(a.buf)
	return res, res.Complete()
}

// Len returns the number of buffered bytes.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Bytes returns a copy of the buffered bytes.
func (a *Accumulator) Bytes() []byte {
	return append([]byte(nil), a.buf...)
}

// Reset discards all buffered bytes.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
}
