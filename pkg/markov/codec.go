package markov

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// The binary snapshot layout, all integers little-endian int32:
//
//	token_count
//	token_count NUL-terminated UTF-8 strings, in index order
//	start_count, start_count indices
//	end_count, end_count indices
//	token_count transition records, in index order:
//	    entry_count, entry_count (target_index, count) pairs
//
// Token indices are implicit: the k-th string and the k-th transition record
// both belong to token k.

var (
	// ErrUnexpectedEndOfInput is returned when a snapshot ends before all of its
	// declared content has been read.
	ErrUnexpectedEndOfInput = errors.New("markov: unexpected end of input")
	// ErrInvalidUTF8 is returned when a token being encoded or decoded is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("markov: token is not valid utf-8")
	// ErrMalformed is returned when a snapshot is structurally invalid: negative
	// lengths, out-of-range indices, non-positive counts, duplicates or trailing
	// bytes.
	ErrMalformed = errors.New("markov: malformed snapshot")
	// ErrNulInToken is returned when encoding a token that contains a NUL byte,
	// which would corrupt the string terminator.
	ErrNulInToken = errors.New("markov: token contains a nul byte")
	// ErrTooLarge is returned when a length or count does not fit in an int32.
	ErrTooLarge = errors.New("markov: value does not fit in int32")
)

// maxPrealloc caps how many elements are allocated up front from a length
// read off the wire, so a corrupt header cannot force a huge allocation.
const maxPrealloc = 1 << 16

// Encode writes c to w in the binary snapshot format.
func Encode(w io.Writer, c *Chain) error {
	e := &encoder{w: bufio.NewWriter(w)}

	if err := e.writeLen(len(c.tokens)); err != nil {
		return fmt.Errorf("token count: %w", err)
	}
	for i, token := range c.tokens {
		if strings.IndexByte(token, 0) >= 0 {
			return fmt.Errorf("token %d: %w", i, ErrNulInToken)
		}
		if !utf8.ValidString(token) {
			return fmt.Errorf("token %d: %w", i, ErrInvalidUTF8)
		}
		e.writeString(token)
	}

	if err := e.writeList(c.starts); err != nil {
		return fmt.Errorf("start set: %w", err)
	}
	if err := e.writeList(c.ends); err != nil {
		return fmt.Errorf("end set: %w", err)
	}

	for i, choices := range c.next {
		if err := e.writeLen(len(choices)); err != nil {
			return fmt.Errorf("transitions of token %d: %w", i, err)
		}
		for _, choice := range choices {
			if err := e.writeLen(choice.Id); err != nil {
				return fmt.Errorf("transitions of token %d: %w", i, err)
			}
			if err := e.writeLen(choice.Freq); err != nil {
				return fmt.Errorf("transitions of token %d: %w", i, err)
			}
		}
	}

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *Chain) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	w   *bufio.Writer
	buf [4]byte
	err error
}

func (e *encoder) writeLen(n int) error {
	if n < 0 || n > math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrTooLarge, n)
	}
	if e.err != nil {
		return e.err
	}
	binary.LittleEndian.PutUint32(e.buf[:], uint32(int32(n)))
	_, e.err = e.w.Write(e.buf[:])
	return e.err
}

func (e *encoder) writeString(s string) {
	if e.err != nil {
		return
	}
	if _, e.err = e.w.WriteString(s); e.err != nil {
		return
	}
	e.err = e.w.WriteByte(0)
}

func (e *encoder) writeList(ids []int) error {
	if err := e.writeLen(len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.writeLen(id); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a complete binary snapshot from r. It either returns a fully
// validated Chain or an error wrapping ErrUnexpectedEndOfInput,
// ErrInvalidUTF8, ErrMalformed or the underlying read error; it never returns
// a partially populated chain. The snapshot must be the whole remaining
// content of r.
func Decode(r io.Reader) (*Chain, error) {
	d := &decoder{r: bufio.NewReader(r)}
	c, err := d.decode()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. On error c is left
// unchanged.
func (c *Chain) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

type decoder struct {
	r      *bufio.Reader
	offset int64
	buf    [4]byte
}

func (d *decoder) decode() (*Chain, error) {
	c := newChain()

	n, err := d.readLen()
	if err != nil {
		return nil, fmt.Errorf("reading token count: %w", err)
	}

	c.tokens = make([]string, 0, min(n, maxPrealloc))
	for i := range n {
		token, err := d.readString()
		if err != nil {
			return nil, fmt.Errorf("reading token %d: %w", i, err)
		}
		if _, dup := c.ids[token]; dup {
			return nil, fmt.Errorf("reading token %d: %w: duplicate token %q", i, ErrMalformed, token)
		}
		c.ids[token] = i
		c.tokens = append(c.tokens, token)
	}

	if c.starts, err = d.readSet(n); err != nil {
		return nil, fmt.Errorf("reading start set: %w", err)
	}
	if c.ends, err = d.readSet(n); err != nil {
		return nil, fmt.Errorf("reading end set: %w", err)
	}

	c.next = make([][]ChainToken, n)
	for i := range n {
		if c.next[i], err = d.readRecord(n); err != nil {
			return nil, fmt.Errorf("reading transitions of token %d: %w", i, err)
		}
	}

	if _, err := d.r.ReadByte(); err == nil {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrMalformed, d.offset)
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}

	return c, nil
}

func (d *decoder) readInt32() (int32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w at offset %d", ErrUnexpectedEndOfInput, d.offset)
		}
		return 0, err
	}
	d.offset += 4
	return int32(binary.LittleEndian.Uint32(d.buf[:])), nil
}

// readLen reads a non-negative int32.
func (d *decoder) readLen() (int, error) {
	at := d.offset
	v, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative value %d at offset %d", ErrMalformed, v, at)
	}
	return int(v), nil
}

// readIndex reads a token index that must be below n.
func (d *decoder) readIndex(n int) (int, error) {
	at := d.offset
	id, err := d.readLen()
	if err != nil {
		return 0, err
	}
	if id >= n {
		return 0, fmt.Errorf("%w: index %d out of range [0, %d) at offset %d", ErrMalformed, id, n, at)
	}
	return id, nil
}

func (d *decoder) readString() (string, error) {
	at := d.offset
	b, err := d.r.ReadBytes(0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: unterminated string at offset %d", ErrUnexpectedEndOfInput, at)
		}
		return "", err
	}
	d.offset += int64(len(b))
	b = b[:len(b)-1]
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w at offset %d", ErrInvalidUTF8, at)
	}
	return string(b), nil
}

func (d *decoder) readSet(n int) ([]int, error) {
	count, err := d.readLen()
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, min(count, maxPrealloc))
	seen := make(map[int]struct{}, min(count, maxPrealloc))
	for range count {
		id, err := d.readIndex(n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrMalformed, id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *decoder) readRecord(n int) ([]ChainToken, error) {
	count, err := d.readLen()
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int, min(count, maxPrealloc))
	for range count {
		id, err := d.readIndex(n)
		if err != nil {
			return nil, err
		}
		at := d.offset
		freq, err := d.readLen()
		if err != nil {
			return nil, err
		}
		if freq < 1 {
			return nil, fmt.Errorf("%w: non-positive count %d at offset %d", ErrMalformed, freq, at)
		}
		if _, dup := counts[id]; dup {
			return nil, fmt.Errorf("%w: duplicate target %d", ErrMalformed, id)
		}
		counts[id] = freq
	}
	return sortedChoices(counts), nil
}
