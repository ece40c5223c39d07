package suggest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

var (
	// ErrNoList means the reply contained no bracketed list.
	ErrNoList = errors.New("no list found in reply")
	// ErrNotStringList means the list held something other than string literals.
	ErrNotStringList = errors.New("list does not contain only strings")
)

var listPattern = regexp.MustCompile(`(?s)\[.*\]`)

// ParseList extracts the span from the first '[' to the last ']' and reads
// it as a list of string literals. Both JSON and Python literal syntax are
// accepted: single, double or triple quotes, backslash escapes, u/r
// prefixes, adjacent literal concatenation and a trailing comma.
func ParseList(reply string) ([]string, error) {
	span := listPattern.FindString(reply)
	if span == "" {
		return nil, ErrNoList
	}
	p := &literalParser{src: span}
	return p.list()
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case '#':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) list() ([]string, error) {
	p.skipSpace()
	if p.peek() != '[' {
		return nil, p.errorf("expected '['")
	}
	p.pos++
	out := []string{}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			break
		}
		s, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			p.skipSpace()
			if p.pos != len(p.src) {
				return nil, p.errorf("unexpected trailing content")
			}
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ']'")
		}
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing content")
	}
	return out, nil
}

// stringLiteral reads one or more adjacent string literals and joins them.
func (p *literalParser) stringLiteral() (string, error) {
	var b strings.Builder
	n := 0
	for {
		raw := false
		start := p.pos
		for p.pos < len(p.src) && strings.IndexByte("uUrRbB", p.src[p.pos]) >= 0 {
			if c := p.src[p.pos]; c == 'r' || c == 'R' {
				raw = true
			}
			p.pos++
		}
		q := p.peek()
		if q != '\'' && q != '"' {
			p.pos = start
			if n == 0 {
				return "", fmt.Errorf("%w: %s", ErrNotStringList, p.errorf("expected string literal"))
			}
			return b.String(), nil
		}
		if err := p.quoted(&b, q, raw); err != nil {
			return "", err
		}
		n++
		p.skipSpace()
	}
}

func (p *literalParser) quoted(b *strings.Builder, q byte, raw bool) error {
	delim := string(q)
	if strings.HasPrefix(p.src[p.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	p.pos += len(delim)
	for {
		if p.pos >= len(p.src) {
			return p.errorf("unterminated string")
		}
		if strings.HasPrefix(p.src[p.pos:], delim) {
			p.pos += len(delim)
			return nil
		}
		c := p.src[p.pos]
		if c == '\n' && len(delim) == 1 {
			return p.errorf("newline in string")
		}
		if c != '\\' {
			b.WriteByte(c)
			p.pos++
			continue
		}
		if p.pos+1 >= len(p.src) {
			return p.errorf("dangling escape")
		}
		e := p.src[p.pos+1]
		if raw {
			b.WriteByte('\\')
			b.WriteByte(e)
			p.pos += 2
			continue
		}
		p.pos += 2
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"', '/':
			b.WriteByte(e)
		case '\n':
			// line continuation
		case 'x':
			r, err := p.hex(2)
			if err != nil {
				return err
			}
			b.WriteRune(r)
		case 'u':
			r, err := p.hex(4)
			if err != nil {
				return err
			}
			if utf16.IsSurrogate(r) && strings.HasPrefix(p.src[p.pos:], `\u`) {
				p.pos += 2
				lo, err := p.hex(4)
				if err != nil {
					return err
				}
				r = utf16.DecodeRune(r, lo)
			}
			b.WriteRune(r)
		case 'U':
			r, err := p.hex(8)
			if err != nil {
				return err
			}
			b.WriteRune(r)
		default:
			// unknown escapes are kept verbatim
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
}

func (p *literalParser) hex(n int) (rune, error) {
	if p.pos+n > len(p.src) {
		return 0, p.errorf("short escape")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return 0, p.errorf("bad escape %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	return rune(v), nil
}
