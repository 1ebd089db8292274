package httpchunk

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/memfault/diagsdk/internal/constants"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

type parserState int

const (
	stateStatusLine parserState = iota
	stateHeader
	stateBody
	stateDone
)

// Parser is a streaming HTTP response parser driven purely by Write
// calls, so it never blocks on a socket read of its own: the caller
// feeds it whatever bytes arrive, in whatever sizes arrive. It only
// interprets the status line and the Content-Length header; every
// other header is skipped.
type Parser struct {
	state       parserState
	lineBuf     []byte
	statusCode  int
	contentLen  int
	haveLen     bool
	body        []byte
	bodyWant    int
	processed   int
	err         error
}

// NewParser creates an empty Parser ready to receive response bytes.
func NewParser() *Parser {
	return &Parser{}
}

// Write feeds response bytes into the state machine. It implements
// io.Writer so it can sit at the end of a transport read loop. Once the
// parser has failed, every subsequent Write returns the same error
// without consuming further input.
func (p *Parser) Write(data []byte) (int, error) {
	total := len(data)
	if p.err != nil {
		return 0, p.err
	}

	for len(data) > 0 && p.state != stateDone {
		switch p.state {
		case stateStatusLine, stateHeader:
			line, rest, ok := p.takeLine(data)
			if !ok {
				if p.err != nil {
					return total, p.err
				}
				data = nil
				break
			}
			data = rest
			if p.state == stateStatusLine {
				code, err := parseStatusLine(line)
				if err != nil {
					p.fail(err)
					return total, err
				}
				p.statusCode = code
				p.state = stateHeader
			} else if len(line) == 0 {
				p.enterBody()
			} else if n, ok := parseContentLength(line); ok {
				p.contentLen = n
				p.haveLen = true
			}
		case stateBody:
			need := p.bodyWant - len(p.body)
			take := len(data)
			if take > need {
				take = need
			}
			p.body = append(p.body, data[:take]...)
			data = data[take:]
			if len(p.body) >= p.bodyWant {
				p.state = stateDone
			}
		}
	}
	p.processed += total - len(data)
	return total, nil
}

// takeLine extracts one CRLF- or LF-terminated line from the front of
// data, buffering a partial line across calls. ok is false if no
// newline has arrived yet (more Write calls are needed).
func (p *Parser) takeLine(data []byte) (line, rest []byte, ok bool) {
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		if len(p.lineBuf)+len(data) > constants.MaxHTTPLineLen {
			err := sdkerr.New("httpchunk.Parser", sdkerr.CodeTruncated, "header line exceeds MaxHTTPLineLen")
			p.fail(err)
			return nil, nil, false
		}
		p.lineBuf = append(p.lineBuf, data...)
		return nil, nil, false
	}
	raw := data[:idx]
	rest = data[idx+1:]
	full := append(p.lineBuf, raw...)
	p.lineBuf = nil
	if len(full) > 0 && full[len(full)-1] == '\r' {
		full = full[:len(full)-1]
	}
	if len(full) > constants.MaxHTTPLineLen {
		err := sdkerr.New("httpchunk.Parser", sdkerr.CodeTruncated, "header line exceeds MaxHTTPLineLen")
		p.fail(err)
		return nil, nil, false
	}
	return full, rest, true
}

func (p *Parser) enterBody() {
	if !p.haveLen || p.contentLen == 0 {
		p.state = stateDone
		return
	}
	p.body = make([]byte, 0, p.contentLen)
	p.bodyWant = p.contentLen
	p.state = stateBody
}

func (p *Parser) fail(err error) {
	p.err = err
	p.state = stateDone
}

// Done reports whether the parser has reached a terminal state,
// successfully or not.
func (p *Parser) Done() bool { return p.state == stateDone }

// StatusCode returns the parsed three-digit status code.
func (p *Parser) StatusCode() int { return p.statusCode }

// Body returns the response body collected so far.
func (p *Parser) Body() []byte { return p.body }

// BytesProcessed returns the number of input bytes the parser has
// consumed so far. Bytes passed after the response is complete, and the
// input of a Write that returns an error, are not counted.
func (p *Parser) BytesProcessed() int { return p.processed }

// parseStatusLine validates "HTTP/<d>.<d> <3 digits>..." positionally,
// rather than with a regexp, since the grammar is fixed and tiny.
func parseStatusLine(line []byte) (int, error) {
	const prefix = "HTTP/"
	const minLen = len(prefix) + 1 /*major*/ + 1 /*dot*/ + 1 /*minor*/ + 1 /*space*/ + 3 /*code*/
	fail := sdkerr.New("httpchunk.Parser", sdkerr.CodeInvalidInput, "malformed status line")

	if len(line) < minLen || string(line[:len(prefix)]) != prefix {
		return 0, fail
	}
	i := len(prefix)
	if !isDigit(line[i]) {
		return 0, fail
	}
	i++
	if line[i] != '.' {
		return 0, fail
	}
	i++
	if !isDigit(line[i]) {
		return 0, fail
	}
	i++
	if line[i] != ' ' {
		return 0, fail
	}
	i++
	if i+3 > len(line) || !isDigit(line[i]) || !isDigit(line[i+1]) || !isDigit(line[i+2]) {
		return 0, fail
	}
	code := int(line[i]-'0')*100 + int(line[i+1]-'0')*10 + int(line[i+2]-'0')
	return code, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// parseContentLength recognizes a "Content-Length: <n>" header line
// case-insensitively; every other header is returned as not-ok and
// otherwise ignored by the caller.
func parseContentLength(line []byte) (int, bool) {
	s := string(line)
	idx := strings.IndexByte(s, ':')
	if idx == -1 {
		return 0, false
	}
	name := strings.TrimSpace(s[:idx])
	if !strings.EqualFold(name, "Content-Length") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[idx+1:]))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
