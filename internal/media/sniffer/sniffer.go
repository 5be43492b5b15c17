package sniffer

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/h2non/filetype"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
)

type MediaType string

const (
	TypeSVG   MediaType = "svg"
	TypeOther MediaType = "other"
)

const headSize = 512

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

func (r Result) IsSVG() bool {
	return r.Type == TypeSVG
}

func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, headSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

// DetectHead classifies the first bytes of an upload. Binary formats known
// to filetype win; otherwise the head is scanned as XML for an svg root.
func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return Result{Type: TypeOther, MIME: kind.MIME.Value}, nil
	}

	if isSVG(head) {
		return Result{Type: TypeSVG, MIME: "image/svg+xml"}, nil
	}

	return Result{}, ErrUnknownType
}

// isSVG skips the prolog, comments and doctype and reports whether the
// first element is an svg element.
func isSVG(head []byte) bool {
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	lexer := xml.NewLexer(parse.NewInputBytes(head))

	inProcInst := false
	for {
		tt, data := lexer.Next()
		switch tt {
		case xml.ErrorToken:
			return false
		case xml.StartTagPIToken:
			inProcInst = true
		case xml.StartTagClosePIToken:
			inProcInst = false
		case xml.AttributeToken:
			if !inProcInst {
				return false
			}
		case xml.CommentToken, xml.DOCTYPEToken:
		case xml.TextToken:
			if len(bytes.TrimSpace(data)) > 0 {
				return false
			}
		case xml.StartTagToken:
			name := string(lexer.Text())
			if i := strings.LastIndexByte(name, ':'); i >= 0 {
				name = name[i+1:]
			}
			return strings.EqualFold(name, "svg")
		default:
			return false
		}
	}
}

func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
