package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultMaxSize is the upload size ceiling in bytes.
const DefaultMaxSize = 10 << 20 // 10 MiB

// Input is a raw upload before extraction.
type Input struct {
	Data      []byte
	MediaType string // Declared by the submitter, e.g. "text/plain"
	FileName  string
}

// Extractor normalizes raw uploads into plain UTF-8 text by declared media type.
type Extractor struct {
	maxSize int
	logger  *slog.Logger
}

// NewExtractor creates an extractor with the given size ceiling.
// If maxSize is 0, DefaultMaxSize is used.
func NewExtractor(maxSize int, logger *slog.Logger) *Extractor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{maxSize: maxSize, logger: logger}
}

// Extract converts the upload into normalized plain text.
// Size and media-type validation happens before any parsing, so rejected
// inputs never reach a format-specific decoder.
func (e *Extractor) Extract(in Input) (string, error) {
	if len(in.Data) == 0 {
		return "", ErrEmptyDocument
	}
	if len(in.Data) > e.maxSize {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(in.Data), e.maxSize)
	}

	mediaType := in.MediaType
	if parsed, _, err := mime.ParseMediaType(in.MediaType); err == nil {
		mediaType = parsed
	}

	var (
		raw string
		err error
	)
	switch mediaType {
	case "text/plain", "":
		raw = string(in.Data)
	case "text/markdown":
		raw, err = flattenMarkdown(in.Data)
	case "application/pdf":
		raw, err = extractPDF(in.Data)
	default:
		if strings.HasPrefix(mediaType, "text/") {
			// Unrecognized but textual: best-effort decode, never a hard failure.
			e.logger.Warn("unrecognized textual media type, decoding as UTF-8",
				"media_type", mediaType, "file", in.FileName)
			raw = string(in.Data)
		} else {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, in.FileName, err)
	}

	normalized := Normalize(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: no extractable text in %s", ErrEmptyDocument, in.FileName)
	}
	return normalized, nil
}

// Normalize unifies line endings, drops invalid UTF-8 sequences and trims
// surrounding whitespace.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimPrefix(s, "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.TrimSpace(s)
}

// flattenMarkdown walks the goldmark AST and collects text content,
// separating block-level nodes with blank lines. Formatting is discarded;
// only the readable text survives.
func flattenMarkdown(source []byte) (string, error) {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			buf.WriteByte('\n')
		case *ast.AutoLink:
			buf.Write(node.URL(source))
		default:
			if n.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractPDF pulls plain text out of a page-based PDF document.
// Any reader error surfaces as a whole-document failure; there is no
// partial extraction.
func extractPDF(data []byte) (string, error) {
	readerAt := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
