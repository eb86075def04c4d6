package npy

import (
	"bytes"
	"encoding/binary"
	"math/bits"
	"strconv"
	"strings"
)

// Magic is the fixed prefix of every .npy stream.
var Magic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// ArrayDescriptor is the parsed form of an .npy header.
type ArrayDescriptor struct {
	Shape        []int
	FortranOrder bool
	DType        DType
	DataOffset   int
	Major, Minor uint8
}

// Rank returns the number of dimensions.
func (d ArrayDescriptor) Rank() int { return len(d.Shape) }

// Len returns the element count (product of Shape). ok is false when the
// product overflows.
func (d ArrayDescriptor) Len() (n int, ok bool) {
	total := uint64(1)
	for _, dim := range d.Shape {
		if dim < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(total, uint64(dim))
		if hi != 0 || lo > uint64(maxInt) {
			return 0, false
		}
		total = lo
	}
	return int(total), true
}

// PayloadSize returns Len() * DType.Size, with overflow reported via ok.
func (d ArrayDescriptor) PayloadSize() (n int, ok bool) {
	count, ok := d.Len()
	if !ok {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(count), uint64(d.DType.Size))
	if hi != 0 || lo > uint64(maxInt) {
		return 0, false
	}
	return int(lo), true
}

const maxInt = int(^uint(0) >> 1)

// ParseHeader reads the magic, version, header length and header dict at
// the start of buf.
func ParseHeader(buf []byte) (ArrayDescriptor, error) {
	var desc ArrayDescriptor

	if len(buf) < len(Magic) || !bytes.Equal(buf[:len(Magic)], Magic) {
		return desc, Errorf(ErrBadMagic, "expected \\x93NUMPY prefix")
	}
	if len(buf) < 10 {
		return desc, Errorf(ErrTruncated, "header preamble is %d bytes", len(buf))
	}

	desc.Major, desc.Minor = buf[6], buf[7]
	var headerLen, start int
	switch desc.Major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(buf[8:10]))
		start = 10
	case 2:
		if len(buf) < 12 {
			return desc, Errorf(ErrTruncated, "v2 header preamble is %d bytes", len(buf))
		}
		headerLen = int(binary.LittleEndian.Uint32(buf[8:12]))
		start = 12
	default:
		return desc, Errorf(ErrUnsupportedVersion, "version %d.%d", desc.Major, desc.Minor)
	}
	if headerLen < 0 || headerLen > len(buf)-start {
		return desc, Errorf(ErrTruncated, "header declares %d bytes, %d available", headerLen, len(buf)-start)
	}
	desc.DataOffset = start + headerLen

	fields, err := parseHeaderDict(string(buf[start:desc.DataOffset]))
	if err != nil {
		return desc, err
	}

	descr, ok := fields["descr"]
	if !ok {
		return desc, &FormatError{Kind: ErrMissingField, Field: "descr"}
	}
	if code, quoted := unquote(descr); quoted {
		desc.DType = ParseDType(code)
	} else {
		// Structured dtypes are lists of tuples; keep the raw text for the error.
		desc.DType = DType{Code: descr}
	}

	fortran, ok := fields["fortran_order"]
	if !ok {
		return desc, &FormatError{Kind: ErrMissingField, Field: "fortran_order"}
	}
	switch fortran {
	case "True":
		desc.FortranOrder = true
	case "False":
		desc.FortranOrder = false
	default:
		return desc, Errorf(ErrMalformedHeader, "fortran_order is %q", fortran)
	}

	shape, ok := fields["shape"]
	if !ok {
		return desc, &FormatError{Kind: ErrMissingField, Field: "shape"}
	}
	desc.Shape, err = parseShape(shape)
	if err != nil {
		return desc, err
	}
	return desc, nil
}

// parseHeaderDict extracts the top-level key/value pairs of a Python dict
// literal. Values are returned as trimmed source text.
func parseHeaderDict(text string) (map[string]string, error) {
	open := strings.IndexByte(text, '{')
	if open < 0 || strings.TrimSpace(text[:open]) != "" {
		return nil, Errorf(ErrMalformedHeader, "header is not a dict literal")
	}
	end, ok := matchClose(text, open)
	if !ok {
		return nil, Errorf(ErrMalformedHeader, "unterminated header dict")
	}

	fields := make(map[string]string, 3)
	for _, entry := range splitTopLevel(text[open+1:end], ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kv := splitTopLevel(entry, ':')
		if len(kv) < 2 {
			return nil, Errorf(ErrMalformedHeader, "dict entry %q has no value", entry)
		}
		key, quoted := unquote(strings.TrimSpace(kv[0]))
		if !quoted {
			return nil, Errorf(ErrMalformedHeader, "dict key %q is not a string", kv[0])
		}
		value := strings.TrimSpace(entry[len(kv[0])+1:])
		fields[key] = value
	}
	return fields, nil
}

// matchClose returns the index of the bracket that brings the nesting depth
// opened at text[open] back to zero, skipping quoted strings.
func matchClose(text string, open int) (int, bool) {
	depth := 0
	var quote byte
	escaped := false
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// splitTopLevel splits s on sep where sep is outside quotes and brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	escaped := false
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '{' || c == '(' || c == '[':
			depth++
		case c == '}' || c == ')' || c == ']':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

// unquote strips matching single or double quotes and resolves backslash
// escapes. quoted is false when s is not a string literal.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return s, false
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return s, false
	}
	body := s[1 : len(s)-1]
	if strings.IndexByte(body, '\\') < 0 {
		return body, true
	}
	var b strings.Builder
	escaped := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if !escaped && c == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteByte(c)
	}
	return b.String(), true
}

// parseShape parses a tuple literal such as "(5,)" or "(100, 3)".
func parseShape(text string) ([]int, error) {
	if len(text) < 2 || text[0] != '(' || text[len(text)-1] != ')' {
		return nil, Errorf(ErrMalformedHeader, "shape %q is not a tuple", text)
	}
	var shape []int
	parts := strings.Split(text[1:len(text)-1], ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			// Only a single trailing comma, as in "(5,)", leaves an empty element.
			if i == len(parts)-1 {
				continue
			}
			return nil, Errorf(ErrMalformedHeader, "empty dimension in shape %s", text)
		}
		part = strings.TrimSuffix(part, "L")
		dim, err := strconv.Atoi(part)
		if err != nil || dim < 0 {
			return nil, Errorf(ErrInvalidShape, "dimension %q in %s", part, text)
		}
		shape = append(shape, dim)
	}
	if len(shape) == 0 {
		return nil, Errorf(ErrInvalidShape, "scalar shape %s has no dimensions", text)
	}
	return shape, nil
}
