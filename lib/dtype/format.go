package dtype

import (
	"fmt"
	"strconv"
	"strings"
)

// maxFormatted is the number of elements Format prints before eliding the rest
const maxFormatted = 16

// Format renders a value of type t for humans. Elements are separated by ",".
func Format(t Type, buf []byte) string {
	switch t.Class {
	case ClassString:
		return strconv.Quote(strings.TrimRight(string(buf), "\x00"))
	case ClassVLen:
		if t.Base == nil {
			return fmt.Sprintf("%x", buf)
		}
		return "[" + formatElements(*t.Base, buf) + "]"
	default:
		return formatElements(t, buf)
	}
}

func formatElements(t Type, buf []byte) string {
	size := int(t.Size)
	if size == 0 || len(buf)%size != 0 {
		return fmt.Sprintf("%x", buf)
	}

	n := len(buf) / size
	parts := make([]string, 0, min(n, maxFormatted)+1)
	for i := 0; i < n && i < maxFormatted; i++ {
		elem := buf[i*size : (i+1)*size]
		switch {
		case t.Class == ClassFloat:
			parts = append(parts, strconv.FormatFloat(readFloat(t, elem), 'g', -1, 64))
		case t.Class == ClassInteger && t.Signed:
			parts = append(parts, strconv.FormatInt(readInt(t, elem), 10))
		case t.Class == ClassInteger:
			parts = append(parts, strconv.FormatUint(readUint(t, elem), 10))
		default:
			parts = append(parts, fmt.Sprintf("%x", elem))
		}
	}
	if n > maxFormatted {
		parts = append(parts, fmt.Sprintf("... (%d more)", n-maxFormatted))
	}
	return strings.Join(parts, ",")
}

// ParseValue encodes s as a value of type t. Numbers and vlen sequences are
// comma separated lists, strings are taken verbatim (fixed strings are padded).
func ParseValue(t Type, s string) ([]byte, error) {
	switch t.Class {
	case ClassString:
		if t.Size == 0 {
			return []byte(s), nil
		}
		if len(s) > int(t.Size) {
			return nil, fmt.Errorf("%w: %q is longer than %s", ErrConversion, s, t)
		}
		buf := make([]byte, t.Size)
		copy(buf, s)
		return buf, nil
	case ClassVLen:
		if t.Base == nil {
			return nil, fmt.Errorf("%w: vlen without base type", ErrConversion)
		}
		if strings.TrimSpace(s) == "" {
			return []byte{}, nil
		}
		return parseElements(*t.Base, strings.Split(s, ","))
	default:
		return parseElements(t, strings.Split(s, ","))
	}
}

func parseElements(t Type, fields []string) ([]byte, error) {
	if t.Class != ClassInteger && t.Class != ClassFloat {
		return nil, fmt.Errorf("%w: can not parse elements of %s", ErrConversion, t)
	}

	buf := make([]byte, len(fields)*int(t.Size))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		elem := buf[i*int(t.Size) : (i+1)*int(t.Size)]

		switch {
		case t.Class == ClassFloat:
			v, err := strconv.ParseFloat(f, int(t.Size)*8)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConversion, err)
			}
			writeFloat(t, elem, v)
		case t.Signed:
			v, err := strconv.ParseInt(f, 0, int(t.Size)*8)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConversion, err)
			}
			writeInt(t, elem, v)
		default:
			v, err := strconv.ParseUint(f, 0, int(t.Size)*8)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConversion, err)
			}
			writeUint(t, elem, v)
		}
	}
	return buf, nil
}
