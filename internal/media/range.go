package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span of a file.
type ByteRange struct {
	First int64
	Last  int64
}

func (b ByteRange) Length() int64 { return b.Last - b.First + 1 }

// Header renders the Content-Range value for a file of the given size.
func (b ByteRange) Header(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.First, b.Last, size)
}

// ParseRange resolves a Range header against a file size. An empty header
// yields ok=false with no error. Only the first span of a multi-range request
// is honored.
func ParseRange(header string, size int64) (br ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}
	units, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}
	units, _, _ = strings.Cut(units, ",")
	first, last, found := strings.Cut(strings.TrimSpace(units), "-")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		if size == 0 {
			return ByteRange{}, false, ErrUnsatisfiable
		}
		return ByteRange{First: max(size-n, 0), Last: size - 1}, true, nil
	}

	br.First, err = strconv.ParseInt(first, 10, 64)
	if err != nil || br.First < 0 {
		return ByteRange{}, false, ErrInvalidRange
	}
	br.Last = size - 1
	if last != "" {
		br.Last, err = strconv.ParseInt(last, 10, 64)
		if err != nil {
			return ByteRange{}, false, ErrInvalidRange
		}
	}

	if br.First > br.Last || br.First >= size {
		return ByteRange{}, false, ErrUnsatisfiable
	}
	br.Last = min(br.Last, size-1)
	return br, true, nil
}
