package api

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is a single satisfiable byte range within an object.
type byteRange struct {
	Start int64
	End   int64 // inclusive
}

func (r byteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range response header value.
func (r byteRange) ContentRange(totalSize int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, totalSize)
}

// errUnsatisfiableRange marks a syntactically valid range outside the
// object.
var errUnsatisfiableRange = fmt.Errorf("requested range not satisfiable")

// parseRange parses a single-range HTTP Range header (RFC 7233) against an
// object of the given size. An empty header returns (nil, nil); the gateway
// does not serve multipart ranges.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return nil, fmt.Errorf("invalid range unit")
	}

	spec := strings.TrimSpace(strings.TrimPrefix(header, "bytes="))
	if strings.Contains(spec, ",") {
		return nil, fmt.Errorf("multipart ranges are not supported")
	}

	start, end, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, fmt.Errorf("invalid range spec: %s", spec)
	}

	var r byteRange
	switch {
	case start == "":
		// Suffix range: "-500" means the last 500 bytes.
		suffix, err := strconv.ParseInt(end, 10, 64)
		if err != nil || suffix <= 0 {
			return nil, fmt.Errorf("invalid suffix range: %s", spec)
		}
		if suffix > size {
			suffix = size
		}
		r.Start = size - suffix
		r.End = size - 1
	case end == "":
		// Open-ended range: "100-" means from 100 to EOF.
		s, err := strconv.ParseInt(start, 10, 64)
		if err != nil || s < 0 {
			return nil, fmt.Errorf("invalid start position: %s", spec)
		}
		r.Start = s
		r.End = size - 1
	default:
		s, err1 := strconv.ParseInt(start, 10, 64)
		e, err2 := strconv.ParseInt(end, 10, 64)
		if err1 != nil || err2 != nil || s < 0 || e < s {
			return nil, fmt.Errorf("invalid range: %s", spec)
		}
		r.Start = s
		r.End = e
	}

	if r.Start >= size {
		return nil, errUnsatisfiableRange
	}
	if r.End >= size {
		r.End = size - 1
	}
	return &r, nil
}
