package feed

import (
	"bytes"
	"fmt"
)

// stripCallback unwraps a JSONP body of the form `cb(<json>)`, tolerating
// leading/trailing padding and a trailing semicolon. Plain JSON bodies
// pass through unchanged.
func stripCallback(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed, nil
	}

	open := bytes.IndexByte(trimmed, '(')
	end := bytes.LastIndexByte(trimmed, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("malformed jsonp body")
	}
	inner := bytes.TrimSpace(trimmed[open+1 : end])
	if len(inner) == 0 {
		return nil, fmt.Errorf("empty jsonp payload")
	}
	return inner, nil
}
