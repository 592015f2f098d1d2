// Package contextpack builds the bounded project snapshot that is sent to the model.
package contextpack

import "bytes"

const (
	sampleSize          = 1024
	maxControlByteRatio = 0.30
)

// IsProbablyText reports whether content looks like displayable text.
// Only the first 1024 bytes are inspected; any NUL byte marks the buffer as binary.
func IsProbablyText(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return false
	}

	sample := content
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	control := 0
	for _, b := range sample {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			control++
		}
	}
	return float64(control)/float64(len(sample)) < maxControlByteRatio
}
