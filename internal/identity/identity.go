// Package identity implements content-addressed node identifiers and
// source spans, the foundation every other CodePrism component builds
// identity on.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// NodeId is a 16-byte content-addressed identifier. It is derived from
// (repo id, file path, node kind, name, span bytes); two nodes built
// from identical inputs always receive identical ids.
type NodeId [16]byte

// Zero is the invalid, unset NodeId.
var Zero NodeId

// NewNodeId computes a NodeId from its content inputs. The same inputs
// always yield the same id (spec.md §8, property 1).
func NewNodeId(repoID, filePath, kind, name string, span Span) NodeId {
	lo := xxhash.New()
	fmt.Fprintf(lo, "%s\x00%s\x00%s\x00%s\x00", repoID, filePath, kind, name)
	writeSpan(lo, span)

	hi := xxhash.New()
	// Salt the second pass so the two halves aren't trivially related;
	// still fully deterministic given identical inputs.
	fmt.Fprintf(hi, "codeprism-node\x00%s\x00%s\x00%s\x00%s\x00", name, kind, filePath, repoID)
	writeSpan(hi, span)

	var id NodeId
	loSum := lo.Sum64()
	hiSum := hi.Sum64()
	for i := 0; i < 8; i++ {
		id[i] = byte(loSum >> (8 * i))
		id[8+i] = byte(hiSum >> (8 * i))
	}
	return id
}

func writeSpan(h *xxhash.Digest, s Span) {
	fmt.Fprintf(h, "%d:%d:%d:%d:%d:%d",
		s.StartByte, s.EndByte, s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

// IsValid reports whether the id is anything other than the zero value.
func (id NodeId) IsValid() bool {
	return id != Zero
}

// String returns the lowercase hex encoding of the id.
func (id NodeId) String() string {
	return hex.EncodeToString(id[:])
}

// ParseNodeId decodes the hex encoding produced by NodeId.String, the
// form MCP tool clients pass node ids back in (spec.md §4.11: tool
// inputs reference symbols found by an earlier search_symbols call).
func ParseNodeId(s string) (NodeId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("identity: invalid node id %q: %w", s, err)
	}
	if len(b) != len(Zero) {
		return Zero, fmt.Errorf("identity: node id %q has wrong length (want %d bytes, got %d)", s, len(Zero), len(b))
	}
	var id NodeId
	copy(id[:], b)
	return id, nil
}

// Span is a byte range plus 1-based line/column coordinates for its
// start and end. Line and column numbers are 1-based throughout.
type Span struct {
	StartByte   int
	EndByte     int
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	if s.EndByte < s.StartByte {
		return 0
	}
	return s.EndByte - s.StartByte
}

// Contains reports whether the line (1-based) falls within the span.
func (s Span) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}
