package runid

import (
	"fmt"
	"regexp"
	"strconv"
)

// segmentRegex parses the trailing `name` or `name[index]` segment of an
// identifier or reference.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// nameRegex validates the bare type and name segments.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Parse creates an Address by parsing its canonical string representation,
// e.g. `step.exec.fit[2]` or `resource.scratch_dir.work`.
func Parse(rawID string) (Address, error) {
	if rawID == "" {
		return Address{}, fmt.Errorf("identifier cannot be empty")
	}

	parts := splitSegments(rawID)
	if len(parts) != 3 {
		return Address{}, fmt.Errorf("invalid identifier %q: want kind.type.name[index]", rawID)
	}

	var kind Kind
	switch parts[0] {
	case string(KindStep):
		kind = KindStep
	case string(KindResource):
		kind = KindResource
	default:
		return Address{}, fmt.Errorf("invalid identifier %q: unknown kind %q", rawID, parts[0])
	}

	if !nameRegex.MatchString(parts[1]) {
		return Address{}, fmt.Errorf("invalid identifier %q: bad type segment %q", rawID, parts[1])
	}

	name, index, err := parseTail(parts[2])
	if err != nil {
		return Address{}, fmt.Errorf("invalid identifier %q: %w", rawID, err)
	}

	return Address{Kind: kind, Type: parts[1], Name: name, Index: index}, nil
}

// Ref is a dependency reference from a `depends_on` list. It omits the kind
// prefix; resolution against the loaded grid decides whether it names a step
// or a resource, and an unindexed reference to an expanded step fans in on
// every instance.
type Ref struct {
	Type  string
	Name  string
	Index int
}

// ParseRef parses a `type.name` or `type.name[index]` dependency reference.
func ParseRef(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, fmt.Errorf("dependency reference cannot be empty")
	}

	parts := splitSegments(raw)
	if len(parts) != 2 {
		return Ref{}, fmt.Errorf("invalid dependency reference %q: want type.name or type.name[index]", raw)
	}

	if !nameRegex.MatchString(parts[0]) {
		return Ref{}, fmt.Errorf("invalid dependency reference %q: bad type segment %q", raw, parts[0])
	}

	name, index, err := parseTail(parts[1])
	if err != nil {
		return Ref{}, fmt.Errorf("invalid dependency reference %q: %w", raw, err)
	}

	return Ref{Type: parts[0], Name: name, Index: index}, nil
}

// splitSegments splits on dots outside of brackets. The index suffix never
// contains dots, so a plain split suffices.
func splitSegments(raw string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	return append(parts, raw[start:])
}

// parseTail decodes the final `name` or `name[index]` segment.
func parseTail(segment string) (string, int, error) {
	matches := segmentRegex.FindStringSubmatch(segment)
	if matches == nil {
		return "", NoIndex, fmt.Errorf("bad name segment %q", segment)
	}

	index := NoIndex
	if matches[2] != "" {
		parsed, err := strconv.Atoi(matches[2])
		if err != nil {
			// Unreachable due to regex `\d+`
			return "", NoIndex, fmt.Errorf("parsing index: %w", err)
		}
		index = parsed
	}
	return matches[1], index, nil
}
