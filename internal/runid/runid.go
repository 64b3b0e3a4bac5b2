package runid

import (
	"fmt"
	"strings"
)

// Kind distinguishes the two node families of the execution graph.
type Kind string

const (
	KindStep     Kind = "step"
	KindResource Kind = "resource"
)

// NoIndex marks an address that does not name a specific instance.
const NoIndex = -1

// Address is the structured representation of a unique run identifier.
type Address struct {
	Kind  Kind
	Type  string // runner or asset type, e.g. "exec"
	Name  string // instance name from the grid file
	Index int    // instance index, or NoIndex
}

// NewStep creates an unindexed step address.
func NewStep(runnerType, name string) Address {
	return Address{Kind: KindStep, Type: runnerType, Name: name, Index: NoIndex}
}

// NewResource creates a resource address. Resources are never instanced.
func NewResource(assetType, name string) Address {
	return Address{Kind: KindResource, Type: assetType, Name: name, Index: NoIndex}
}

// WithIndex returns a copy of the address pinned to one instance.
func (a Address) WithIndex(index int) Address {
	a.Index = index
	return a
}

// HasIndex returns true if the address names a specific instance.
func (a Address) HasIndex() bool {
	return a.Index != NoIndex
}

// String serializes the Address into its canonical string representation.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(string(a.Kind))
	sb.WriteRune('.')
	sb.WriteString(a.Type)
	sb.WriteRune('.')
	sb.WriteString(a.Name)
	if a.Index != NoIndex {
		fmt.Fprintf(&sb, "[%d]", a.Index)
	}
	return sb.String()
}

// Equal checks for equality between two addresses.
func (a Address) Equal(other Address) bool {
	return a == other
}
