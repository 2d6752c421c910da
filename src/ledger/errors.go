package ledger

import "fmt"

// BytecodeMissingError is returned by a worker when a block references
// bytecode that is not available locally.
type BytecodeMissingError struct {
	Locations []BytecodeLocation
}

func (e *BytecodeMissingError) Error() string {
	return fmt.Sprintf("application bytecode not found locally: %d locations", len(e.Locations))
}

// BlobsMissingError is returned by a worker when a block references blobs
// that are not available locally.
type BlobsMissingError struct {
	IDs []BlobID
}

func (e *BlobsMissingError) Error() string {
	return fmt.Sprintf("blobs not found locally: %d ids", len(e.IDs))
}

// DependenciesMissingError is returned by a worker when a block references
// both bytecode and blobs that are not available locally.
type DependenciesMissingError struct {
	Locations []BytecodeLocation
	IDs       []BlobID
}

func (e *DependenciesMissingError) Error() string {
	return fmt.Sprintf("dependencies not found locally: %d bytecode locations, %d blob ids",
		len(e.Locations), len(e.IDs))
}

// InactiveChainError is returned when an operation targets a chain the node
// has no record of.
type InactiveChainError struct {
	ChainID ChainID
}

func (e *InactiveChainError) Error() string {
	return fmt.Sprintf("chain %s is not active", e.ChainID)
}
