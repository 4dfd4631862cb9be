package crdt

import (
	"fmt"
	"strconv"
	"strings"
)

// Operation keywords of the textual op format.
const (
	OpAddVertex    = "addv"
	OpRemoveVertex = "rmvv"
	OpAddEdge      = "adde"
	OpRemoveEdge   = "rmve"
)

// Structs

// ReplicaGraph and ReplicaState are the instantiations run by
// lwwgraph replicas: string vertices, timestamps in Unix
// nanoseconds.
type (
	ReplicaGraph = Graph[string, int64]
	ReplicaState = State[string, int64]
)

// GraphOp represents one mutation of a graph with string
// vertices and int64 timestamps in a form suitable to be
// typed by humans or sent to a replica: the operation
// keyword, one or two vertices and an optional timestamp.
type GraphOp struct {
	Operation    string
	Vertices     []string
	Timestamp    int64
	HasTimestamp bool
}

// Functions

// String takes in a struct of type GraphOp and turns it
// into its marshalled version.
func (op *GraphOp) String() string {

	marshalled := op.Operation

	for _, v := range op.Vertices {
		marshalled = fmt.Sprintf("%s|%s", marshalled, v)
	}

	if op.HasTimestamp {
		marshalled = fmt.Sprintf("%s|%d", marshalled, op.Timestamp)
	}

	return marshalled
}

// arity returns the number of vertices an operation takes
// and zero for unknown operations.
func arity(operation string) int {

	switch operation {
	case OpAddVertex, OpRemoveVertex:
		return 1
	case OpAddEdge, OpRemoveEdge:
		return 2
	default:
		return 0
	}
}

// ParseOp takes in a marshalled (string) version of a
// GraphOp and turns it back into the struct representation.
func ParseOp(msgRaw string) (*GraphOp, error) {

	// Split message at pipe delimiters.
	parts := strings.Split(strings.TrimSpace(msgRaw), "|")

	n := arity(parts[0])
	if n == 0 {
		return nil, fmt.Errorf("unsupported graph operation '%s'", parts[0])
	}

	// operation|vertex...[|timestamp]
	if (len(parts) != (n + 1)) && (len(parts) != (n + 2)) {
		return nil, fmt.Errorf("operation %s expects %d vertices and an optional timestamp, got %d arguments", parts[0], n, (len(parts) - 1))
	}

	op := &GraphOp{
		Operation: parts[0],
		Vertices:  make([]string, n),
	}

	for i := 0; i < n; i++ {

		if parts[(i + 1)] == "" {
			return nil, fmt.Errorf("empty vertex in graph operation")
		}

		op.Vertices[i] = parts[(i + 1)]
	}

	if len(parts) == (n + 2) {

		ts, err := strconv.ParseInt(parts[(n + 1)], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp in graph operation: %v", err)
		}

		op.Timestamp = ts
		op.HasTimestamp = true
	}

	return op, nil
}

// ApplyTo executes op against g. The timestamp of op has
// to be set at this point.
func (op *GraphOp) ApplyTo(g *ReplicaGraph) (bool, error) {

	if !op.HasTimestamp {
		return false, fmt.Errorf("graph operation %s carries no timestamp", op.Operation)
	}

	if len(op.Vertices) != arity(op.Operation) {
		return false, fmt.Errorf("malformed graph operation %s", op.String())
	}

	switch op.Operation {
	case OpAddVertex:
		return g.AddVertex(op.Vertices[0], op.Timestamp)
	case OpRemoveVertex:
		return g.RemoveVertex(op.Vertices[0], op.Timestamp)
	case OpAddEdge:
		return g.AddEdge(op.Vertices[0], op.Vertices[1], op.Timestamp)
	default:
		return g.RemoveEdge(op.Vertices[0], op.Vertices[1], op.Timestamp)
	}
}
