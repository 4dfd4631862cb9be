package comm

import (
	"fmt"
	"strings"

	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// Query kinds of the textual query format.
const (
	QueryVertex    = "vertex"
	QueryEdge      = "edge"
	QueryNeighbors = "neighbors"
	QueryPath      = "path"
)

// Structs

// PullRequest asks a replica for its complete state.
// Round identifies the anti-entropy round in logs.
type PullRequest struct {
	Replica string `json:"replica"`
	Round   string `json:"round"`
}

// StateMsg carries the complete state of a replica.
type StateMsg struct {
	Replica string             `json:"replica"`
	Round   string             `json:"round"`
	State   *crdt.ReplicaState `json:"state"`
}

// Ack confirms a pushed state has been merged.
type Ack struct {
	Replica string `json:"replica"`
}

// OpMsg carries one graph operation in textual form.
type OpMsg struct {
	Op string `json:"op"`
}

// OpReply reports whether an operation took effect and
// returns it including the timestamp it was applied at.
type OpReply struct {
	Applied bool   `json:"applied"`
	Op      string `json:"op"`
}

// QueryMsg asks one read-only question about the graph.
type QueryMsg struct {
	Kind     string   `json:"kind"`
	Vertices []string `json:"vertices"`
}

// QueryReply answers a QueryMsg. Vertex and edge queries
// only set Found, neighbor and path queries list vertices
// and set Found if the list is not empty.
type QueryReply struct {
	Found    bool     `json:"found"`
	Vertices []string `json:"vertices,omitempty"`
}

// Functions

// String marshals q into the textual query format.
func (q *QueryMsg) String() string {

	parts := append([]string{q.Kind}, q.Vertices...)

	return strings.Join(parts, "|")
}

func queryArity(kind string) int {

	switch kind {
	case QueryVertex, QueryNeighbors:
		return 1
	case QueryEdge, QueryPath:
		return 2
	default:
		return 0
	}
}

// ParseQuery takes in a query like "path|a|b" and
// turns it into its struct representation.
func ParseQuery(raw string) (*QueryMsg, error) {

	parts := strings.Split(strings.TrimSpace(raw), "|")

	n := queryArity(parts[0])
	if n == 0 {
		return nil, fmt.Errorf("unsupported query '%s'", parts[0])
	}

	if len(parts) != (n + 1) {
		return nil, fmt.Errorf("query %s expects %d vertices, got %d", parts[0], n, (len(parts) - 1))
	}

	for _, v := range parts[1:] {

		if v == "" {
			return nil, fmt.Errorf("empty vertex in query")
		}
	}

	return &QueryMsg{
		Kind:     parts[0],
		Vertices: parts[1:],
	}, nil
}
