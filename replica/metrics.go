package replica

import (
	"github.com/go-kit/kit/metrics"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

// Values of the "result" label.
const (
	resultApplied  = "applied"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

type metricsService struct {
	service Service
	ops     metrics.Counter
	merges  metrics.Counter
}

// NewMetricsService counts every mutation in ops,
// labelled by "op" and "result", and every merge
// of remote state in merges, labelled by "result".
func NewMetricsService(s Service, ops metrics.Counter, merges metrics.Counter) Service {
	return &metricsService{
		service: s,
		ops:     ops,
		merges:  merges,
	}
}

func result(ok bool, err error) string {

	if err != nil {
		return resultFailed
	}

	if !ok {
		return resultRejected
	}

	return resultApplied
}

func (s *metricsService) count(op string, ok bool, err error) (bool, error) {
	s.ops.With("op", op, "result", result(ok, err)).Add(1)
	return ok, err
}

func (s *metricsService) Name() string {
	return s.service.Name()
}

func (s *metricsService) AddVertex(v string, ts int64) (bool, error) {
	ok, err := s.service.AddVertex(v, ts)
	return s.count(crdt.OpAddVertex, ok, err)
}

func (s *metricsService) RemoveVertex(v string, ts int64) (bool, error) {
	ok, err := s.service.RemoveVertex(v, ts)
	return s.count(crdt.OpRemoveVertex, ok, err)
}

func (s *metricsService) AddEdge(v1 string, v2 string, ts int64) (bool, error) {
	ok, err := s.service.AddEdge(v1, v2, ts)
	return s.count(crdt.OpAddEdge, ok, err)
}

func (s *metricsService) RemoveEdge(v1 string, v2 string, ts int64) (bool, error) {
	ok, err := s.service.RemoveEdge(v1, v2, ts)
	return s.count(crdt.OpRemoveEdge, ok, err)
}

func (s *metricsService) Apply(op *crdt.GraphOp) (bool, error) {

	ok, err := s.service.Apply(op)

	name := "unknown"
	if op != nil {
		name = op.Operation
	}

	return s.count(name, ok, err)
}

func (s *metricsService) VertexExists(v string) (bool, error) {
	return s.service.VertexExists(v)
}

func (s *metricsService) EdgeExists(v1 string, v2 string) (bool, error) {
	return s.service.EdgeExists(v1, v2)
}

func (s *metricsService) Neighbors(v string) ([]string, error) {
	return s.service.Neighbors(v)
}

func (s *metricsService) FindPath(v1 string, v2 string) ([]string, error) {
	return s.service.FindPath(v1, v2)
}

func (s *metricsService) Merge(state *crdt.ReplicaState) error {

	err := s.service.Merge(state)
	s.merges.With("result", result(true, err)).Add(1)

	return err
}

func (s *metricsService) Snapshot() *crdt.ReplicaState {
	return s.service.Snapshot()
}
