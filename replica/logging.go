package replica

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/tezer/Last-Writer-Wins-Element-Graph/crdt"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// logMutation writes one log line for a mutating method.
// Failures and rejections are logged on info level,
// everything else is debug output.
func (s *loggingService) logMutation(method string, ok bool, err error, keyvals ...interface{}) {

	logger := log.With(s.logger, "method", method)
	logger = log.With(logger, keyvals...)

	if err != nil {
		level.Info(logger).Log("msg", "failed to perform operation", "err", err)
	} else if !ok {
		level.Info(logger).Log("msg", "operation had no effect")
	} else {
		level.Debug(logger).Log()
	}
}

func (s *loggingService) Name() string {
	return s.service.Name()
}

// AddVertex wraps this service's AddVertex
// method with added logging capabilities.
func (s *loggingService) AddVertex(v string, ts int64) (bool, error) {

	ok, err := s.service.AddVertex(v, ts)
	s.logMutation("AddVertex", ok, err, "vertex", v, "ts", ts)

	return ok, err
}

// RemoveVertex wraps this service's RemoveVertex
// method with added logging capabilities.
func (s *loggingService) RemoveVertex(v string, ts int64) (bool, error) {

	ok, err := s.service.RemoveVertex(v, ts)
	s.logMutation("RemoveVertex", ok, err, "vertex", v, "ts", ts)

	return ok, err
}

// AddEdge wraps this service's AddEdge
// method with added logging capabilities.
func (s *loggingService) AddEdge(v1 string, v2 string, ts int64) (bool, error) {

	ok, err := s.service.AddEdge(v1, v2, ts)
	s.logMutation("AddEdge", ok, err, "v1", v1, "v2", v2, "ts", ts)

	return ok, err
}

// RemoveEdge wraps this service's RemoveEdge
// method with added logging capabilities.
func (s *loggingService) RemoveEdge(v1 string, v2 string, ts int64) (bool, error) {

	ok, err := s.service.RemoveEdge(v1, v2, ts)
	s.logMutation("RemoveEdge", ok, err, "v1", v1, "v2", v2, "ts", ts)

	return ok, err
}

// Apply wraps this service's Apply
// method with added logging capabilities.
func (s *loggingService) Apply(op *crdt.GraphOp) (bool, error) {

	ok, err := s.service.Apply(op)
	if op != nil {
		s.logMutation("Apply", ok, err, "op", op.String())
	} else {
		s.logMutation("Apply", ok, err)
	}

	return ok, err
}

func (s *loggingService) VertexExists(v string) (bool, error) {
	return s.service.VertexExists(v)
}

func (s *loggingService) EdgeExists(v1 string, v2 string) (bool, error) {
	return s.service.EdgeExists(v1, v2)
}

func (s *loggingService) Neighbors(v string) ([]string, error) {
	return s.service.Neighbors(v)
}

// FindPath wraps this service's FindPath
// method with added logging capabilities.
func (s *loggingService) FindPath(v1 string, v2 string) ([]string, error) {

	path, err := s.service.FindPath(v1, v2)

	logger := log.With(s.logger,
		"method", "FindPath",
		"v1", v1,
		"v2", v2,
	)

	if err != nil {
		level.Info(logger).Log("msg", "failed to search for path", "err", err)
	} else {
		level.Debug(logger).Log("length", len(path))
	}

	return path, err
}

// Merge wraps this service's Merge
// method with added logging capabilities.
func (s *loggingService) Merge(state *crdt.ReplicaState) error {

	err := s.service.Merge(state)
	if err != nil {
		level.Warn(s.logger).Log(
			"msg", "failed to merge remote state",
			"err", err,
		)
	} else {
		level.Debug(s.logger).Log("method", "Merge")
	}

	return err
}

func (s *loggingService) Snapshot() *crdt.ReplicaState {
	return s.service.Snapshot()
}
