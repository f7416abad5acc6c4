package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/shm"
)

// Server is a request/response server port attached to a service.
type Server[F Flavor] struct {
	id        domain.ServerID
	service   *Service[F]
	cfg       ServerConfig
	segment   shm.Segment
	createdAt time.Time

	closeMu sync.Mutex
	closed  bool
}

func (s *Server[F]) ID() domain.ServerID             { return s.id }
func (s *Server[F]) Config() ServerConfig            { return s.cfg }
func (s *Server[F]) Segment() shm.Segment            { return s.segment }
func (s *Server[F]) CreatedAt() time.Time            { return s.createdAt }
func (s *Server[F]) ServiceName() domain.ServiceName { return s.service.cfg.Name }

// Locality reports the locality of the owning service.
func (s *Server[F]) Locality() domain.Locality {
	var flavor F
	return flavor.Locality()
}

// Close detaches the server from its service and releases the data
// segment. A second call returns domain.ErrServerClosed.
func (s *Server[F]) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return fmt.Errorf("server %s: %w", s.id, domain.ErrServerClosed)
	}
	s.closed = true

	s.service.detach(s)
	if err := s.segment.Close(); err != nil {
		return fmt.Errorf("server %s: %w", s.id, err)
	}
	return nil
}
