package rpc

import (
	"errors"
	"net"
	"net/rpc"
	"sync"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
)

// StatsProvider is implemented by the game server.
type StatsProvider interface {
	Stats() models.Stats
}

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	rpc      *rpc.Server
	closed   sync.Once
}

// NewServer binds addr and registers StatsService.
func NewServer(addr string, provider StatsProvider) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("StatsService", NewStatsService(provider)); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until Stop. It returns nil after Stop.
func (s *Server) Serve() error {
	logger.Log.Infof("RPC server listening on %s", s.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			return err
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	s.closed.Do(func() {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	})
}

// StatsService is the struct that exposes RPC methods.
type StatsService struct {
	provider StatsProvider
}

func NewStatsService(provider StatsProvider) *StatsService {
	return &StatsService{provider: provider}
}

type GetStatsArgs struct{}

type GetStatsReply struct {
	Stats models.Stats
}

// GetStats follows the net/rpc signature: exported method, exported arguments,
// pointer reply, error result.
func (s *StatsService) GetStats(args *GetStatsArgs, reply *GetStatsReply) error {
	reply.Stats = s.provider.Stats()
	return nil
}
