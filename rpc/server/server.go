package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/lib/store/lstore"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"time"
)

var Logger = logger.GetLogger("rpc")

var invalidCommandsTotal = metrics.GetOrCreateCounter("rkv_invalid_commands_total")

// storeFailureShutdownTimeout bounds closing the connections after the store failed
const storeFailureShutdownTimeout = 5 * time.Second

// NewRPCServer creates a new RPC server with its own, empty store
// It takes a config and a transport as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//	)
//
//	if err := s.ListenAndServe(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
) IRPCServer {
	s := lstore.NewLocalStore(lstore.Config{
		InboxSize:        config.InboxSize,
		RestartOnFailure: config.RestartStoreOnFailure,
		OnDataLoss: func(err error) {
			Logger.Errorf("store restarted after a failure, all data was lost: %v", err)
		},
	})
	return newRPCServer(config, transport, s)
}

func newRPCServer(config common.ServerConfig, transport transport.IRPCServerTransport, s store.IStore) *rpcServer {
	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	server := &rpcServer{
		config:    config,
		transport: transport,
		store:     s,
		adapter:   NewIStoreServerAdapter(),
	}
	server.registerTransportHandler()
	return server
}

type rpcServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	store     store.IStore
	adapter   IRPCServerAdapter
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req frame.Frame) frame.Frame {
		cmd, err := common.ParseCommand(req)
		if err != nil {
			invalidCommandsTotal.Inc()
			Logger.Debugf("Rejected invalid command %v", req)
			return common.ReplyInvalidCommand
		}

		// Let the adapter handle the command
		return s.adapter.Handle(cmd, s.store)
	})
}

func (s *rpcServer) ListenAndServe() error {
	listener, err := s.transport.Listen(s.config)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

func (s *rpcServer) Serve(listener net.Listener) error {
	served := make(chan error, 1)
	go func() {
		served <- s.transport.Serve(s.config, listener)
	}()

	select {
	case err := <-served:
		return err

	case <-s.store.Done():
		storeErr := s.store.Err()
		if storeErr == nil {
			// regular shutdown, the transport stops as well
			return <-served
		}

		Logger.Errorf("Store failed, shutting down server: %v", storeErr)
		ctx, cancel := context.WithTimeout(context.Background(), storeFailureShutdownTimeout)
		defer cancel()
		if err := s.transport.Shutdown(ctx); err != nil {
			Logger.Errorf("Failed to shut down transport: %v", err)
		}
		if err := <-served; err != nil && !errors.Is(err, transport.ErrServerClosed) {
			Logger.Errorf("Transport stopped with error: %v", err)
		}
		return fmt.Errorf("store failed: %w", storeErr)
	}
}

func (s *rpcServer) Shutdown(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)
	if storeErr := s.store.Close(); storeErr != nil {
		Logger.Warningf("Store stopped with error: %v", storeErr)
	}
	return err
}
