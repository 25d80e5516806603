package serve

import (
	"context"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/server"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var Logger = logger.GetLogger(common.LoggerCmd)

// shutdownTimeout bounds the graceful shutdown after a signal
const shutdownTimeout = 10 * time.Second

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the rKV server",
		Long:    `Start the rKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RKV_<flag> (e.g. RKV_IDLE_TIMEOUT=60)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	defaults := common.DefaultServerConfig()

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Transport.Endpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 0.0.0.0:6379 for tcp, /tmp/rkv.sock for unix)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, defaults.TimeoutSecond, cmdUtil.WrapString("Timeout in seconds for reading the rest of a request and for writing a reply (0 = no timeout)"))

	key = "idle-timeout"
	ServeCmd.PersistentFlags().Int64(key, defaults.IdleTimeoutSecond, cmdUtil.WrapString("Close connections that do not send a request for this many seconds (0 = never)"))

	key = "inbox-size"
	ServeCmd.PersistentFlags().Int(key, defaults.InboxSize, cmdUtil.WrapString("How many operations can be queued for the store before clients have to wait"))

	key = "restart-store"
	ServeCmd.PersistentFlags().Bool(key, defaults.RestartStoreOnFailure, cmdUtil.WrapString("Restart the store with an empty map if it fails, instead of stopping the server. All data is lost on a restart"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of an http server exposing prometheus metrics on /metrics (e.g. localhost:9100, empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupTransportFlags(ServeCmd.PersistentFlags())
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:   viper.GetString("endpoint"),
		SocketConf: cmdUtil.GetSocketConf(),
		TCPConf:    cmdUtil.GetTCPConf(),
	}
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.IdleTimeoutSecond = viper.GetInt64("idle-timeout")
	serveCmdConfig.InboxSize = viper.GetInt("inbox-size")
	serveCmdConfig.RestartStoreOnFailure = viper.GetBool("restart-store")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if serveCmdConfig.InboxSize <= 0 {
		return fmt.Errorf("inbox-size must be positive, got %d", serveCmdConfig.InboxSize)
	}
	if serveCmdConfig.TimeoutSecond < 0 || serveCmdConfig.IdleTimeoutSecond < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the rKV server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t)

	if serveCmdConfig.MetricsEndpoint != "" {
		metricsServer := startMetricsServer(serveCmdConfig.MetricsEndpoint)
		defer func() { _ = metricsServer.Close() }()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- serv.ListenAndServe()
	}()

	select {
	case err := <-served:
		// the listener or the store failed
		return err
	case <-ctx.Done():
		Logger.Infof("Received signal, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := serv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if err := <-served; err != nil && !errors.Is(err, transport.ErrServerClosed) {
		return err
	}
	return nil
}

// startMetricsServer exposes all counters in the prometheus text format
func startMetricsServer(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	return srv
}
