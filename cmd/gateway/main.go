// Command gateway runs the MEW protocol gateway: WebSocket and HTTP
// transports in front of the space/router/capability engine.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mewprotocol/gateway/internal/auth"
	"github.com/mewprotocol/gateway/internal/config"
	"github.com/mewprotocol/gateway/internal/envelope"
	"github.com/mewprotocol/gateway/internal/httpapi"
	"github.com/mewprotocol/gateway/internal/httpmw"
	"github.com/mewprotocol/gateway/internal/logsink"
	"github.com/mewprotocol/gateway/internal/metrics"
	"github.com/mewprotocol/gateway/internal/router"
	"github.com/mewprotocol/gateway/internal/space"
	"github.com/mewprotocol/gateway/internal/telemetry"
	"github.com/mewprotocol/gateway/internal/wsgateway"
)

func main() {
	cfgPath := "gateway.yaml"
	if len(os.Args) >= 3 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := telemetry.New(os.Stdout, "mew-gateway", telemetry.LevelInfo)
	sink := logsink.New(logsink.Options{Dir: cfg.Logs.Dir, MaxSizeMB: cfg.Logs.MaxSizeMB, MaxBackups: cfg.Logs.MaxBackups})
	defer sink.Close()

	met := metrics.New()

	spaceCfg := space.Config{
		Protocol:             cfg.Protocol.Tag,
		HistoryCap:           cfg.Limits.HistoryCap,
		MessagesPerMinute:    cfg.Limits.MessagesPerMinute,
		ChatPerMinute:        cfg.Limits.ChatPerMinute,
		ProposalExpiry:       cfg.Limits.ProposalExpiry,
		StreamInactivity:     cfg.Limits.StreamInactivity,
		GrantsPerParticipant: cfg.Limits.GrantsPerParticipant,
		DefaultCapabilities:  cfg.Auth.DefaultCapabilities,
	}
	logFn := func(level, msg string, fields map[string]any) {
		ctx := context.Background()
		switch level {
		case "error":
			logger.Error(ctx, msg, fields)
		case "warn":
			logger.Warn(ctx, msg, fields)
		default:
			logger.Info(ctx, msg, fields)
		}
	}
	manager := space.NewManager(spaceCfg, logFn, sink, met)

	verifier := auth.NewVerifier(cfg.Auth.HMACSecret, cfg.Auth.Insecure)
	issuer := auth.NewIssuer(cfg.Auth.HMACSecret, cfg.Auth.TokenExpiry)
	dispatcher := router.NewDispatcher(manager, cfg.Protocol.Tag, cfg.Limits.MaxEnvelopeBytes)

	wsServer := wsgateway.NewServer(manager, verifier, dispatcher, cfg.Protocol.Tag, logger, cfg.Server.HandshakeTimeout, cfg.Auth.DefaultCapabilities)

	httpServer := &httpapi.Server{
		Manager:                 manager,
		Issuer:                  issuer,
		Verifier:                verifier,
		Dispatcher:              dispatcher,
		Metrics:                 met,
		LogSink:                 sink,
		Protocol:                cfg.Protocol.Tag,
		StartedAt:               time.Now(),
		DevTokenEndpointEnabled: cfg.Auth.Insecure,
		DefaultCapabilities:     cfg.Auth.DefaultCapabilities,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.Handle("/", httpServer.Handler())

	var handler http.Handler = mux
	handler = httpmw.CORS(httpmw.NewCORSConfig(cfg.CORS.AllowedOrigins))(handler)
	handler = httpmw.Recoverer(logger)(handler)
	handler = httpmw.RequestID(handler)

	realSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler,
	}

	stopSweep := make(chan struct{})
	go sweepLoop(manager, cfg.Limits.StreamInactivity, stopSweep)

	go func() {
		logger.Info(context.Background(), "gateway_listening", map[string]any{"addr": cfg.Server.Addr})
		if err := realSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stopSweep)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := realSrv.Shutdown(ctx); err != nil {
		logger.Error(ctx, "shutdown_error", map[string]any{"error": err.Error()})
	}
}

func sweepLoop(manager *space.Manager, inactivity time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, sp := range manager.All() {
				sp.SweepInactiveStreams(inactivity)
				for _, ep := range sp.SweepExpiredProposals() {
					sp.SendSystem(envelope.KindSystemNotice, []string{ep.ProposerID}, map[string]string{
						"proposal_id": ep.ID, "notice": "proposal expired",
					})
				}
			}
		case <-stop:
			return
		}
	}
}
