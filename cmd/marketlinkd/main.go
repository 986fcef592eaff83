package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marketlink/marketlink/adminserver"
	"github.com/marketlink/marketlink/config"
	"github.com/marketlink/marketlink/moldudp64"
	"github.com/marketlink/marketlink/soupbin"
	"github.com/marketlink/marketlink/wire"
)

// Version info - increment based on change magnitude:
// Major (x.0.0): breaking changes to the wire formats served
// Minor (0.y.0): new feeds, new admin endpoints
// Patch (0.0.z): bug fixes, minor improvements
var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.Logs.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Logs.Path != "" {
		os.MkdirAll(cfg.Logs.Path, 0755)
		logFile, err := os.OpenFile(cfg.Logs.Path+"/marketlinkd.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
		}
	}

	log.Infof("Starting marketlinkd v%s", Version)
	log.Infof("  SoupBinTCP bind: %s", cfg.SoupBinServer.BindAddress)
	log.Infof("  MoldUDP64 multicast: %s", cfg.MoldTransmitter.MulticastAddr)
	log.Infof("  Admin port: %d", cfg.Admin.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	sessions := soupbin.NewSessionsManager()
	defer sessions.Shutdown()

	store := soupbin.NewMemoryStore()
	sessID, err := wire.NewSessionID(cfg.MoldTransmitter.SessionID)
	if err != nil {
		log.Fatalf("Invalid session id: %v", err)
	}
	session := soupbin.NewSession(sessID, store)
	sessions.TryAddCurrent(session)

	soupServer := soupbin.NewServer(soupbin.ServerConfig{
		Username:    cfg.SoupBinServer.Username,
		Password:    cfg.SoupBinServer.Password,
		BindAddress: cfg.SoupBinServer.BindAddress,
	}, sessions)

	moldStore := moldudp64.NewMemoryStore()
	transmitter, err := moldudp64.NewTransmitter(moldudp64.TransmitterConfig{
		SessionID:      cfg.MoldTransmitter.SessionID,
		SequenceNumber: cfg.MoldTransmitter.SequenceNumber,
		MulticastAddr:  cfg.MoldTransmitter.MulticastAddr,
		RequestBind:    cfg.MoldTransmitter.RequestBind,
	}, moldStore)
	if err != nil {
		log.Fatalf("Failed to start MoldUDP64 transmitter: %v", err)
	}
	defer transmitter.Close()

	receivers := adminserver.NewReceiverRegistry()
	admin := adminserver.New(cfg.Admin.Port, sessions, receivers)

	// Heartbeat the multicast feed once a second.
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := transmitter.SendHeartbeat(); err != nil {
					log.Debugf("marketlinkd: heartbeat send failed: %v", err)
				}
			}
		}
	}()

	go func() {
		if err := soupServer.ListenAndServe(ctx); err != nil {
			log.Errorf("SoupBinTCP server error: %v", err)
			cancel()
		}
	}()

	if err := admin.Run(ctx); err != nil {
		log.Fatalf("Admin server error: %v", err)
	}
}
