package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/marketlink/marketlink/soupbin"
	"github.com/marketlink/marketlink/wire"
)

// Version info, same meaning as marketlinkd's.
var Version = "1.0.0"

func main() {
	addr := flag.String("addr", "127.0.0.1:18000", "SoupBinTCP server address")
	username := flag.String("username", "", "login username")
	password := flag.String("password", "", "login password")
	sessionID := flag.String("session", "", "session id; blank means current")
	seq := flag.Uint64("seq", 0, "sequence number to request; 0 means server's current tail")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Infof("marketlink-client v%s connecting to %s", Version, *addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	client, err := soupbin.Connect(ctx, *addr, soupbin.ClientConfig{
		Username:       *username,
		Password:       *password,
		SessionID:      *sessionID,
		SequenceNumber: *seq,
	}, printPacket)
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	log.Infof("logged in: session=%s start_seq=%d", client.SessionID(), client.StartSequence().ToU64())

	<-ctx.Done()
	client.Logout()
}

func printPacket(p wire.Packet) {
	switch p.Type {
	case wire.PacketSequencedData, wire.PacketUnsequencedData:
		fmt.Printf("%s %s\n", p.Type, p.Payload)
	default:
		fmt.Printf("%s\n", p.Type)
	}
}
