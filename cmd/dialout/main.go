// dialout places an outbound call through the telephony provider and
// points its media stream at a running relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/velora-ai/velora/internal/config"
	"github.com/velora-ai/velora/internal/log"
	"github.com/velora-ai/velora/pkg/telephony"
)

func main() {
	configPath := flag.String("config", "velora.yaml", "Path to the configuration file")
	to := flag.String("to", "", "Destination number in E.164 form, e.g. +15551234567")
	orgID := flag.String("org", "", "Organization id for agent resolution")
	agentID := flag.String("agent", "", "Agent id (defaults to the organization's default agent)")
	voice := flag.String("voice", "", "Voice override for this call")
	flag.Parse()

	if *to == "" || *orgID == "" {
		fmt.Fprintln(os.Stderr, "Usage: dialout -to +15551234567 -org org_123 [-agent agent_456] [-voice alloy]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level)

	if cfg.Server.PublicURL == "" {
		log.Error("server.public_url is required for dial-out")
		os.Exit(1)
	}

	dialer, err := telephony.NewDialer(cfg.Dialer, nil)
	if err != nil {
		log.Error("dialer configuration error", "error", err)
		os.Exit(1)
	}

	streamURL := strings.Replace(cfg.Server.PublicURL, "https://", "wss://", 1)
	streamURL = strings.Replace(streamURL, "http://", "ws://", 1)
	streamURL = strings.TrimSuffix(streamURL, "/") + "/media"

	params := map[string]string{"org_id": *orgID}
	if *agentID != "" {
		params["agent_id"] = *agentID
	}
	if *voice != "" {
		params["voice"] = *voice
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	callSid, err := dialer.Dial(ctx, *to, streamURL, params)
	if err != nil {
		log.Error("dial failed", "error", err)
		os.Exit(1)
	}

	log.Info("call placed", "call_sid", callSid, "to", *to)
	fmt.Println(callSid)
}
