// Command voxad-say speaks a line through the configured synthesis
// provider on local speakers. Useful for checking credentials, voice
// choice, and playback before pointing a client at the server.
//
// Usage:
//
//	ELEVENLABS_API_KEY=sk_... ELEVENLABS_VOICE_ID=... go run ./cmd/voxad-say/ "Hello there"
//
// Flags:
//
//	-voice  Voice ID (or set ELEVENLABS_VOICE_ID)
//	-ws     Use the WebSocket streaming endpoint instead of HTTP
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/voxa-labs/voxad/internal/log"
	"github.com/voxa-labs/voxad/pkg/synth"
)

var (
	voiceID = flag.String("voice", "", "Voice ID (or set ELEVENLABS_VOICE_ID)")
	useWS   = flag.Bool("ws", false, "Use the WebSocket streaming endpoint")
)

func main() {
	flag.Parse()
	log.Init("info")

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ELEVENLABS_API_KEY environment variable required")
		os.Exit(1)
	}

	voice := *voiceID
	if voice == "" {
		voice = os.Getenv("ELEVENLABS_VOICE_ID")
	}
	if voice == "" {
		fmt.Fprintln(os.Stderr, "voice ID required (-voice or ELEVENLABS_VOICE_ID)")
		os.Exit(1)
	}

	text := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(text) == "" {
		text = "Hello! If you can hear this, synthesis and playback are working."
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []synth.Option{
		synth.WithAPIKey(apiKey),
		synth.WithVoice(voice),
		synth.WithLogger(log.L()),
	}

	var provider synth.Provider
	var err error
	if *useWS {
		provider, err = synth.NewElevenLabsWS(opts...)
	} else {
		provider, err = synth.NewElevenLabs(opts...)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer provider.Close()

	sink, err := synth.NewFFPlay(ctx, synth.AudioFormat{
		Encoding:   synth.EncodingPCM16,
		SampleRate: synth.SampleRateFromEncoding(synth.EncodingPCM16),
		Channels:   1,
		BitDepth:   16,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := synth.Speak(ctx, provider, sink, text); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
