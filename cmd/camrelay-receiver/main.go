package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"camrelay/receiver/internal/config"
	"camrelay/receiver/internal/device"
	"camrelay/receiver/internal/domain"
	sigclient "camrelay/receiver/internal/signal"
	"camrelay/receiver/internal/sink"
	"camrelay/receiver/internal/webrtc"
)

const helpText = `camrelay-receiver - Expose a received WebRTC stream as virtual devices

Receives a one-way audio/video stream negotiated over the Cam Relay
signaling backend and feeds it into a v4l2loopback virtual camera and a
virtual audio cable, where any local application can consume it.

Environment Variables (required):
  SIGNAL_URL   WebSocket URL of the signaling backend (wss://host/ws)
  STUN_URL     STUN server URL (stun:host:port)

Environment Variables (optional):
  SESSION_COOKIE     Authenticated session cookie for the signaling handshake
  RECEIVER_USERNAME  Username announced in signaling envelopes (default: receiver)
  PUBLIC_IP          TURN relay host (with TURN_PORT/TURN_USERNAME/TURN_PASSWORD)
  VIDEO_HEIGHT       Normalized frame height (default: 720)
  VIDEO_FPS          Virtual camera frame rate (default: 30)
  AUDIO_SAMPLE_RATE  Virtual cable sample rate (default: 48000)
  AUDIO_CHANNELS     Virtual cable channel count (default: 2)
  AUDIO_BLOCK_FRAMES Device callback block size in frames (default: 960)
  CAMERA_DEVICE      v4l2loopback path or card-name substring (default: auto)
  AUDIO_DEVICE_MATCH Playback device name substring (default: CABLE Input)

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	// Device bindings are created lazily on the first frame of each stream;
	// the factories produce one fresh binding per session.
	videoSink := sink.NewVideo(cfg.VideoHeight, cfg.VideoFPS, func() domain.CameraOutput {
		return device.NewCamera(device.V4L2Bind(cfg.CameraDevice))
	})
	audioSink := sink.NewAudio(func() domain.AudioOutput {
		return device.NewAudio(device.AudioConfig{
			DeviceMatch: cfg.AudioDeviceMatch,
			SampleRate:  cfg.AudioSampleRate,
			Channels:    cfg.AudioChannels,
			BlockFrames: cfg.AudioBlockFrames,
		})
	})

	receiver := webrtc.New(cfg.ICEServers, videoSink, audioSink,
		func() { log.Printf("[main] stream started") },
		func() { log.Printf("[main] stream stopped") },
	)

	sc := sigclient.NewClient(cfg.SignalURL, cfg.SessionCookie, cfg.Username, receiver)
	if err := sc.Connect(); err != nil {
		log.Fatalf("[main] signal connect: %v", err)
	}

	<-ctx.Done()
	log.Printf("[main] shutting down")

	receiver.StopSession()
	sc.Close()

	log.Printf("[main] done")
}
