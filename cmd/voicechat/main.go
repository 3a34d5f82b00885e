package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alinalabs/alina-go/internal/capture"
	"github.com/alinalabs/alina-go/internal/config"
	"github.com/alinalabs/alina-go/internal/playback"
	"github.com/alinalabs/alina-go/internal/session"
	"github.com/alinalabs/alina-go/internal/transport"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] could not load .env, falling back to system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	audioPath := flag.String("audio", "", "send an existing audio file instead of recording")
	recordCmd := flag.String("record", "", "capture command, e.g. \"arecord -f S16_LE -r 16000 -t wav -\"")
	mimeType := flag.String("mime", "audio/wav", "MIME type produced by the capture command")
	lang := flag.String("lang", "", "language code override, defaults to ALINA_LANG")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Parse()

	if *audioPath == "" && *recordCmd == "" {
		flag.Usage()
		log.Fatal("specify -audio=<file> or -record=<command>")
	}

	opts := transport.DefaultRequestOptions(cfg.Client.VoiceURL())
	if cfg.Client.AudioField != "" {
		opts.FieldName = cfg.Client.AudioField
	}
	opts.Lang = cfg.Client.Lang
	if *lang != "" {
		opts.Lang = *lang
	}
	opts.Timeout = *timeout
	channel := transport.NewRequestChannel(opts)
	defer channel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := channel.Health(ctx); err != nil {
		log.Fatalf("assistant is unreachable at %s: %v", cfg.Client.VoiceURL(), err)
	}

	var factory capture.SourceFactory
	if *audioPath != "" {
		factory = capture.FileSource(*audioPath)
	} else {
		parts := strings.Fields(*recordCmd)
		factory = capture.CommandSource(*mimeType, parts[0], parts[1:]...)
	}

	rec := capture.NewRecorder(factory)
	player := playback.NewManager()
	ctrl := session.NewVoiceController(channel, rec, player, session.Callbacks{
		OnStatus: func(s session.State) {
			log.Printf("[voicechat] state: %s", s)
		},
		OnAppend: func(role, text string) {
			fmt.Printf("%s: %s\n", role, text)
		},
		OnError: func(msg string) {
			fmt.Printf("Error: %s\n", msg)
		},
	})
	defer ctrl.Close()

	if err := ctrl.StartRecording(ctx); err != nil {
		log.Fatalf("failed to start recording: %v", err)
	}

	if *recordCmd != "" {
		fmt.Println("Recording. Press Enter to stop and send.")
		bufio.NewReader(os.Stdin).ReadString('\n')
	} else {
		// Let the file pump drain before collecting it.
		time.Sleep(200 * time.Millisecond)
	}

	if err := ctrl.StopAndSend(ctx); err != nil {
		log.Fatalf("voice turn failed: %v", err)
	}

	if ctrl.Playable() {
		res := ctrl.PlaybackResource()
		fmt.Printf("Reply audio (%s, %d bytes): %s\n", res.MIME(), res.Size(), res.Path())
		fmt.Println("Play it with e.g. mpv or aplay, then press Enter to clean up.")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}
}
