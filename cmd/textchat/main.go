package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alinalabs/alina-go/internal/config"
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

	chatURL, err := cfg.Client.ChatURL()
	if err != nil {
		log.Fatalf("invalid chat endpoint: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel := transport.NewStreamChannel(chatURL, transport.DefaultStreamOptions())
	channel.SetCloseHandler(func(err error) {
		if err != nil {
			log.Printf("[textchat] connection lost: %v", err)
		}
		stop()
	})
	if err := channel.Open(ctx); err != nil {
		log.Fatalf("failed to connect to %s: %v", chatURL, err)
	}

	ctrl := session.NewTextController(channel, session.Callbacks{
		OnAppend: func(role, text string) {
			if role == "assistant" {
				fmt.Printf("Server: %s\n", text)
			}
		},
		OnError: func(msg string) {
			fmt.Printf("Error: %s\n", msg)
		},
	})
	defer ctrl.Close()

	fmt.Printf("Connected to %s. Type a message, Ctrl-D or Ctrl-C to quit.\n", chatURL)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("You: ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := ctrl.SendText(ctx, line); err != nil {
				log.Printf("[textchat] send failed: %v", err)
			}
		}
	}
}
