package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/realtime"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/rest"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/attachment"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/store"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/view"
	"github.com/5h1ro0o/recherche-auto-sub000/pkg/logger"
)

// chat is a terminal client for one conversation, mostly useful to exercise
// the messaging core against a running chatd.
func main() {
	_ = godotenv.Load()
	logger.Init("error")
	defer logger.Sync()

	user := flag.String("user", "", "local user id")
	peer := flag.String("peer", "", "peer user id")
	server := flag.String("server", envOr("CHAT_SERVER", "http://localhost:8080"), "chatd base URL")
	flag.Parse()
	if *user == "" || *peer == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -user <id> -peer <id> [-server url]")
		os.Exit(2)
	}

	ctx := context.Background()
	wsURL := strings.Replace(*server, "http", "ws", 1) + "/api/v1/ws"
	ch, err := realtime.Dial(ctx, wsURL, *user, logger.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	api := rest.NewClient(*server, *user, logger.Log)
	session := view.NewSession(ch, api, api, api, api, view.Config{}, logger.Log)
	defer session.Close()

	conv, err := session.Open(ctx, *peer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open conversation: %v\n", err)
		os.Exit(1)
	}

	for _, m := range newSince(conv) {
		printMessage(*user, m.sender, m.body)
	}

	go pollIndicator(conv)

	fmt.Println("commands: /attach <path>, /quit; anything else sends a message")
	sc := bufio.NewScanner(os.Stdin)
	var drafts []*attachment.Draft
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/attach "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
			d, err := attachFile(conv, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "attach: %v\n", err)
				continue
			}
			drafts = append(drafts, d)
			fmt.Printf("attached %s\n", filepath.Base(path))
		case line == "":
			continue
		default:
			conv.Keystroke()
			if _, err := conv.Send(ctx, line, drafts); err != nil {
				var sendErr *store.SendError
				if errors.As(err, &sendErr) {
					fmt.Fprintf(os.Stderr, "send failed, draft kept (%v)\n", sendErr.Cause)
					continue
				}
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				continue
			}
			drafts = nil
		}
	}
}

func attachFile(conv *view.Conversation, path string) (*attachment.Draft, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return conv.Attach(attachment.File{Name: filepath.Base(path), Size: info.Size(), Content: f})
}

func pollIndicator(conv *view.Conversation) {
	wasTyping := false
	for {
		time.Sleep(500 * time.Millisecond)
		for _, m := range newSince(conv) {
			printMessage("", m.sender, m.body)
		}
		typing := conv.PeerTyping()
		if typing && !wasTyping {
			fmt.Printf("  %s is typing...\n", conv.Peer())
		}
		wasTyping = typing
	}
}

type entry struct{ sender, body string }

var seen = map[string]bool{}

func newSince(conv *view.Conversation) []entry {
	var out []entry
	for _, m := range conv.Messages() {
		key := m.SortID()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entry{sender: m.SenderID, body: m.Body})
	}
	return out
}

func printMessage(self, sender, body string) {
	prefix := sender
	if sender == self {
		prefix = "me"
	}
	fmt.Printf("[%s] %s\n", prefix, body)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
