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

	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/api"
	"github.com/sahilt56/messaging-app/internal/feed"
	chatsync "github.com/sahilt56/messaging-app/internal/sync"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "application server base URL")
	feedURL := flag.String("feed", "ws://localhost:8081/feed", "feed socket URL")
	userID := flag.String("user", "", "user id for this session")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	client := api.NewClient(*serverURL, logger)

	wsFeed, err := feed.DialWS(context.Background(), *feedURL+"?userId="+*userID, logger)
	if err != nil {
		log.Fatalf("Failed to dial feed: %v", err)
	}
	defer wsFeed.Close()

	engine := chatsync.NewEngine(chatsync.Config{
		UserID: *userID,
		Store:  client,
		Feed:   wsFeed,
		Logger: logger,
	})
	defer engine.Stop()

	go func() {
		for range engine.Changes() {
			render(engine.Snapshot())
		}
	}()

	fmt.Println("commands: /list, /open <id>, /close, /del <msgId>, /react <msgId> <emoji>, /typing, /quit; anything else sends")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case line == "/list":
			convs, err := client.FetchConversations(context.Background(), *userID)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, cv := range convs {
				name := cv.GroupName
				if !cv.IsGroup {
					peer := cv.OtherParticipant(*userID)
					name = "direct with " + peer
					if u, err := client.GetUser(context.Background(), peer); err == nil && u != nil {
						if chatsync.IsOnline(u.LastSeen, time.Now()) {
							name += " [online]"
						} else {
							name += " [offline]"
						}
					}
				}
				fmt.Printf("  %s  %s  (%s)\n", cv.ID, name, cv.LastMessage)
			}
		case strings.HasPrefix(line, "/open "):
			engine.SelectConversation(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		case line == "/close":
			engine.Deselect()
		case strings.HasPrefix(line, "/del "):
			engine.DeleteMessage(strings.TrimSpace(strings.TrimPrefix(line, "/del ")))
		case strings.HasPrefix(line, "/react "):
			parts := strings.Fields(line)
			if len(parts) != 3 {
				fmt.Println("usage: /react <msgId> <emoji>")
				continue
			}
			engine.React(parts[1], parts[2])
		case line == "/typing":
			engine.SetTyping(true)
		default:
			engine.SendMessage(line, chatsync.SendOptions{})
		}
	}
}

func render(s chatsync.Snapshot) {
	if s.ConversationID == "" {
		return
	}
	if s.Loading {
		fmt.Println("-- loading --")
		return
	}
	if s.LoadErr != nil {
		fmt.Println("-- load failed:", s.LoadErr, "--")
		return
	}

	fmt.Printf("-- %s (%d unread) --\n", s.ConversationID, s.Unread)
	for _, mv := range s.Messages {
		sender := "system"
		if id := mv.SenderID(); id != "" {
			sender = id
		}
		line := fmt.Sprintf("[%s] %s: %s", mv.CreatedAt.Format("15:04:05"), sender, mv.Content)
		if mv.Reply != nil {
			line += fmt.Sprintf("  (reply to %s: %q)", mv.Reply.SenderName, mv.Reply.Preview)
		}
		for _, g := range mv.Reactions {
			line += fmt.Sprintf("  %s x%d", g.Emoji, g.Count)
		}
		fmt.Println(line)
	}
	if len(s.TypingUserIDs) > 0 {
		fmt.Println("typing:", strings.Join(s.TypingUserIDs, ", "))
	}
	if s.LastErr != nil {
		fmt.Println("last error:", s.LastErr)
	}
}
