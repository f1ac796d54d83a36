package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"social-client/internal/auth"
	"social-client/internal/call"
	"social-client/internal/chat"
	"social-client/internal/config"
	"social-client/internal/models"
	"social-client/internal/notifications"
	"social-client/internal/posts"
	"social-client/internal/rest"
	"social-client/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if len(os.Args) < 2 || os.Args[1] == "" {
		logger.Fatal("usage: client <conversation-id>")
	}
	conversationID := os.Args[1]

	// Build the session. A token in the environment switches to bearer
	// auth; otherwise the login cookie carries the credentials.
	session := auth.NewSession(auth.ModeCookie)
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		session = auth.NewSession(auth.ModeToken)
		session.SetToken(token)
	}
	if session.Expired() {
		logger.Fatal("Session token is expired, sign in again")
	}

	// Initialize REST client
	api, err := rest.NewClient(cfg.Backend.APIBaseURL, session, cfg.Backend.HTTPTimeout)
	if err != nil {
		logger.Fatal("Failed to create REST client: %v", err)
	}

	ctx := context.Background()
	user, err := api.CurrentUser(ctx)
	if err != nil {
		logger.Fatal("Failed to load current user: %v", err)
	}
	session.SetUser(user)
	logger.Info("Signed in as %s", user.Username)

	// Start the global notification stream
	notifConn := notifications.NewConn(cfg.Backend.WSBaseURL, cfg.Realtime)
	notifs := notifications.NewService(notifConn, api, cfg.Chat.NotificationRefresh)
	notifs.OnUpdate(func() {
		logger.Info("🔔 %d unread notifications", notifs.UnreadCount())
	})
	if err := notifs.Start(ctx); err != nil {
		logger.Error("Failed to start notifications: %v", err)
	}
	defer notifs.Stop()

	// Mount the conversation surface
	chatConn := chat.NewConn(cfg.Backend.WSBaseURL, cfg.Realtime, cfg.Chat.StatusRequestDelay)
	conversation := chat.NewService(conversationID, chatConn, api, session, chat.Config{
		TypingIdle:       cfg.Chat.TypingIdle,
		ReadReceiptDelay: cfg.Chat.ReadReceiptDelay,
	})
	conversation.OnUpdate(func() {
		printLastMessage(conversation)
	})
	if err := conversation.Open(ctx); err != nil {
		logger.Fatal("Failed to open conversation: %v", err)
	}
	defer conversation.Close()

	// The call controller rides the conversation channel
	engine := call.NewWebRTCEngine(cfg.Call.STUNServers)
	calls := call.NewController(conversation, engine)
	calls.OnStatus(func(status call.Status) {
		logger.Info("📞 Call %s", status)
	})
	calls.OnError(func(err error) {
		logger.Error("Call error: %v", err)
	})
	conversation.OnEvent(calls.HandleEvent)

	logger.Info("💬 Conversation %s open, type a message or /help", conversationID)
	go repl(ctx, cfg, session, api, conversation, calls)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	calls.End()
	logger.Info("Client shutting down...")
}

func repl(ctx context.Context, cfg *config.Config, session *auth.Session, api *rest.Client, conversation *chat.Service, calls *call.Controller) {
	var post *posts.Service
	defer func() {
		if post != nil {
			post.Close()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			conversation.InputChanged()
			if err := conversation.SendMessage(ctx, line); err != nil {
				logger.Error("Failed to send: %v", err)
			}
			continue
		}

		parts := strings.Fields(line)
		switch parts[0] {
		case "/help":
			logger.Info("Commands: /call [video|audio], /accept, /reject, /hangup, /mute, /video, /status, /post <id>, /like, /comment <text>, /quit")
		case "/mute":
			muted, err := calls.ToggleMute()
			if err != nil {
				logger.Error("Failed to toggle mute: %v", err)
				continue
			}
			if muted {
				logger.Info("🔇 Microphone muted")
			} else {
				logger.Info("🎙️ Microphone live")
			}
		case "/video":
			videoOff, err := calls.ToggleVideo()
			if err != nil {
				logger.Error("Failed to toggle video: %v", err)
				continue
			}
			if videoOff {
				logger.Info("📷 Camera off")
			} else {
				logger.Info("📷 Camera on")
			}
		case "/post":
			if len(parts) < 2 {
				logger.Info("Usage: /post <post-id>")
				continue
			}
			if post != nil {
				post.Close()
			}
			postConn := posts.NewConn(cfg.Backend.WSBaseURL, session.WebSocketToken(), cfg.Realtime)
			post = posts.NewService(parts[1], postConn, api, session)
			if err := post.Open(ctx); err != nil {
				logger.Error("Failed to open post: %v", err)
				post = nil
				continue
			}
			snapshot := post.Post()
			logger.Info("👀 Watching post %s (%d likes, %d comments)", parts[1], snapshot.LikeCount, snapshot.CommentCount)
		case "/like":
			if post == nil {
				logger.Info("No post mounted, use /post <id> first")
				continue
			}
			if err := post.ToggleLike(ctx); err != nil {
				logger.Error("Failed to toggle like: %v", err)
				continue
			}
			logger.Info("❤️ %d likes", post.Post().LikeCount)
		case "/comment":
			if post == nil {
				logger.Info("No post mounted, use /post <id> first")
				continue
			}
			if len(parts) < 2 {
				logger.Info("Usage: /comment <text>")
				continue
			}
			text := strings.TrimSpace(strings.TrimPrefix(line, "/comment"))
			if err := post.AddComment(ctx, text); err != nil {
				logger.Error("Failed to comment: %v", err)
			}
		case "/call":
			callType := models.CallTypeVideo
			if len(parts) > 1 && parts[1] == "audio" {
				callType = models.CallTypeAudio
			}
			if err := calls.StartCall(callType); err != nil {
				logger.Error("Failed to start call: %v", err)
			}
		case "/accept":
			if err := calls.Accept(); err != nil {
				logger.Error("Failed to accept call: %v", err)
			}
		case "/reject":
			if err := calls.Reject(); err != nil {
				logger.Error("Failed to reject call: %v", err)
			}
		case "/hangup":
			calls.End()
		case "/status":
			online := "offline"
			if conversation.OtherUserOnline() {
				online = "online"
			}
			logger.Info("Other participant is %s, call is %s", online, calls.Status())
		case "/quit":
			syscall.Kill(syscall.Getpid(), syscall.SIGINT)
			return
		default:
			logger.Info("Unknown command %s, try /help", parts[0])
		}
	}
}

func printLastMessage(conversation *chat.Service) {
	messages := conversation.Messages()
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	logger.Info("[%s] %s", last.Sender.Username, last.Content)
}
