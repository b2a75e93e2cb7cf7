// chatctl is an operator tool: mint credentials and talk to a running server
// over its session channel.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"nebula/nebula/config"
	"nebula/nebula/controllers"
	"nebula/nebula/middlewares"
	"nebula/nebula/services/pipeline"
	"nebula/nebula/sources/psql"
	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/utils/color"
	"nebula/nebula/utils/logging"
	"nebula/nebula/utils/types"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage:
  chatctl token -username NAME
  chatctl connect -server http://localhost:8000 -token TOKEN [-chat CHAT_ID]`

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:])
	case "connect":
		err = runConnect(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Error("error: "+err.Error()))
		os.Exit(1)
	}
}

// runToken gets or creates the user and prints a signed credential.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	username := fs.String("username", "", "user to issue the token for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("-username is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := dao.NewUserDAO(db.DB).GetOrCreateUser(ctx, *username)
	if err != nil {
		return err
	}
	token, err := middlewares.GenerateToken(cfg.JWTSecret, user.ID, cfg.TokenTTL)
	if err != nil {
		return err
	}
	logging.AppLogger.Info("issued token from cli", zap.Int("user_id", user.ID))
	fmt.Println(token)
	return nil
}

func runConnect(args []string) error {
	color.DisableIfNotTTY()
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8000", "server base URL")
	token := fs.String("token", os.Getenv("NEBULA_TOKEN"), "bearer token")
	chat := fs.String("chat", "", "chat id; a new chat is created when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("-token is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	chatID, err := resolveChat(ctx, *server, *token, *chat)
	if err != nil {
		return err
	}

	wsURL, err := socketURL(*server)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+*token)
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", wsURL, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(32 << 20)

	go printEvents(ctx, conn)

	fmt.Println(color.Info("chat: " + chatID.String()))
	fmt.Println(color.Info("type a message, '/image <prompt>' for an image, or 'exit' to quit"))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.Prompt("> "))
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}

		var env types.Envelope
		tempID := uuid.NewString()
		if prompt, ok := strings.CutPrefix(line, "/image "); ok {
			env, err = envelope(controllers.EventAIImage, types.AIImageRequest{ChatID: chatID, Prompt: prompt, TempID: tempID})
		} else {
			env, err = envelope(controllers.EventAIMessage, types.AIMessageRequest{ChatID: chatID, Content: line, TempID: tempID})
		}
		if err != nil {
			return err
		}
		frame, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			return err
		}
	}
}

func envelope(event string, payload interface{}) (types.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return types.Envelope{}, err
	}
	return types.Envelope{Event: event, Data: data}, nil
}

func printEvents(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			fmt.Printf("\n%s\n%s", color.Warning(string(data)), color.Prompt("> "))
			continue
		}
		switch env.Event {
		case pipeline.EventResponse, pipeline.EventImageResponse:
			var ev types.AIResponseEvent
			if json.Unmarshal(env.Data, &ev) == nil && ev.ResponseToUser != nil {
				if ev.ResponseToUser.Content != nil {
					fmt.Printf("\n%s\n", color.Assistant("assistant: "+*ev.ResponseToUser.Content))
				}
				if ev.ResponseToUser.FileURL != nil {
					fmt.Println(color.Info("image: " + *ev.ResponseToUser.FileURL))
				}
				fmt.Print(color.Prompt("> "))
			}
		case pipeline.EventError:
			var ev types.AIErrorEvent
			if json.Unmarshal(env.Data, &ev) == nil {
				fmt.Printf("\n%s\n%s", color.Error("error: "+ev.Error), color.Prompt("> "))
			}
		default:
			fmt.Printf("\n%s\n%s", color.Event("["+env.Event+"]"), color.Prompt("> "))
		}
	}
}

func resolveChat(ctx context.Context, server, token, chat string) (uuid.UUID, error) {
	if chat != "" {
		return uuid.Parse(chat)
	}
	body, _ := json.Marshal(types.CreateChatRequest{Title: "chatctl " + time.Now().Format(time.DateTime)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/chat/", bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("create chat: %s", resp.Status)
	}
	var out types.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uuid.Nil, err
	}
	return out.Chat.ID, nil
}

func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket/"
	return u.String(), nil
}
