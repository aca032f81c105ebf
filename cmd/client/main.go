package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/andy6609/roomchat/internal/client"
	"github.com/andy6609/roomchat/internal/wire"
)

const defaultPort = "4242"

const usage = `Commands:
  !connect <username>@<server> [port]
  !open <room>     !close <room>     !enter <room>
  !leave           !bye              !quit
  *receiver* message   whisper
  anything else        broadcast in the current room`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	fmt.Println(usage)

	var c *client.Client
	defer func() {
		if c != nil {
			_ = c.Close()
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); in.Scan(); fmt.Print("> ") {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case line == "!quit":
			return
		case strings.HasPrefix(line, "!connect"):
			if c != nil && c.Status() != client.Disconnected {
				err = client.ErrAlreadyConnected
				break
			}
			if c != nil {
				_ = c.Close()
			}
			c, err = connect(strings.TrimSpace(strings.TrimPrefix(line, "!connect")))
			if err == nil {
				go printMessages(c)
			}
		case c == nil:
			err = client.ErrNotConnected
		case strings.HasPrefix(line, "!"):
			err = command(c, line[1:])
		case strings.HasPrefix(line, "*"):
			receiver, text, ok := strings.Cut(line[1:], "*")
			if !ok || receiver == "" {
				err = fmt.Errorf("usage: *receiver* message")
				break
			}
			err = c.Whisper(receiver, text)
		default:
			err = c.Say(line)
		}
		if err != nil {
			logger.Warn(err.Error())
		}
	}
}

func connect(args string) (*client.Client, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, fmt.Errorf("usage: !connect <username>@<server> [port]")
	}
	username, server, ok := strings.Cut(fields[0], "@")
	if !ok || username == "" || server == "" {
		return nil, fmt.Errorf("usage: !connect <username>@<server> [port]")
	}
	port := defaultPort
	if len(fields) > 1 {
		port = strings.TrimPrefix(fields[1], ":")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, net.JoinHostPort(server, port))
	if err != nil {
		return nil, err
	}
	if err := c.Connect(username); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func command(c *client.Client, cmd string) error {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "open":
		return c.Open(arg)
	case "close":
		return c.CloseRoom(arg)
	case "enter":
		return c.Enter(arg)
	case "leave":
		return c.Leave()
	case "bye":
		return c.Bye()
	default:
		return fmt.Errorf("unknown command !%s\n%s", name, usage)
	}
}

func printMessages(c *client.Client) {
	for m := range c.Messages() {
		switch m.Type {
		case wire.TypeWhisper:
			sender, _, text := m.WhisperParts()
			fmt.Printf("\n[whisper from %s] %s\n> ", sender, text)
		case wire.TypeBroadcast:
			sender, room, text := m.BroadcastParts()
			fmt.Printf("\n[%s] %s: %s\n> ", room, sender, text)
		case wire.TypeConfirm:
			if m.Kind() == wire.ConfirmRoomEntered {
				fmt.Printf("\n%s [%s]\n> ", m.Text(), c.Room())
				continue
			}
			fmt.Printf("\n%s\n> ", m.Text())
		case wire.TypeError:
			fmt.Printf("\nError: %s\n> ", m.Text())
		}
	}
	fmt.Printf("\nConnection closed.\n> ")
}
