package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/codec"
	"chat-relay/domain"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const localHelp = domain.HelpText + "\n  /udp [message] - Send a message over UDP"

// sender is the part of the client the input loop needs.
type sender interface {
	Send(content string) error
	SendDatagram(text string) error
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects, prints whatever the server sends and forwards what the user types.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	renderer := Renderer{Colours: config.Colours}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go scanLines(os.Stdin, lines)

	username := strings.TrimSpace(config.Username)
	if username == "" {
		fmt.Print("Enter your username: ")
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line := <-lines:
			username = strings.TrimSpace(line)
		}
	}

	// 3. Establish connection to the chat server.
	c, err := client.Dial(ctx, log, client.Options{
		Host:            config.Host,
		TCPPort:         config.TCPPort,
		UDPPort:         config.UDPPort,
		Username:        username,
		ConnectTimeout:  config.ConnectTimeout,
		ListenDatagrams: true,
	})
	if err != nil {
		var dialErr *client.DialError
		if errors.As(err, &dialErr) {
			return exitRuntime, fmt.Errorf("%w [%s], retry later", err, dialErr.Kind)
		}
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = c.Close()
	}()

	// 4. Print records and datagrams as they arrive.
	errChan := make(chan error, 1)
	go receiveRecords(log, c, renderer, errChan)
	go receiveDatagrams(c, renderer)

	// 5. Forward user input until quit, end of input or a lost connection.
	for {
		select {
		case <-ctx.Done():
			_ = c.Send(domain.CmdQuit)
			return exitOK, nil
		case err := <-errChan:
			log.Debug("Receive loop ended", "error", err)
			fmt.Println(renderer.Notice(domain.QuitNotice))
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				_ = c.Send(domain.CmdQuit)
				return exitOK, nil
			}
			quit, err := handleLine(c, renderer, os.Stdout, line)
			if err != nil {
				fmt.Println(renderer.Notice(domain.QuitNotice))
				return exitRuntime, err
			}
			if quit {
				// Leaves time for the quit notice to be printed
				waitFor(errChan, time.Second)
				return exitOK, nil
			}
		}
	}
}

func scanLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func receiveRecords(log *slog.Logger, c *client.Client, renderer Renderer, errChan chan<- error) {
	for {
		record, err := c.Receive()
		if err != nil {
			if codec.IsDecodeError(err) {
				log.Warn("Skipping malformed record", "error", err)
				continue
			}
			errChan <- err
			return
		}
		fmt.Println(renderer.Record(record))
	}
}

func receiveDatagrams(c *client.Client, renderer Renderer) {
	for {
		text, err := c.ReceiveDatagram(time.Time{})
		if err != nil {
			return
		}
		fmt.Println(renderer.Datagram(text))
	}
}

// handleLine runs one line of user input and reports whether the user quits.
func handleLine(s sender, renderer Renderer, out io.Writer, line string) (bool, error) {
	content := strings.TrimSpace(line)
	switch {
	case content == "":
		return false, nil
	case content == domain.CmdQuit:
		return true, s.Send(content)
	case content == domain.CmdHelp:
		_, _ = fmt.Fprintln(out, renderer.Notice(localHelp))
		return false, nil
	case strings.HasPrefix(content, domain.CmdUDP+" "):
		if err := s.SendDatagram(strings.TrimPrefix(content, domain.CmdUDP+" ")); err != nil {
			_, _ = fmt.Fprintln(out, renderer.Notice("UDP send failed: "+err.Error()))
		}
		return false, nil
	default:
		return false, s.Send(line)
	}
}

func waitFor(errChan <-chan error, d time.Duration) {
	select {
	case <-errChan:
	case <-time.After(d):
	}
}
