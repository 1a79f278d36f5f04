// Package main provides a terminal client for the teamchat server: it joins
// one team room, prints incoming messages, and publishes lines read from
// standard input.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/coregx/teamchat/client"
	"github.com/coregx/teamchat/wire"
)

// LogrusLogger adapts logrus to the teamchat.Logger interface.
type LogrusLogger struct {
	logger logrus.FieldLogger
}

func (l *LogrusLogger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }
func (l *LogrusLogger) Infof(format string, args ...interface{})  { l.logger.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...interface{})  { l.logger.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }
func (l *LogrusLogger) Info(message string)                       { l.logger.Info(message) }

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "websocket address of the teamchat server")
	team := flag.String("team", "", "team room to join")
	senderID := flag.String("sender-id", "", "authenticated sender identifier")
	senderName := flag.String("sender-name", "", "sender display name")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *team == "" || *senderID == "" || *senderName == "" {
		log.Fatal("--team, --sender-id and --sender-name are required")
	}

	connector, err := client.NewConnector(*addr,
		client.WithSender(*senderID, *senderName),
		client.WithLogger(&LogrusLogger{logger: log}),
		client.WithErrorHandler(func(e wire.ErrorPayload) {
			fmt.Fprintf(os.Stderr, "!! %s: %s\n", e.Kind, e.Detail)
		}),
	)
	if err != nil {
		log.Fatalf("failed to create connector: %v", err)
	}
	defer connector.Close()

	if err := connector.Connect(context.Background()); err != nil {
		log.Fatalf("failed to connect to %s: %v", *addr, err)
	}

	messages, err := connector.JoinRoom(*team)
	if err != nil {
		log.Fatalf("failed to join room %s: %v", *team, err)
	}

	go func() {
		for msg := range messages {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04:05"), msg.SenderName, msg.Body)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		body := strings.TrimSpace(scanner.Text())
		if body == "" {
			continue
		}
		if err := connector.Publish(*team, body); err != nil {
			fmt.Fprintf(os.Stderr, "!! failed to send: %v\n", err)
		}
	}
}
