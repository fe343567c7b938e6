// Command agentflow attaches to a running agent process over a
// websocket broadcaster and mirrors its activity: structured events,
// raw output and permission prompts. Completed turns are persisted to
// the local message store; prompts can be answered from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zhubert/agentflow/agent"
	"github.com/zhubert/agentflow/config"
	"github.com/zhubert/agentflow/logger"
	"github.com/zhubert/agentflow/session"
	"github.com/zhubert/agentflow/store"
	"github.com/zhubert/agentflow/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agentflow:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		processID = flag.String("process", "", "process id to observe (required)")
		chatID    = flag.String("chat", "", "chat id to persist turns under (empty creates a new chat)")
		url       = flag.String("url", "", "websocket broadcaster url (overrides config)")
		debug     = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *processID == "" {
		flag.Usage()
		return fmt.Errorf("-process is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *url != "" {
		cfg.Transport.URL = *url
	}
	if cfg.Transport.URL == "" {
		return fmt.Errorf("no transport url: pass -url or set transport.url in the config")
	}

	if err := logger.Init(logger.Options{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return err
	}
	defer logger.Close()
	logger.SetDebug(*debug || cfg.Log.Level == "debug")

	storePath, err := cfg.StorePath()
	if err != nil {
		return err
	}
	db, err := store.Open(storePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *chatID == "" {
		chat, err := db.CreateChat(ctx)
		if err != nil {
			return err
		}
		*chatID = chat.ID
		fmt.Println("created chat", chat.ID)
	}

	client, err := transport.Dial(ctx, cfg.Transport.URL)
	if err != nil {
		return err
	}
	defer client.Close()

	orch := session.New(client, db, session.Options{MaxRawLines: cfg.Output.MaxRawLines})
	watch := orch.Observe(ctx, *processID, *chatID, session.Callbacks{
		OnEvent:        printEvent,
		OnRawLine:      printRawLine,
		OnPermission:   printPermission,
		OnStatusChange: printStatus,
		OnTurnSaved: func(msg store.Message) {
			fmt.Printf("[saved] turn persisted as message %s\n", msg.ID)
		},
	})
	defer watch.Stop()

	go answerPrompts(ctx, watch)

	<-ctx.Done()
	return nil
}

func printEvent(ev agent.Event) {
	switch ev := ev.(type) {
	case agent.SystemEvent:
		if ev.Subtype == "init" {
			fmt.Printf("[session] %s\n", ev.SessionID)
		}
	case agent.AssistantEvent:
		for _, block := range ev.Blocks {
			switch block := block.(type) {
			case agent.TextBlock:
				fmt.Println(block.Text)
			case agent.ToolUseBlock:
				fmt.Printf("[tool] %s %s\n", block.Name, block.Input)
			}
		}
	case agent.UserEvent:
		for _, res := range ev.Results {
			fmt.Printf("[result] %s: %s\n", res.ToolUseID, res.Content)
		}
	case agent.ResultEvent:
		fmt.Printf("[turn done] %s\n", ev.Subtype)
	}
}

func printRawLine(line agent.OutputLine) {
	fmt.Printf("[%s] %s\n", line.Kind, line.Content)
}

func printPermission(req *agent.PermissionRequest) {
	fmt.Printf("\n[permission] %s\n", req.Description)
	fmt.Println("answer y or n:")
}

func printStatus(status agent.ProcessStatus) {
	fmt.Printf("[status] %s\n", status)
}

// answerPrompts forwards y/n answers from stdin to the outstanding
// permission prompt.
func answerPrompts(ctx context.Context, watch *session.Watch) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if watch.Permission() == nil {
			continue
		}
		var err error
		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "y", "yes":
			err = watch.Approve(ctx)
		case "n", "no":
			err = watch.Deny(ctx)
		default:
			fmt.Println("answer y or n:")
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to send answer:", err)
		}
	}
}
