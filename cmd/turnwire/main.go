// Command turnwire is a terminal chat client over the streaming engine. It
// exists to exercise the full pipeline end to end: pick a provider and a
// store from the environment, stream responses as they arrive, and walk the
// tool grant flow interactively.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/turnwire/turnwire/config"
	"github.com/turnwire/turnwire/engine"
	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/provider/anthropic"
	"github.com/turnwire/turnwire/provider/openai"
	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/store/memory"
	"github.com/turnwire/turnwire/store/natskv"
	"github.com/turnwire/turnwire/store/postgres"
	"github.com/turnwire/turnwire/store/sqlite"
	"github.com/turnwire/turnwire/tools"
	"github.com/turnwire/turnwire/tools/webfetch"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	if err := run(context.Background(), cfg); err != nil {
		log.Fatal().Err(err).Msg("turnwire exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := provider.NewRegistry(anthropic.New(), openai.New())
	if _, err := registry.Get(cfg.Provider); err != nil {
		return err
	}

	catalog := tools.NewCatalog(webfetch.New())
	opts := []engine.Option{
		engine.WithToolHost(catalog, catalog.Definitions()),
		engine.WithLogger(log.Logger),
	}
	if cfg.AutoGrant {
		opts = append(opts, engine.WithAutoGrant())
	}
	eng := engine.New(store, registry, opts...)

	s := session.New("")
	fmt.Printf("session %s | provider %s | store %s | /quit to exit\n", s.ID, cfg.Provider, cfg.Store)

	cancel := store.Subscribe(s.ID, newPrinter().render)
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		err := eng.Send(ctx, engine.SendRequest{
			SessionID: s.ID,
			Provider:  cfg.Provider,
			Model:     provider.ModelConfig{ModelID: cfg.Model},
			Content:   []session.RequestContent{session.TextContent(line)},
		})
		if err != nil {
			log.Error().Err(err).Msg("send failed")
			continue
		}

		if !cfg.AutoGrant {
			if err := resolveGate(ctx, eng, store, s.ID, scanner); err != nil {
				log.Error().Err(err).Msg("tool flow failed")
			}
		}
	}
}

// resolveGate walks pending tool invocations, asking the user to grant or
// reject each. Continuation streams happen inside Grant/Reject, so by the
// time the gate is empty the follow-up response has been rendered too.
func resolveGate(ctx context.Context, eng *engine.Engine, store session.Store, sessionID string, scanner *bufio.Scanner) error {
	for {
		s, err := store.Get(ctx, sessionID)
		if err != nil {
			return err
		}

		pending := pendingTool(s)
		if pending == nil {
			return nil
		}

		fmt.Printf("\ntool request: %s(%s) [y/n] ", pending.ToolName, pending.RequestContent)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(scanner.Text())), "y") {
			err = eng.Grant(ctx, sessionID, pending.UseID)
		} else {
			err = eng.Reject(ctx, sessionID, pending.UseID)
		}
		if err != nil {
			return err
		}
	}
}

func pendingTool(s *session.Session) *session.ToolTurn {
	for _, turn := range s.Turns {
		if t, ok := turn.(*session.ToolTurn); ok && !t.Done {
			return t
		}
	}
	return nil
}

func openStore(cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), func() {}, nil

	case "sqlite":
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	case "postgres":
		st, err := postgres.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case "nats":
		srv, err := natskv.NewServer(cfg.NATSDir)
		if err != nil {
			return nil, nil, err
		}
		nc, err := srv.Connect()
		if err != nil {
			srv.Shutdown()
			return nil, nil, err
		}
		js, err := nc.JetStream()
		if err != nil {
			srv.Shutdown()
			return nil, nil, err
		}
		st, err := natskv.New(js, "")
		if err != nil {
			srv.Shutdown()
			return nil, nil, err
		}
		return st, func() { nc.Close(); srv.Shutdown() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// printer renders streaming snapshots incrementally: on every store write it
// prints whatever text grew since the previous write.
type printer struct {
	printed map[string]int // messageID:block -> chars already printed
}

func newPrinter() *printer {
	return &printer{printed: make(map[string]int)}
}

func (p *printer) render(s *session.Session) {
	response := s.LastResponse()
	if response == nil {
		return
	}
	for i, block := range response.Message {
		key := fmt.Sprintf("%s:%d", response.MessageID, i)
		switch block.Type {
		case session.BlockText:
			if tail := block.Text[p.printed[key]:]; tail != "" {
				fmt.Print(tail)
				p.printed[key] += len(tail)
			}
		case session.BlockToolUse:
			if p.printed[key] == 0 && block.Name != "" {
				fmt.Printf("[calling %s]\n", block.Name)
				p.printed[key] = 1
			}
		case session.BlockRefusal:
			if tail := block.Refusal[p.printed[key]:]; tail != "" {
				fmt.Print(tail)
				p.printed[key] += len(tail)
			}
		}
	}
	if response.Closed() && response.Stop.Type == session.StopMessage {
		fmt.Printf("\n[%s] %s\n", response.Stop.Level, response.Stop.Reason)
	}
}
