package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sadopc/focusdo/internal/backup"
	"github.com/sadopc/focusdo/internal/config"
	"github.com/sadopc/focusdo/internal/focus"
	"github.com/sadopc/focusdo/internal/logging"
	"github.com/sadopc/focusdo/internal/store"
	"github.com/sadopc/focusdo/internal/tui"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml (default: user config dir)")
	exportDir := flag.String("export", "", "write a JSON backup into `dir` and exit")
	importFile := flag.String("import", "", "replace all data with the JSON backup `file` and exit")
	csvFile := flag.String("csv", "", "write all tasks as CSV to `file` and exit")
	initConfig := flag.String("init-config", "", "write a default config to `file` and exit")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if *initConfig != "" {
		if err := config.WriteDefault(*initConfig); err != nil {
			return err
		}
		fmt.Println("Wrote", *initConfig)
		return nil
	}

	path := *configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := store.New(cfg.DBPath, store.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := backup.NewService(s, log)
	switch {
	case *exportDir != "":
		out, err := svc.WriteFile(ctx, *exportDir)
		if err != nil {
			return err
		}
		fmt.Println("Exported to", out)
		return nil
	case *importFile != "":
		if err := svc.Restore(ctx, *importFile); err != nil {
			return err
		}
		fmt.Println("Restored", *importFile)
		return nil
	case *csvFile != "":
		return writeCSV(ctx, s, *csvFile)
	}

	log.Info("starting", zap.String("db", cfg.DBPath), zap.Duration("focus", cfg.FocusDuration()))

	prefs := store.NewPrefs(s)
	completions := make(chan focus.Completion, 1)
	timer, err := focus.New(ctx, prefs,
		focus.WithDuration(cfg.FocusDuration()),
		focus.WithInterval(cfg.TickInterval),
		focus.WithLogger(log),
		focus.WithSessionLog(s),
		focus.OnComplete(func(c focus.Completion) {
			select {
			case completions <- c:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("restore timer: %w", err)
	}
	defer timer.Close()

	app := tui.NewApp(ctx, tui.Env{
		Store:       s,
		Prefs:       prefs,
		Timer:       timer,
		Completions: completions,
		Backup:      svc,
		BackupDir:   cfg.BackupDir,
		DBPath:      cfg.DBPath,
		Log:         log,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func writeCSV(ctx context.Context, s *store.Store, path string) error {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return err
	}
	lists, err := s.AllLists(ctx)
	if err != nil {
		return err
	}
	if err := backup.WriteTasksCSV(path, tasks, lists); err != nil {
		return err
	}
	fmt.Printf("Wrote %d tasks to %s\n", len(tasks), path)
	return nil
}
