package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/smashquiz/go/internal/dbconfig"
	"github.com/mcdev12/smashquiz/go/internal/models"
	"github.com/mcdev12/smashquiz/go/internal/quiz/client"
	"github.com/mcdev12/smashquiz/go/internal/quiz/config"
	"github.com/mcdev12/smashquiz/go/internal/quiz/engine"
	"github.com/mcdev12/smashquiz/go/internal/quiz/settings"
	"github.com/mcdev12/smashquiz/go/internal/quiz/view"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const help = `commands:
  form                     show the saved rule and team names
  teams <a,b,c>            set team names for the next start
  stock <n> [steal]        enable stock mode (n = 0 disables it)
  start                    save the form and start a game
  select <row> <smash|damage>
  ok | ng                  submit the armed action as correct / incorrect
  undo | redo | reset | sync
  font <size>              set the display font size
  show | help | quit`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defaults := settings.Settings{Rule: cfg.DefaultRule(), Names: cfg.DefaultTeams()}
	store, closeStore, err := openStore(ctx, cfg, defaults)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open settings store")
	}
	defer closeStore()

	eng := engine.New(client.NewCommandClient(nil, cfg.Gateway.BackendURL))
	op := client.NewOperator(eng, store, defaults)

	// Broadcasts from other operators keep this copy current.
	sub := client.NewSubscriber(cfg.Gateway.URL+"?role=operator", op.HandleMessage,
		client.WithBootstrap(func(ctx context.Context) error {
			_, err := op.Sync(ctx)
			return err
		}))
	go func() {
		if err := sub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("subscriber stopped")
		}
	}()

	r := &repl{op: op, form: op.OpenForm(ctx), out: os.Stdout}
	fmt.Fprintln(r.out, help)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := r.exec(ctx, line); quit {
				return
			}
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config, defaults settings.Settings) (settings.Store, func(), error) {
	switch cfg.Settings.Driver {
	case "postgres":
		db, err := dbconfig.NewConfigFromEnv().Open(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := settings.Bootstrap(ctx, db, defaults); err != nil {
			db.Close()
			return nil, nil, err
		}
		return settings.NewPostgresStore(settings.New(db)), func() { db.Close() }, nil
	case "file", "":
		return settings.NewFileStore(cfg.Settings.Path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown settings driver %q", cfg.Settings.Driver)
	}
}

type repl struct {
	op   *client.Operator
	form settings.Settings
	out  io.Writer
}

func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(r.out, help)
		return false
	case "form":
		r.printForm()
		return false
	case "teams":
		r.form.Names = strings.Split(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "teams")), ",")
		r.printForm()
		if err := r.op.SaveForm(ctx, r.form); err != nil {
			fmt.Fprintf(r.out, "form not saved: %v\n", err)
		}
		return false
	case "stock":
		if err = r.setStock(fields[1:]); err == nil {
			err = r.op.SaveForm(ctx, r.form)
		}
	case "start":
		_, err = r.op.Start(ctx, r.form)
	case "select":
		err = r.selectRow(fields[1:])
	case "ok", "ng":
		var submitted bool
		submitted, err = r.op.Submit(ctx, fields[0] == "ok")
		if err == nil && !submitted {
			fmt.Fprintln(r.out, "nothing selected")
		}
	case "undo":
		_, err = r.op.Undo(ctx)
	case "redo":
		_, err = r.op.Redo(ctx)
	case "reset":
		_, err = r.op.Reset(ctx)
	case "sync":
		_, err = r.op.Sync(ctx)
	case "font":
		if len(fields) != 2 {
			err = fmt.Errorf("usage: font <size>")
			break
		}
		var size int
		size, err = strconv.Atoi(fields[1])
		if err == nil {
			ui := r.op.SetFontSize(ctx, size)
			fmt.Fprintf(r.out, "font size %d\n", ui.FontSize)
		}
	case "show":
	default:
		err = fmt.Errorf("unknown command %q", fields[0])
	}

	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
	r.show()
	return false
}

func (r *repl) setStock(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: stock <n> [steal]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	if n <= 0 {
		r.form.Rule.Stock = nil
		return nil
	}
	r.form.Rule.Stock = &models.StockRule{Count: n, CanSteal: len(args) > 1 && args[1] == "steal"}
	return nil
}

func (r *repl) selectRow(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: select <row> <smash|damage>")
	}
	row, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	board := r.op.Board()
	if row < 1 || row > len(board.Rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	armed, err := r.op.Select(board.Rows[row-1].Name, models.Actor(args[1]))
	if err != nil {
		return err
	}
	if !armed {
		fmt.Fprintln(r.out, "selection cleared")
	}
	return nil
}

func (r *repl) printForm() {
	stock := "off"
	if r.form.Rule.Stock != nil {
		stock = fmt.Sprintf("%d (steal=%v)", r.form.Rule.Stock.Count, r.form.Rule.Stock.CanSteal)
	}
	fmt.Fprintf(r.out, "stock: %s\nteams: %s\n", stock, strings.Join(r.form.Names, ", "))
}

func (r *repl) show() {
	board := r.op.Board()
	if err := view.Render(r.out, board); err != nil {
		log.Error().Err(err).Msg("failed to render board")
	}
	if armed, ok := r.op.Armed(); ok {
		fmt.Fprintf(r.out, "armed: %s %s\n", armed.Team, armed.Actor)
	}
}
