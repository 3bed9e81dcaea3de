package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/park285/hotseat-chess/internal/adapter/chesspresenter"
	"github.com/park285/hotseat-chess/internal/boardclient"
	"github.com/park285/hotseat-chess/internal/game"
	"github.com/park285/hotseat-chess/internal/msgcat"
	"github.com/park285/hotseat-chess/internal/rules"
	"github.com/park285/hotseat-chess/pkg/chessdto"
)

func main() {
	apiURL := flag.String("api", envOr("HOTSEAT_API_URL", "http://localhost:8080"), "board API base URL")
	wsURL := flag.String("ws", envOr("HOTSEAT_WS_URL", "ws://localhost:8081"), "live feed base URL")
	locale := flag.String("locale", envOr("MESSAGE_LOCALE", msgcat.DefaultLocale), "message locale")
	timeout := flag.Duration("timeout", 8*time.Second, "request timeout")
	fixed := flag.Bool("white", false, "always draw the board from white's side")
	dark := flag.Bool("dark", false, "glyph colours for dark terminals")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	catalog, err := msgcat.New(*locale, "")
	if err != nil {
		log.Fatalf("messages: %v", err)
	}
	client := boardclient.New(*apiURL, boardclient.WithTimeout(*timeout))
	out := &printer{w: os.Stdout, formatter: chesspresenter.NewFormatter(catalog), fixed: *fixed, dark: *dark}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, out, *wsURL, args); err != nil {
		var apiErr *boardclient.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, color.RedString(apiErr.Message))
			os.Exit(1)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, client *boardclient.Client, out *printer, wsURL string, args []string) error {
	cmd, rest := strings.ToLower(args[0]), args[1:]
	need := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", cmd, n, len(rest))
		}
		return nil
	}

	switch cmd {
	case "new":
		st, err := client.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out.w, "session:", st.SessionID)
		out.state(st)
	case "show":
		if err := need(1); err != nil {
			return err
		}
		st, err := client.State(ctx, rest[0])
		if err != nil {
			return err
		}
		out.state(st)
	case "move":
		if err := need(3); err != nil {
			return err
		}
		resp, err := client.Move(ctx, rest[0], rest[1], rest[2])
		if err != nil {
			return err
		}
		if !resp.Accepted {
			out.rejected(rest[1], rest[2])
		}
		out.state(resp.State)
	case "undo", "reset":
		if err := need(1); err != nil {
			return err
		}
		op := client.Undo
		if cmd == "reset" {
			op = client.Reset
		}
		st, err := op(ctx, rest[0])
		if err != nil {
			return err
		}
		out.state(st)
	case "end":
		if err := need(1); err != nil {
			return err
		}
		return client.End(ctx, rest[0])
	case "watch":
		if err := need(1); err != nil {
			return err
		}
		w := boardclient.NewWatcher(wsURL, rest[0], 5)
		return w.Run(ctx, func(st *chessdto.SessionState) {
			fmt.Fprintln(out.w, strings.Repeat("-", 24))
			out.state(st)
		})
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

type printer struct {
	w         io.Writer
	formatter *chesspresenter.Formatter
	// fixed keeps white at the bottom instead of turning the board to the
	// side to move.
	fixed bool
	dark  bool
}

func (p *printer) state(st *chessdto.SessionState) {
	if st == nil {
		return
	}
	perspective := game.Side(st.Status.SideToMove)
	if p.fixed || !perspective.Valid() {
		perspective = game.White
	}
	board, err := rules.DrawBoard(game.Position(st.FEN), perspective, p.dark)
	if err != nil {
		log.Printf("draw board: %v", err)
	} else {
		fmt.Fprintln(p.w, board)
	}
	fmt.Fprintln(p.w, statusColor(st.Status.Class).Sprint(st.Status.Text))
	if len(st.Captured.White) > 0 || len(st.Captured.Black) > 0 {
		fmt.Fprintf(p.w, "%s: %s\n", p.formatter.SideName(game.White), strings.Join(st.Captured.White, " "))
		fmt.Fprintf(p.w, "%s: %s\n", p.formatter.SideName(game.Black), strings.Join(st.Captured.Black, " "))
	}
	if st.History == "" {
		fmt.Fprintln(p.w, p.formatter.EmptyHistory())
	} else {
		fmt.Fprintln(p.w, st.History)
	}
}

func (p *printer) rejected(from, to string) {
	fmt.Fprintln(p.w, color.YellowString(p.formatter.Rejected(from, to)))
}

func statusColor(class string) *color.Color {
	switch class {
	case "checkmate":
		return color.New(color.FgRed, color.Bold)
	case "check":
		return color.New(color.FgYellow, color.Bold)
	case "black-turn":
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgWhite)
	}
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintln(os.Stderr, strings.Join([]string{
		"usage: chessctl [flags] <command> [args]",
		"",
		"  new                      start a game",
		"  show  <id>               print the board",
		"  move  <id> <from> <to>   move a piece, e.g. move <id> e2 e4",
		"  undo  <id>               take back the last move",
		"  reset <id>               start over",
		"  end   <id>               delete the game",
		"  watch <id>               follow the live feed",
		"",
	}, "\n"))
	flag.PrintDefaults()
}
