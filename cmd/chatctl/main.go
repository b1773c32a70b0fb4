// chatctl is a terminal chat client. It resolves the locally persisted
// session (prompting for credentials when there is none), loads the room
// directory and drops into a command loop bound to the selected room.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/designpro/chatkit/pkg/chat"
	"github.com/designpro/chatkit/pkg/config"
	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/rest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if err := run(ctx, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := identity.OpenDB(cfg.SQLite.File, os.DirFS(cfg.SQLite.Migrations))
	if err != nil {
		return fmt.Errorf("open session db: %w", err)
	}
	defer db.Close()

	resolver := identity.NewResolver(identity.NewSQLiteStore(db))
	stdin := bufio.NewScanner(os.Stdin)

	session, err := resolveOrSignIn(ctx, resolver, cfg.APIBaseURL, stdin)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", session.User.DisplayName, session.User.Role)

	api := rest.NewClient(cfg.APIBaseURL, session.Token)
	notifier := termNotifier{}
	recorder := &fileRecorder{}

	dir := chat.NewDirectory(api, session.User)
	transport := chat.NewSession(cfg.WSBaseURL, session.Token, api, chat.WithLogger(logger))
	rec := chat.NewReconciler(api, session.User, notifier)
	comp := chat.NewComposer(recorder)
	controller := chat.NewController(session.User, dir, transport, rec, comp, notifier, logger)
	defer controller.Close()

	printer := &printer{rec: rec}
	if err := controller.Start(ctx); err != nil {
		logger.Warn("startup", slog.Any("error", err))
	}
	printer.flush()

	fmt.Println(`commands: /rooms /join <id> /start <email> /users /file <path> /rec <path> /stop /quit`)
	for {
		if room, ok := controller.ActiveRoom(); ok {
			fmt.Printf("[%s] > ", room.Other(session.User).DisplayName)
		} else {
			fmt.Print("> ")
		}
		if !stdin.Scan() {
			return nil
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			printer.flush()
			continue
		}

		switch cmd, arg, _ := strings.Cut(line, " "); cmd {
		case "/quit":
			return nil
		case "/rooms":
			listRooms(controller, session.User)
		case "/users":
			listCandidates(ctx, controller)
		case "/join":
			id, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				fmt.Println("usage: /join <room id>")
				continue
			}
			if err := controller.SelectRoom(ctx, id); err != nil {
				logger.Warn("join", slog.Any("error", err))
			}
			printer.reset()
			printer.flush()
		case "/start":
			target, err := candidateByEmail(ctx, controller, strings.TrimSpace(arg))
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := controller.StartChat(ctx, target); err != nil {
				logger.Warn("start chat", slog.Any("error", err))
			}
			printer.reset()
			printer.flush()
		case "/file":
			if err := attachFile(controller.Composer(), strings.TrimSpace(arg)); err != nil {
				fmt.Println(err)
				continue
			}
			sendAndPrint(ctx, controller, printer)
		case "/rec":
			recorder.path = strings.TrimSpace(arg)
			if err := controller.Composer().StartRecording(); err != nil {
				fmt.Println(err)
			} else {
				fmt.Println("recording, /stop to send")
			}
		case "/stop":
			if err := controller.Composer().StopRecording(); err != nil {
				fmt.Println(err)
				continue
			}
			sendAndPrint(ctx, controller, printer)
		default:
			controller.Composer().SetText(line)
			sendAndPrint(ctx, controller, printer)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// resolveOrSignIn returns the persisted session, or authenticates and
// persists a fresh one when the local session is missing, invalid or its
// credential has expired.
func resolveOrSignIn(ctx context.Context, resolver *identity.Resolver, apiBase string, stdin *bufio.Scanner) (*identity.Session, error) {
	session, err := resolver.Resolve(ctx)
	if err == nil {
		if identity.CheckCredential(session.Token, time.Now()) == nil {
			return session, nil
		}
		fmt.Println("session expired, please sign in again")
	} else if !errors.Is(err, identity.ErrNoSession) && !errors.Is(err, identity.ErrInvalidSession) {
		return nil, err
	}

	fmt.Print("email: ")
	if !stdin.Scan() {
		return nil, errors.New("aborted")
	}
	email := strings.TrimSpace(stdin.Text())
	fmt.Print("password: ")
	if !stdin.Scan() {
		return nil, errors.New("aborted")
	}
	password := stdin.Text()

	res, err := rest.NewClient(apiBase, "").SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := resolver.Save(ctx, res.User, res.Token); err != nil {
		return nil, err
	}
	return resolver.Resolve(ctx)
}

func sendAndPrint(ctx context.Context, controller *chat.Controller, p *printer) {
	if err := controller.Send(ctx); err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return
		}
		slog.Warn("send", slog.Any("error", err))
		return
	}
	p.flush()
}

func listRooms(controller *chat.Controller, me identity.User) {
	rooms := controller.Rooms()
	if len(rooms) == 0 {
		fmt.Println("no chat rooms yet, /start <email> to open one")
		return
	}
	active, _ := controller.ActiveRoom()
	for _, room := range rooms {
		marker := " "
		if room.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %d  %s", marker, room.ID, room.Other(me).DisplayName)
		if room.UnreadCount > 0 {
			fmt.Printf("  (%d unread)", room.UnreadCount)
		}
		fmt.Println()
	}
}

func listCandidates(ctx context.Context, controller *chat.Controller) {
	users, err := controller.Candidates(ctx)
	if err != nil {
		fmt.Println("failed to load users:", err)
		return
	}
	for _, u := range users {
		fmt.Printf("  %s <%s> (%s)\n", u.DisplayName, u.Email, u.Role)
	}
}

func candidateByEmail(ctx context.Context, controller *chat.Controller, email string) (identity.User, error) {
	if email == "" {
		return identity.User{}, errors.New("usage: /start <email>")
	}
	users, err := controller.Candidates(ctx)
	if err != nil {
		return identity.User{}, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return identity.User{}, fmt.Errorf("no eligible user with email %s", email)
}

func attachFile(comp *chat.Composer, path string) error {
	if path == "" {
		return errors.New("usage: /file <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	comp.AttachFile(chat.Attachment{
		Name: filepath.Base(path),
		MIME: mimeType,
		Data: data,
	})
	return nil
}

// termNotifier renders user-facing cues on the terminal.
type termNotifier struct{}

func (termNotifier) Success(msg string) { fmt.Println("✔", msg) }
func (termNotifier) Error(msg string)   { fmt.Println("✘", msg) }
func (termNotifier) Cue()               { fmt.Print("\a") }

// fileRecorder satisfies the audio capture contract by reading a pre-recorded
// file; a terminal has no microphone affordance.
type fileRecorder struct {
	path string
}

func (r *fileRecorder) Start() error {
	if r.path == "" {
		return errors.New("no recording file, use /rec <path>")
	}
	if _, err := os.Stat(r.path); err != nil {
		return err
	}
	return nil
}

func (r *fileRecorder) Stop() ([]byte, error) {
	defer func() { r.path = "" }()
	return os.ReadFile(r.path)
}

// printer renders messages appended to the reconciler since the last flush.
type printer struct {
	rec     *chat.Reconciler
	printed int
}

func (p *printer) reset() { p.printed = 0 }

func (p *printer) flush() {
	messages := p.rec.Messages()
	for _, m := range messages[min(p.printed, len(messages)):] {
		p.print(m)
	}
	p.printed = len(messages)
}

func (p *printer) print(m chat.Message) {
	ts := m.Timestamp.Local().Format("15:04")
	switch {
	case m.FileURL != "":
		fmt.Printf("%s %s sent a file: %s\n", ts, m.SenderName, m.FileName())
	case m.AudioURL != "":
		fmt.Printf("%s %s sent a voice message\n", ts, m.SenderName)
	default:
		fmt.Printf("%s %s: %s\n", ts, m.SenderName, m.DisplayContent())
	}
}
