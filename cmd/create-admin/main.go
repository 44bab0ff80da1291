package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/elskow/users-api/internal/auth"
	"github.com/elskow/users-api/internal/database"
	"github.com/elskow/users-api/internal/server"
	"github.com/elskow/users-api/internal/user"
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errMissingFields    = errors.New("all fields are required")
	errAdminExists      = errors.New("an administrator already exists")
)

// readPassword reads a line from the terminal without echo.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

type passwordEncoder interface {
	StoredPassword(role user.Role, password string) (string, error)
}

func main() {
	os.Exit(realMain())
}

// realMain returns the exit code so deferred cleanup runs before exiting.
func realMain() int {
	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvDevelopment)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	logger, err := server.NewLogger(cfg.Env)
	if err != nil {
		log.Printf("Failed to build logger: %v", err)
		return 1
	}
	defer logger.Sync()

	manager, err := database.NewManager(&cfg.Database, logger)
	if err != nil {
		log.Printf("Database error: %v", err)
		return 1
	}
	defer manager.Close()

	users := user.NewRepository(manager.DB())
	passwords := auth.NewService(&cfg.Auth, logger, users, nil, nil)

	admin, err := run(context.Background(), bufio.NewReader(os.Stdin), os.Stdout, users, passwords)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		return 1
	}

	logger.Info("first admin created", zap.String("email", admin.Email))
	fmt.Printf("\nSuccess: administrator %s created\n", admin.Email)
	return 0
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label+": ")
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label+": ")
	pw, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pw)), nil
}

func run(ctx context.Context, in *bufio.Reader, out io.Writer, users user.Repository, passwords passwordEncoder) (*user.User, error) {
	fmt.Fprintln(out, "=== Create the first administrator ===")

	exists, err := users.AdminExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check existing admin: %w", err)
	}
	if exists {
		return nil, errAdminExists
	}

	var fields [3]string
	for i, label := range []string{"Name", "Surname", "Email"} {
		if fields[i], err = prompt(in, out, label); err != nil {
			return nil, err
		}
	}
	password, err := promptPassword(out, "Password")
	if err != nil {
		return nil, err
	}
	confirm, err := promptPassword(out, "Confirm password")
	if err != nil {
		return nil, err
	}

	if password != confirm {
		return nil, errPasswordMismatch
	}
	if fields[0] == "" || fields[1] == "" || fields[2] == "" || password == "" {
		return nil, errMissingFields
	}

	stored, err := passwords.StoredPassword(user.RoleAdmin, password)
	if err != nil {
		return nil, fmt.Errorf("encode password: %w", err)
	}

	admin := &user.User{
		Name:         fields[0],
		Surname:      fields[1],
		Email:        fields[2],
		Password:     stored,
		Status:       user.StatusActive,
		Role:         user.RoleAdmin,
		Notification: true,
	}
	admin.MarkConfirmed(time.Now())
	if err := users.CreateUser(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
