// Command accountctl is the operator CLI for the account service.
//
//	accountctl hash-password [-iterations N]
//	accountctl create-superuser -email EMAIL [-password PASSWORD]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"account-service/internal/db"
	"account-service/internal/password"
	"account-service/internal/user"
)

// readPassword is replaced in tests.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// bootstrapSuperuser is replaced in tests.
var bootstrapSuperuser = func(ctx context.Context, email, plain string) (user.User, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return user.User{}, errors.New("missing required env: DATABASE_URL")
	}
	pool, err := db.Connect(ctx, dsn, 2)
	if err != nil {
		return user.User{}, err
	}
	defer pool.Close()

	return user.BootstrapSuperuser(ctx, user.NewRepository(db.New(pool)), email, plain)
}

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "accountctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: accountctl <hash-password|create-superuser> [flags]")
	}

	switch args[0] {
	case "hash-password":
		return hashPassword(args[1:], out)
	case "create-superuser":
		return createSuperuser(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func hashPassword(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(out)
	iterations := fs.Int("iterations", password.DefaultIterations, "PBKDF2 iteration count")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprint(out, "Enter password: ")
	plain, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if len(plain) == 0 {
		return errors.New("password must not be empty")
	}

	salt, err := password.GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := password.HashWith(string(plain), salt, *iterations)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, hash)
	return nil
}

func createSuperuser(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-superuser", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "superuser email")
	plain := fs.String("password", "", "superuser password; generated when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	generated := *plain == ""
	if generated {
		random, err := password.RandomPassword()
		if err != nil {
			return err
		}
		*plain = random
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	u, err := bootstrapSuperuser(ctx, *email, *plain)
	if err != nil {
		return fmt.Errorf("create superuser: %w", err)
	}

	fmt.Fprintf(out, "superuser %s (%s) is ready\n", u.Email, u.ID)
	if generated {
		fmt.Fprintf(out, "password: %s\n", *plain)
	}
	return nil
}
