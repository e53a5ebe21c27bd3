package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/khalilhajj/PfeManagement/internal/dto"
	"github.com/khalilhajj/PfeManagement/internal/service"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	userSvc service.UserService
	out     io.Writer
}

func (cli *commandLine) usage(fs *flag.FlagSet) {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username NAME -email EMAIL -role student|teacher|administrator|company [-first-name F] [-last-name L]")
	fmt.Fprintln(cli.out, "The password is prompted next.")
	if fs != nil {
		fs.SetOutput(cli.out)
		fs.PrintDefaults()
	}
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	req := dto.CreateUserRequest{}
	fs.StringVar(&req.Username, "username", "", "login name")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.Role, "role", "", "student, teacher, administrator or company")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	fs.StringVar(&req.Phone, "phone", "", "phone number")

	if len(args) > 0 {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		cli.usage(fs)
		return errHelp
	}
	if req.Username == "" || req.Email == "" || req.Role == "" {
		cli.usage(fs)
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password: ")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	req.Password = string(pwd)

	user, err := cli.userSvc.Create(ctx, &req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %q (%s)\n", user.Role, user.Username, user.ID)
	return nil
}
