package main

import (
	"context"
	"fmt"

	"github.com/trezcool/shule/core/user"
)

// addUser creates an active user with the password policy applied.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	usr, err := cli.usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "user %s (%s) created with id %s\n", usr.Email, usr.Role, usr.ID)
	return nil
}
