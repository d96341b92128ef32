package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

type user struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Role     string  `json:"role"`
}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Register, sign in and sign out",
	}
	cmd.AddCommand(registerCmd(), loginCmd(), logoutCmd(), whoamiCmd())
	return cmd
}

func registerCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"username": username, "password": password}
			if email != "" {
				payload["email"] = email
			}

			var created user
			if err := newClient().do(cmd.Context(), http.MethodPost, "/auth/register", payload, &created); err != nil {
				return err
			}
			fmt.Printf("✓ User registered: %s (id %d)\n", created.Username, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address (optional)")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Token string `json:"token"`
				User  user   `json:"user"`
			}
			payload := map[string]string{"username": username, "password": password}
			if err := newClient().do(cmd.Context(), http.MethodPost, "/auth/login", payload, &result); err != nil {
				return err
			}
			if err := saveToken(result.Token); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}
			fmt.Printf("✓ Logged in as: %s\n", result.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if c.token == "" {
				fmt.Println("Not logged in")
				return nil
			}
			err := c.do(cmd.Context(), http.MethodPost, "/auth/logout", nil, nil)
			var apiErr *apiError
			if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
				return err
			}
			if err := os.Remove(tokenFile()); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Println("✓ Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var u user
			if err := newClient().do(cmd.Context(), http.MethodGet, "/auth/user", nil, &u); err != nil {
				return err
			}
			fmt.Printf("✓ %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
}
