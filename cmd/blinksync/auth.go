package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blinksync/pkg/auth"
	"blinksync/pkg/prompt"
	"blinksync/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Blink credentials",
	Long: `Manage stored Blink account credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

EMAIL and PASSWORD from the environment always take precedence.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store Blink credentials securely",
	Long: `Store the email and password of a Blink account in the system keychain
or the encrypted credentials file. The password is read without echo.

The one-time PIN is not stored; it is asked for every time sync starts.`,
	Example: `  # Interactive login
  blinksync auth login

  # Login with email
  blinksync auth login me@example.com`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Remove stored credentials",
	Long: `Remove stored Blink credentials.

Without an email the only stored account is removed; with several stored
accounts the email is required.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Blink accounts with masked passwords.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	auth.ShowLoginGuide()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	term := prompt.NewTerminal()

	var address string
	if len(args) > 0 {
		address = strings.TrimSpace(args[0])
	} else {
		address, err = term.ReadLine(ctx, "Blink email: ")
		if err != nil {
			ui.PrintError("Failed to read email", err.Error())
			os.Exit(1)
		}
	}

	if existing, _ := manager.Retrieve(address); existing != nil {
		answer, _ := term.ReadLine(ctx, fmt.Sprintf("Account '%s' already exists. Update password? (y/N): ", address))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return
		}
	}

	password, err := term.ReadSecret(ctx, "Blink password: ")
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}

	account := &auth.Account{
		Email:        address,
		Password:     password,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Account saved: " + address)
	fmt.Println("\nStart mirroring with:")
	fmt.Println("  blinksync sync --save-directory <dir>")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var address string
	if len(args) > 0 {
		address = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found")
			return
		}
		if len(accounts) > 1 {
			ui.PrintError("Several accounts are stored, name the one to remove")
			for _, account := range accounts {
				fmt.Printf("  %s\n", account.Email)
			}
			os.Exit(1)
		}
		address = accounts[0].Email
	}

	if err := manager.Delete(address); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + address)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'blinksync auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Email: %s\n", i+1, sanitized.Email)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}
