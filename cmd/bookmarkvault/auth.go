package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookmarkvault/pkg/auth"
	"bookmarkvault/pkg/config"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/ui"
	"bookmarkvault/pkg/xapi"
)

var (
	// Auth command flags
	skipVerify bool
	logoutAll  bool
	expiresIn  time.Duration
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage X API tokens",
	Long: `Manage stored X API tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your tokens or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an X API token securely",
	Long: `Store an OAuth 2.0 user token in the system keychain or encrypted file.

You will be prompted for:
  - Access token
  - Refresh token (optional, enables automatic renewal)
  - Client ID (required when a refresh token is given)

The token is checked against the API before it is saved unless --skip-verify
is given.`,
	Example: `  # Store the default account
  bookmarkvault auth login

  # Store a second account
  bookmarkvault auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored tokens",
	Example: `  # Remove the default account
  bookmarkvault auth logout

  # Remove everything
  bookmarkvault auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked token information.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "save without calling the API")
	loginCmd.Flags().DurationVar(&expiresIn, "expires-in", 2*time.Hour, "lifetime of the access token (0 = never expires)")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

// accountArg returns the account named on the command line or the configured default
func accountArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if accountName != "" {
		return accountName
	}
	return "default"
}

func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := accountArg(args)
	reader := bufio.NewReader(os.Stdin)

	auth.ShowTokenGuide(ui.Output())

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account %q already has a stored token. Overwrite? (y/N): ", name)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Login cancelled.")
			return nil
		}
	}

	cred := &auth.Credential{Name: name}

	if cred.AccessToken, err = readSecret("Access token: "); err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	if cred.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}

	if cred.RefreshToken, err = readSecret("Refresh token (optional): "); err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	if cred.RefreshToken != "" {
		fmt.Print("Client ID: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read client id: %w", err)
		}
		cred.ClientID = strings.TrimSpace(input)
		if cred.ClientID == "" {
			return fmt.Errorf("client id is required to refresh tokens")
		}
	}

	if expiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(expiresIn)
	}

	if !skipVerify {
		if err := verifyToken(cmd.Context(), &cfg.X, cred, log); err != nil {
			return err
		}
	}

	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Token stored for account %q", name))
	return nil
}

// verifyToken asks the API who the token belongs to
func verifyToken(ctx context.Context, cfg *config.XConfig, cred *auth.Credential, log logger.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	user, err := xapi.NewClient(cfg, cred.AccessToken, log).Me(ctx)
	if err != nil {
		return fmt.Errorf("token was rejected by the API: %w", err)
	}
	ui.PrintInfo("Authenticated as", "@"+user.Username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove tokens: %w", err)
		}
		ui.PrintSuccess("All stored tokens removed")
		return nil
	}

	name := accountArg(args)
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove token for %q: %w", name, err)
	}
	ui.PrintSuccess(fmt.Sprintf("Token removed for account %q", name))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(creds) == 0 {
		ui.PrintWarning("No stored accounts. Run 'bookmarkvault auth login' to add one.")
		return nil
	}

	ui.PrintHighlight(fmt.Sprintf("%d stored account(s)", len(creds)))
	for _, c := range creds {
		safe := auth.SanitizeCredential(c)
		expiry := "never"
		if !safe.ExpiresAt.IsZero() {
			expiry = safe.ExpiresAt.Local().Format(time.RFC3339)
		}
		refresh := "no"
		if c.CanRefresh() {
			refresh = "yes"
		}
		fmt.Fprintf(ui.Output(), "  %-16s token=%s  refresh=%s  expires=%s  updated=%s\n",
			safe.Name, safe.AccessToken, refresh, expiry, safe.LastModified.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
