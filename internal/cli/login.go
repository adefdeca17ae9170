package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/unapproachable/fairgame-fork/internal/auth"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/ui"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store your storefront credentials",
	Long: `Prompts for the account email and password and stores them in the OS
keyring. Where no keyring is available the credentials go to a file only
your user can read.

The hunt uses them to sign in whenever the browser profile is signed out.`,
	Example: `  # Prompt for both
  fairgame login

  # Pass the email, prompt for the password
  fairgame login --email me@example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().String("email", "", "Account email (prompted when empty)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	fmt.Fprintf(out, "\n%s\n", ui.Bold("Store credentials"))
	fmt.Fprintf(out, "%s\n\n", ui.ColorDim+"--------------------------------------------------"+ui.ColorReset)
	fmt.Fprintf(out, "  %s\n\n", ui.Label("Backend", a.Credentials.Backend()))

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := readLine(in)
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = line
	}
	fmt.Fprint(out, "Password: ")
	password, err := readPassword(cmd.InOrStdin(), in, out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	creds := auth.Credentials{Email: strings.TrimSpace(email), Password: password}
	if creds.Email == "" || creds.Password == "" {
		return engine.ConfigError("email and password are required", nil)
	}
	if err := a.Credentials.Save(creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	log.Debug().Str("email", creds.Email).Str("backend", a.Credentials.Backend()).Msg("Credentials stored")

	fmt.Fprintln(out, ui.Success("\nCredentials saved"))
	fmt.Fprintf(out, "\n%s\n", ui.Bold("Start hunting with:"))
	fmt.Fprintf(out, "  %s\n\n", ui.ColorCyan+"fairgame amazon"+ui.ColorReset)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	if err := a.Credentials.Delete(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Credentials deleted"))
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo from a terminal, or a plain line from
// anything else so the prompt can be scripted.
func readPassword(src io.Reader, buffered *bufio.Reader, out io.Writer) (string, error) {
	if f, ok := src.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(buffered)
}
