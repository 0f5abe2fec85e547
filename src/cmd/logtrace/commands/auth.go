// FILE: logtrace/src/cmd/logtrace/commands/auth.go
package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"logtrace/src/internal/auth"
	"logtrace/src/internal/core"

	"golang.org/x/term"
)

// AuthCommand generates credentials for HTTP sink authentication
type AuthCommand struct {
	output io.Writer
	errOut io.Writer

	// readPassword prompts for a password without echo
	readPassword func(prompt string) (string, error)
}

func NewAuthCommand() *AuthCommand {
	ac := &AuthCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
	ac.readPassword = ac.promptTerminal
	return ac
}

func (ac *AuthCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("auth", flag.ContinueOnError)
	cmd.SetOutput(ac.errOut)

	var (
		// Basic auth
		username     = cmd.String("u", "", "Username")
		usernameLong = cmd.String("user", "", "Username")
		password     = cmd.String("p", "", "Password (will prompt if not provided)")
		passwordLong = cmd.String("password", "", "Password (will prompt if not provided)")
		cost         = cmd.Int("cost", core.DefaultBcryptCost, "bcrypt cost")

		// Static token
		genToken     = cmd.Bool("k", false, "Generate random bearer token")
		genTokenLong = cmd.Bool("token", false, "Generate random bearer token")
		tokenLen     = cmd.Int("l", 0, "Token length in bytes")
		tokenLenLong = cmd.Int("length", 0, "Token length in bytes")

		// JWT
		genJWT   = cmd.Bool("jwt", false, "Issue a signed JWT")
		key      = cmd.String("key", "", "JWT signing key (generated if empty)")
		subject  = cmd.String("subject", "", "JWT subject")
		issuer   = cmd.String("issuer", "", "JWT issuer")
		audience = cmd.String("audience", "", "JWT audience")
		ttl      = cmd.Duration("ttl", core.DefaultTokenTTL, "JWT lifetime")
	)

	cmd.Usage = func() {
		fmt.Fprint(ac.errOut, ac.Help())
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s): %s", strings.Join(cmd.Args(), " "))
	}

	finalUsername := coalesceString(*username, *usernameLong)
	finalPassword := coalesceString(*password, *passwordLong)
	finalTokenLen := coalesceInt(*tokenLen, *tokenLenLong, 32)

	switch {
	case *genJWT:
		return ac.generateJWT(*key, *subject, *issuer, *audience, *ttl)
	case *genToken || *genTokenLong:
		return ac.generateToken(finalTokenLen)
	case finalUsername != "":
		return ac.generateBasicAuth(finalUsername, finalPassword, *cost)
	default:
		cmd.Usage()
		return fmt.Errorf("one of --user, --token or --jwt is required")
	}
}

func (ac *AuthCommand) Description() string {
	return "Generate authentication credentials (bcrypt hashes, tokens, JWTs)"
}

func (ac *AuthCommand) Help() string {
	return `Auth Command - Generate credentials for HTTP sink authentication

Usage:
  logtrace auth [options]

Authentication Types:
  basic   Username and bcrypt password hash
  token   Random static bearer token
  jwt     HS256 bearer token signed with a shared key

Options:
  -u, --user <name>        Username for a basic auth entry
  -p, --password <pass>    Password (will prompt if not provided)
  --cost <n>               bcrypt cost (default: 12)
  -k, --token              Generate a random bearer token
  -l, --length <bytes>     Token length in bytes (default: 32)
  --jwt                    Issue a signed JWT
  --key <key>              Signing key, at least 32 bytes (generated if empty)
  --subject <sub>          JWT subject
  --issuer <iss>           JWT issuer
  --audience <aud>         JWT audience
  --ttl <duration>         JWT lifetime (default: 24h)

Examples:
  logtrace auth -u admin
  logtrace auth --token --length=64
  logtrace auth --jwt --subject dashboard --issuer logtrace --ttl 720h

Output:
  The command prints TOML snippets ready to paste under an HTTP sink and the
  raw credential values.
`
}

func (ac *AuthCommand) generateBasicAuth(username, password string, cost int) error {
	if strings.Contains(username, ":") {
		return fmt.Errorf("username cannot contain ':'")
	}

	if password == "" {
		var err error
		password, err = ac.promptForPassword()
		if err != nil {
			return err
		}
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}

	fmt.Fprintln(ac.output, "\n# Basic Auth Configuration")
	fmt.Fprintln(ac.output, "# Add under an HTTP sink in logtrace.toml:")
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[pipelines.sinks.http.auth]")
	fmt.Fprintln(ac.output, `type = "basic"`)
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[[pipelines.sinks.http.auth.basic.users]]")
	fmt.Fprintf(ac.output, "username = %q\n", username)
	fmt.Fprintf(ac.output, "password_hash = %q\n\n", hash)

	fmt.Fprintln(ac.output, "# For an external users file:")
	fmt.Fprintf(ac.output, "%s:%s\n", username, hash)
	return nil
}

func (ac *AuthCommand) generateToken(length int) error {
	token, err := auth.GenerateToken(length)
	if err != nil {
		return err
	}

	fmt.Fprintln(ac.output, "\n# Token Auth Configuration")
	fmt.Fprintln(ac.output, "# Add under an HTTP sink in logtrace.toml:")
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[pipelines.sinks.http.auth]")
	fmt.Fprintln(ac.output, `type = "token"`)
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[pipelines.sinks.http.auth.token]")
	fmt.Fprintf(ac.output, "tokens = [%q]\n\n", token)

	fmt.Fprintln(ac.output, "# Generated Token:")
	fmt.Fprintln(ac.output, token)
	return nil
}

func (ac *AuthCommand) generateJWT(key, subject, issuer, audience string, ttl time.Duration) error {
	if key == "" {
		generated, err := auth.GenerateToken(auth.MinSigningKeyLen)
		if err != nil {
			return err
		}
		key = generated
	}

	token, err := auth.IssueToken(key, subject, issuer, audience, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(ac.output, "\n# JWT Auth Configuration")
	fmt.Fprintln(ac.output, "# Add under an HTTP sink in logtrace.toml:")
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[pipelines.sinks.http.auth]")
	fmt.Fprintln(ac.output, `type = "jwt"`)
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[pipelines.sinks.http.auth.jwt]")
	fmt.Fprintf(ac.output, "signing_key = %q\n", key)
	if issuer != "" {
		fmt.Fprintf(ac.output, "issuer = %q\n", issuer)
	}
	if audience != "" {
		fmt.Fprintf(ac.output, "audience = %q\n", audience)
	}

	fmt.Fprintf(ac.output, "\n# Bearer token (expires %s):\n", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	fmt.Fprintln(ac.output, token)
	return nil
}

// promptForPassword asks twice and requires both entries to match
func (ac *AuthCommand) promptForPassword() (string, error) {
	pass1, err := ac.readPassword("Enter password: ")
	if err != nil {
		return "", err
	}
	pass2, err := ac.readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pass1 != pass2 {
		return "", fmt.Errorf("passwords don't match")
	}
	return pass1, nil
}

func (ac *AuthCommand) promptTerminal(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password prompt requires a terminal, use --password")
	}

	fmt.Fprint(ac.errOut, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(ac.errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesceInt(primary, secondary, defaultVal int) int {
	if primary != 0 {
		return primary
	}
	if secondary != 0 {
		return secondary
	}
	return defaultVal
}
