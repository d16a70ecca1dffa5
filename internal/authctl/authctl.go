// Package authctl implements the authctl command: offline helpers to make
// keys, hash and check passwords and issue or inspect tokens with the same
// code the server runs.
package authctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/authkit/internal/auth/keyring"
	"github.com/dmitrijs2005/authkit/internal/auth/pwd"
	"github.com/dmitrijs2005/authkit/internal/auth/token"
	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/encx"
	"github.com/dmitrijs2005/authkit/internal/timex"
	"github.com/dmitrijs2005/authkit/internal/workerpool"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"
)

const usage = `usage: authctl <command> [flags]

commands:
  genkey                          print a new pwd key and token key
  hash    [-salt uuid]            hash a password read from the terminal
  verify  -salt uuid -hash h      check a password against a stored hash
  issue   -sub id -salt uuid      issue a token
  inspect <token>                 decode a token without verifying it
  check   -salt uuid <token>      verify a token

keys are read from -pwd-key / -token-key or SERVICE_PWD_KEY / SERVICE_TOKEN_KEY
`

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// getenv is a test seam for os.Getenv.
var getenv = os.Getenv

var nowFn = timex.NowUTC

var (
	errUsage    = errors.New("usage")
	errNoMatch  = errors.New("password does not match")
	errBadToken = errors.New("token rejected")
)

type cmd struct {
	out  io.Writer
	errw io.Writer
	now  func() time.Time
}

// Run executes args (without the program name) and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cmd{out: stdout, errw: stderr, now: nowFn}

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "genkey":
		err = c.genkey()
	case "hash":
		err = c.hash(ctx, args[1:])
	case "verify":
		err = c.verify(ctx, args[1:])
	case "issue":
		err = c.issue(args[1:])
	case "inspect":
		err = c.inspect(args[1:])
	case "check":
		err = c.check(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, usage)
		return 2
	default:
		color.New(color.FgRed, color.Bold).Fprintln(stderr, "error:", err)
		return 1
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// decodeKey takes the flag value or falls back to the environment.
func decodeKey(flagValue, envName string) ([]byte, error) {
	v := flagValue
	if v == "" {
		v = getenv(envName)
	}
	if v == "" {
		return nil, fmt.Errorf("%w: no key given, set -%s or %s", errUsage, flagFor(envName), envName)
	}
	k, err := encx.B64uDecode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", keyring.ErrInvalidKey, err)
	}
	return k, nil
}

func flagFor(envName string) string {
	if envName == envPwdKey {
		return "pwd-key"
	}
	return "token-key"
}

const (
	envPwdKey   = "SERVICE_PWD_KEY"
	envTokenKey = "SERVICE_TOKEN_KEY"
)

func parseSalt(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: -salt is required", errUsage)
	}
	salt, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad salt: %v", errUsage, err)
	}
	return salt, nil
}

func (c *cmd) promptPassword() (string, error) {
	fmt.Fprint(c.errw, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(c.errw)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (c *cmd) genkey() error {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(c.out, envPwdKey+"=")
	fmt.Fprintln(c.out, keyring.GenerateKey())
	cyan.Fprint(c.out, envTokenKey+"=")
	fmt.Fprintln(c.out, keyring.GenerateKey())
	return nil
}

func newHasher(key []byte) (*pwd.Hasher, func(), error) {
	pool := workerpool.New(1, 1)
	h, err := pwd.NewHasher(key, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return h, pool.Close, nil
}

func (c *cmd) hash(ctx context.Context, args []string) error {
	fs := newFlagSet("hash")
	key := fs.String("pwd-key", "", "pwd key (base64url)")
	saltStr := fs.String("salt", "", "password salt (uuid), random when empty")
	if err := parse(fs, args); err != nil {
		return err
	}

	k, err := decodeKey(*key, envPwdKey)
	if err != nil {
		return err
	}

	salt := uuid.Nil
	if *saltStr == "" {
		if salt, err = pwd.NewSalt(); err != nil {
			return err
		}
	} else if salt, err = parseSalt(*saltStr); err != nil {
		return err
	}

	h, closePool, err := newHasher(k)
	if err != nil {
		return err
	}
	defer closePool()

	password, err := c.promptPassword()
	if err != nil {
		return err
	}

	stored, err := h.Hash(ctx, pwd.ContentToHash{Content: password, Salt: salt})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "salt:", salt)
	fmt.Fprintln(c.out, "hash:", stored)
	return nil
}

func (c *cmd) verify(ctx context.Context, args []string) error {
	fs := newFlagSet("verify")
	key := fs.String("pwd-key", "", "pwd key (base64url)")
	saltStr := fs.String("salt", "", "password salt (uuid)")
	stored := fs.String("hash", "", "stored hash")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *stored == "" {
		return fmt.Errorf("%w: -hash is required", errUsage)
	}

	k, err := decodeKey(*key, envPwdKey)
	if err != nil {
		return err
	}
	salt, err := parseSalt(*saltStr)
	if err != nil {
		return err
	}

	h, closePool, err := newHasher(k)
	if err != nil {
		return err
	}
	defer closePool()

	password, err := c.promptPassword()
	if err != nil {
		return err
	}

	status, err := h.Validate(ctx, pwd.ContentToHash{Content: password, Salt: salt}, *stored)
	if err != nil {
		if errors.Is(err, pwd.ErrPasswordNotMatching) {
			return errNoMatch
		}
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	if status == pwd.StatusOutdated {
		yellow.Fprintf(c.out, "match (%s, rehash with scheme %s)\n", status, pwd.LatestScheme)
		return nil
	}
	green.Fprintf(c.out, "match (%s)\n", status)
	return nil
}

func (c *cmd) issue(args []string) error {
	fs := newFlagSet("issue")
	key := fs.String("token-key", "", "token key (base64url)")
	sub := fs.String("sub", "", "subject id")
	saltStr := fs.String("salt", "", "token salt (uuid)")
	ttl := fs.Duration("ttl", 30*time.Minute, "token lifetime")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *sub == "" {
		return fmt.Errorf("%w: -sub is required", errUsage)
	}

	k, err := decodeKey(*key, envTokenKey)
	if err != nil {
		return err
	}
	salt, err := parseSalt(*saltStr)
	if err != nil {
		return err
	}

	codec, err := token.NewCodec(k, token.WithClock(c.now))
	if err != nil {
		return err
	}
	tok, err := codec.Issue(*sub, salt, *ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, tok)
	return nil
}

func (c *cmd) inspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect takes exactly one token", errUsage)
	}

	t, err := token.Parse(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "subject:", t.SubjectID)
	fmt.Fprintln(c.out, "expires:", timex.FormatRFC3339(t.ExpiresAt))
	fmt.Fprintln(c.out, "sig:    ", encx.HexEncode(t.Signature))
	if c.now().After(t.ExpiresAt) {
		color.New(color.FgYellow).Fprintln(c.out, "status:  expired")
	} else {
		color.New(color.FgGreen).Fprintln(c.out, "status:  not expired (signature not checked)")
	}
	return nil
}

func (c *cmd) check(ctx context.Context, args []string) error {
	fs := newFlagSet("check")
	key := fs.String("token-key", "", "token key (base64url)")
	saltStr := fs.String("salt", "", "token salt (uuid)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: check takes exactly one token", errUsage)
	}

	k, err := decodeKey(*key, envTokenKey)
	if err != nil {
		return err
	}
	salt, err := parseSalt(*saltStr)
	if err != nil {
		return err
	}

	codec, err := token.NewCodec(k, token.WithClock(c.now))
	if err != nil {
		return err
	}

	t, err := codec.ParseAndVerify(ctx, fs.Arg(0), func(context.Context, string) (uuid.UUID, error) {
		return salt, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errBadToken, err)
	}

	color.New(color.FgGreen).Fprintln(c.out, "valid token for", t.SubjectID)
	return nil
}
