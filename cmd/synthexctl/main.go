package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"synthex/config"
	"synthex/native/exchange"
	"synthex/storage"
)

const (
	defaultProtocol = "./protocol.toml"
	defaultDataDir  = "./data/exchange"
	secretEnv       = "SYNTHEX_AUTH_HMAC_SECRET"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "default-config":
		err = runDefaultConfig(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "init":
		err = runInit(os.Args[2:], os.Stdout)
	case "state":
		err = runState(os.Args[2:], os.Stdout)
	case "account":
		err = runAccount(os.Args[2:], os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: synthexctl <command> [flags]

commands:
  default-config  write a development protocol file
  validate        check a protocol file
  init            write genesis from a protocol file into a data directory
  state           print the committed exchange state
  account         print an exchange account
  token           issue a bearer token for the exchange API`)
}

func runDefaultConfig(args []string) error {
	fs := flag.NewFlagSet("default-config", flag.ContinueOnError)
	out := fs.String("out", defaultProtocol, "Output path for the protocol file")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", *out)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	return config.Persist(*out, config.Default())
}

func runValidate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	path := fs.String("protocol", defaultProtocol, "Path to the protocol file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err != nil {
		return err
	}
	if _, err := config.Load(*path); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: ok\n", *path)
	return nil
}

func runInit(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("protocol", defaultProtocol, "Path to the protocol file")
	dataDir := fs.String("data", defaultDataDir, "Exchange data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err != nil {
		return err
	}
	params, err := config.Load(*path)
	if err != nil {
		return err
	}
	genesis, err := params.ToGenesis()
	if err != nil {
		return err
	}
	db, err := storage.NewLevelDB(*dataDir)
	if err != nil {
		return fmt.Errorf("open %s: %w", *dataDir, err)
	}
	defer db.Close()
	state, _, err := exchange.NewStore(db).WriteGenesis(genesis)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "genesis written to %s (registry %s)\n", *dataDir, state.AssetsList.Hex())
	return nil
}

func openStore(fs *flag.FlagSet, args []string) (*exchange.Store, func(), error) {
	dataDir := fs.String("data", defaultDataDir, "Exchange data directory")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	db, err := storage.NewLevelDB(*dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", *dataDir, err)
	}
	store := exchange.NewStore(db)
	ok, err := store.Initialized()
	if err != nil || !ok {
		db.Close()
		if err == nil {
			err = fmt.Errorf("%s has no exchange genesis; run synthexctl init", *dataDir)
		}
		return nil, nil, err
	}
	return store, db.Close, nil
}

func runState(args []string, w io.Writer) error {
	store, closeFn, err := openStore(flag.NewFlagSet("state", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer closeFn()
	state, err := store.GetState()
	if err != nil {
		return err
	}
	list, err := store.GetAssetsList()
	if err != nil {
		return err
	}
	return printJSON(w, map[string]interface{}{"state": state, "assetsList": list})
}

func runAccount(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	owner := fs.String("owner", "", "Account owner address")
	store, closeFn, err := openStore(fs, args)
	if err != nil {
		return err
	}
	defer closeFn()
	if !common.IsHexAddress(*owner) {
		return fmt.Errorf("--owner must be a hex address")
	}
	acc, err := store.GetExchangeAccount(common.HexToAddress(*owner))
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("no exchange account for %s", *owner)
	}
	return printJSON(w, acc)
}

func runToken(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "Signer address the token acts for")
	scopes := fs.String("scopes", "exchange:trade", "Space separated scopes")
	issuer := fs.String("issuer", "", "Issuer claim")
	audience := fs.String("audience", "", "Audience claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret := strings.TrimSpace(os.Getenv(secretEnv))
	if secret == "" {
		return fmt.Errorf("%s is not set", secretEnv)
	}
	token, err := issueToken(secret, *subject, *scopes, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}

func issueToken(secret, subject, scopes, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if !common.IsHexAddress(subject) {
		return "", errors.New("--subject must be a hex address")
	}
	if ttl <= 0 {
		return "", errors.New("--ttl must be positive")
	}
	claims := jwt.MapClaims{
		"sub":   common.HexToAddress(subject).Hex(),
		"scope": strings.Join(strings.Fields(scopes), " "),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
