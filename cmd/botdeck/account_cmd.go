package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/baysumehmet/botdeck/internal/config"
	"github.com/baysumehmet/botdeck/internal/game"
	"github.com/baysumehmet/botdeck/internal/storage"
)

func openStore() (*storage.Store, func(), error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(dir + "/state.db")
	if err != nil {
		return nil, nil, err
	}
	return storage.NewStore(db), func() { _ = db.Close() }, nil
}

func handleAccount(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: botdeck account <add|list|rm> ...")
		os.Exit(1)
	}
	switch args[0] {
	case "add":
		handleAccountAdd(args[1:])
	case "list", "ls":
		handleAccountList()
	case "rm", "remove":
		handleAccountRemove(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown account command: %s\n", args[0])
		os.Exit(1)
	}
}

func handleAccountAdd(args []string) {
	fs := flag.NewFlagSet("account add", flag.ExitOnError)
	auth := fs.String("auth", "offline", "auth mode (offline|microsoft)")
	commands := fs.String("commands", "", "newline-separated auto-login commands")
	delay := fs.Int("delay", 0, "seconds between auto-login commands")
	reconnect := fs.Bool("reconnect", false, "auto-reconnect after unexpected disconnects")
	proxy := fs.String("proxy", "", "proxy as scheme://host:port")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: botdeck account add <username> [flags]")
		os.Exit(1)
	}
	username := fs.Arg(0)

	store, closeStore, err := openStore()
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	accounts, err := store.Accounts()
	if err != nil {
		fatal(err)
	}
	for _, a := range accounts {
		if a.Username == username {
			fatal(fmt.Errorf("account %s already exists", username))
		}
	}

	account := &storage.Account{
		Username:          username,
		Auth:              *auth,
		AutoLoginCommands: *commands,
		CommandDelay:      time.Duration(*delay) * time.Second,
		AutoReconnect:     *reconnect,
	}
	if *proxy != "" {
		desc, err := parseProxy(*proxy)
		if err != nil {
			fatal(err)
		}
		account.Proxy = desc
	}

	if err := store.SaveAccounts(append(accounts, account)); err != nil {
		fatal(err)
	}
	fmt.Printf("Added account %s\n", username)
}

func handleAccountList() {
	store, closeStore, err := openStore()
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	accounts, err := store.Accounts()
	if err != nil {
		fatal(err)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts saved")
		return
	}
	for _, a := range accounts {
		extra := ""
		if a.AutoReconnect {
			extra = " [auto-reconnect]"
		}
		fmt.Printf("%-20s %s%s\n", a.Username, a.Auth, extra)
	}
}

func handleAccountRemove(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: botdeck account rm <username>")
		os.Exit(1)
	}
	store, closeStore, err := openStore()
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	if err := store.DeleteAccount(args[0]); err != nil {
		fatal(err)
	}
	fmt.Printf("Removed account %s\n", args[0])
}

func parseProxy(raw string) (*game.ProxyDescriptor, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" || u.Port() == "" {
		return nil, fmt.Errorf("invalid proxy %q (want scheme://host:port)", raw)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid proxy port in %q", raw)
	}
	return &game.ProxyDescriptor{Scheme: u.Scheme, Host: u.Hostname(), Port: port}, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
