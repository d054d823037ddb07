// Prints the wallet stored in the vault for one user id, after asking for its password.
// Usage: go run ./cmd/vault-inspect --user <userId> [--data-path dir] [--network devnet] [--show-wif | --raw]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlexZinkM/exchange-json-rpc/internal/config"
	"github.com/AlexZinkM/exchange-json-rpc/internal/store"
	"github.com/AlexZinkM/exchange-json-rpc/internal/vault"

	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	userID := pflag.String("user", "", "user id of the vault entry")
	showWIF := pflag.Bool("show-wif", false, "also print the decrypted WIF")
	raw := pflag.Bool("raw", false, "print the stored BIP38 string without asking for the password")
	pflag.StringVar(&cfg.DataPath, "data-path", cfg.DataPath, "directory of the database")
	pflag.StringVar(&cfg.Network, "network", cfg.Network, "mainnet or devnet")
	pflag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath(), store.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open storage:", err)
		os.Exit(1)
	}
	defer db.Close()

	v := vault.New(db, cfg.CryptoNetwork(), nil)

	if *raw {
		encrypted, err := v.Encrypted(*userID)
		if errors.Is(err, vault.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "no vault entry for user %s\n", *userID)
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(encrypted)
		return
	}

	password, err := config.PromptForPassword("BIP38 password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer clear(password)

	wallet, err := v.Lookup(*userID, string(password))
	switch {
	case errors.Is(err, vault.ErrNotFound):
		fmt.Fprintf(os.Stderr, "no vault entry for user %s\n", *userID)
		os.Exit(1)
	case errors.Is(err, vault.ErrDecryptionFailed):
		fmt.Fprintln(os.Stderr, "wrong password")
		os.Exit(1)
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("address:   ", wallet.Address)
	fmt.Println("publicKey: ", wallet.PublicKey)
	if *showWIF {
		fmt.Println("wif:       ", wallet.WIF)
	}
}
