package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/MrEthical07/marketauth/password"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

func hashPassword(args []string, stdout, stderr io.Writer) error {
	def := password.DefaultConfig()

	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(stderr)
	algo := fs.String("algorithm", def.Algorithm, "argon2id or bcrypt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := def
	cfg.Algorithm = *algo
	hasher, err := password.NewHasher(cfg)
	if err != nil {
		return err
	}

	fmt.Fprint(stderr, "Password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}
	fmt.Fprint(stderr, "Repeat: ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}
	defer clear(first)
	defer clear(second)

	if !bytes.Equal(first, second) {
		return errors.New("passwords do not match")
	}

	encoded, err := hasher.Hash(string(first))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, encoded)
	return nil
}
