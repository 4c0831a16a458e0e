package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MrEthical07/marketauth/jwt"
)

const lookupSecretBytes = 32

func keygen(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stdout)
	out := fs.String("out", ".", "directory to write the key files into")
	force := fs.Bool("force", false, "overwrite existing files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0o700); err != nil {
		return err
	}

	privPEM, pubPEM, err := jwt.GenerateEd25519PEM()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	secret := make([]byte, lookupSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generate lookup secret: %w", err)
	}

	files := []struct {
		name string
		data []byte
		mode os.FileMode
	}{
		{"signing.pem", privPEM, 0o600},
		{"signing.pub.pem", pubPEM, 0o644},
		{"lookup.secret", []byte(hex.EncodeToString(secret) + "\n"), 0o600},
	}
	for _, f := range files {
		path := filepath.Join(*out, f.name)
		if err := writeNew(path, f.data, f.mode, *force); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "wrote", path)
	}
	return nil
}

// writeNew refuses to replace an existing file unless force is set. A
// rotated lookup secret orphans every stored lookup hash.
func writeNew(path string, data []byte, mode os.FileMode, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, mode)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s exists; pass -force to overwrite", path)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
