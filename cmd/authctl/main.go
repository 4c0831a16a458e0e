// Command authctl holds operator tooling for marketauth deployments.
//
//	authctl keygen -out ./keys
//	authctl hash-password [-algorithm bcrypt]
package main

import (
	"fmt"
	"io"
	"os"
)

const usage = `usage: authctl <command> [flags]

commands:
  keygen         write an Ed25519 signing key pair and an email lookup secret
  hash-password  read a password without echo and print its PHC hash
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "keygen":
		err = keygen(args[1:], stdout)
	case "hash-password":
		err = hashPassword(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "authctl: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "authctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}
