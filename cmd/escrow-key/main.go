// escrow-key manages the vault master passphrase for escrowd.
//
// The vault key is derived from a 24-word BIP-39 mnemonic, so the escrow
// vault can be recovered from a paper backup.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-escrow/internal/masterkey"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		cmdGenerate()
	case "validate":
		cmdValidate(os.Args[2:])
	case "derive":
		cmdDerive(os.Args[2:])
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: escrow-key <command> [args]

Commands:
  generate                Generate a new 24-word mnemonic
  validate                Check a mnemonic (read from stdin)
  derive [--out <file>]   Derive the vault master key from a mnemonic
                          and write it as hex to <file> (default: stdout)
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdGenerate() {
	mnemonic, err := masterkey.GenerateMnemonic()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(mnemonic)
	fmt.Fprintln(os.Stderr, "\nWrite these 24 words down and store them offline.")
	fmt.Fprintln(os.Stderr, "Anyone with the mnemonic can open the escrow vault.")
}

func cmdValidate(args []string) {
	mnemonic := readMnemonic()
	if !masterkey.ValidateMnemonic(mnemonic) {
		fatal("invalid mnemonic")
	}
	fmt.Println("OK")
}

func cmdDerive(args []string) {
	out := ""
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--out" && i+1 < len(args):
			out = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--out="):
			out = args[i][len("--out="):]
		default:
			fatal("unknown argument %q", args[i])
		}
	}

	mnemonic := readMnemonic()
	passphrase, err := readPassword("BIP-39 passphrase (empty for none): ")
	if err != nil {
		fatal("read passphrase: %v", err)
	}

	seed, err := masterkey.SeedFromMnemonic(mnemonic, string(passphrase))
	if err != nil {
		fatal("%v", err)
	}
	key, err := masterkey.DeriveVaultKey(seed)
	if err != nil {
		fatal("%v", err)
	}
	encoded := hex.EncodeToString(key)
	for i := range key {
		key[i] = 0
	}
	for i := range seed {
		seed[i] = 0
	}

	if out == "" {
		fmt.Println(encoded)
		return
	}
	if err := os.WriteFile(out, []byte(encoded+"\n"), 0600); err != nil {
		fatal("write %s: %v", out, err)
	}
	fmt.Fprintf(os.Stderr, "Vault key written to %s\n", out)
	fmt.Fprintln(os.Stderr, "Point vault.passphrase_file at it in escrowd.conf.")
}

// readMnemonic reads a mnemonic from stdin, prompting when interactive.
func readMnemonic() string {
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Mnemonic: ")
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 4096), 4096)
	if !scanner.Scan() {
		fatal("read mnemonic: %v", scanner.Err())
	}
	return strings.TrimSpace(scanner.Text())
}

func readPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
