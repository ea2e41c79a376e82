// Command ckeylock-cli is an interactive client for a running ckeylockd:
// it connects once, then reads verbs from stdin in a line-oriented loop
// and prints each response.
//
// Grounded on the original Rust cli crate's command surface (cli/src/main.rs:
// Set/Get/Delete/List/Exists/Count/Clear), restructured as the REPL the
// distilled spec calls for instead of the Rust CLI's one-shot clap dispatch.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/oblivisheee/ckeylock/internal/config"
	"github.com/oblivisheee/ckeylock/internal/hexutil"
	"github.com/oblivisheee/ckeylock/pkg/ckeylockclient"
)

func main() {
	bind := config.BindFromEnv("127.0.0.1:7878")
	password := config.PasswordFromEnv("")

	client, err := ckeylockclient.Dial(bind, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ckeylock-cli: connect to %s: %v\n", bind, err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("connected to %s\n", bind)
	fmt.Println("commands: set <key> <value> | get <key> | del <key> | list | exists <key> | count | clear | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("ckeylock> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := dispatch(client, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "ckeylock-cli: read stdin: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(client *ckeylockclient.Client, line string) error {
	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	switch verb {
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		key, err := client.Set([]byte(args[0]), []byte(strings.Join(args[1:], " ")))
		if err != nil {
			return err
		}
		fmt.Printf("stored %s\n", string(key))

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		value, ok, err := client.Get([]byte(args[0]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(string(value))

	case "del", "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		_, existed, err := client.Delete([]byte(args[0]))
		if err != nil {
			return err
		}
		if existed {
			fmt.Println("deleted")
		} else {
			fmt.Println("(not found)")
		}

	case "list":
		keys, err := client.List()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("(empty)")
			return nil
		}
		for _, k := range keys {
			fmt.Println(displayKey(k))
		}

	case "exists":
		if len(args) != 1 {
			return fmt.Errorf("usage: exists <key>")
		}
		exists, err := client.Exists([]byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(exists)

	case "count":
		count, err := client.Count()
		if err != nil {
			return err
		}
		fmt.Println(count)

	case "clear":
		if err := client.Clear(); err != nil {
			return err
		}
		fmt.Println("cleared")

	default:
		return fmt.Errorf("unknown command %q", verb)
	}
	return nil
}

// displayKey prints a key as text if every byte is printable ASCII, and as
// hex otherwise, since keys are arbitrary byte strings on the wire.
func displayKey(k []byte) string {
	for _, b := range k {
		if b < 0x20 || b > 0x7e {
			return hexutil.Encode(k)
		}
	}
	return string(k)
}
