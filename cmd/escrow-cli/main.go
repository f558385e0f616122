// escrow-cli is a command-line client for interacting with an escrowd engine.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Klingon-tech/klingnet-escrow/internal/rpcclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8560"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "info":
		cmdInfo(client)
	case "create":
		cmdCreate(client, cmdArgs)
	case "join":
		cmdJoin(client, cmdArgs)
	case "poll":
		cmdPoll(client, cmdArgs)
	case "settle":
		cmdSettle(client, cmdArgs)
	case "refund":
		cmdRefund(client, cmdArgs)
	case "get":
		cmdGet(client, cmdArgs)
	case "list":
		cmdList(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: escrow-cli [global flags] <command> [args]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8560)

Commands:
  info                            Show engine status
  create <stake> [capacity]       Create an escrow session
  join <session> <addr|alias>     Join a session as a player
  poll <session>                  Re-check the escrow account balance
  settle <session> <addr|alias>   Pay out a funded session to the winner
  refund <session>                Return stakes for an unfunded session
  get <session>                   Show a session
  list [status]                   List sessions, optionally by status
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode output: %v", err)
	}
	fmt.Println(string(out))
}

// ── commands ────────────────────────────────────────────────────────────

func cmdInfo(client *rpcclient.Client) {
	info, err := client.GetInfo()
	if err != nil {
		fatal("escrow_getInfo: %v", err)
	}
	fmt.Printf("Version:  %s\n", info.Version)
	fmt.Printf("Network:  %s\n", info.Network)
	fmt.Printf("Chain:    %s\n", info.Backend)
	fmt.Printf("Sessions: %d\n", info.Sessions)
}

func cmdCreate(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: create <stake> [capacity]")
	}
	stake, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid stake %q: %v", args[0], err)
	}
	capacity := 0
	if len(args) > 1 {
		capacity, err = strconv.Atoi(args[1])
		if err != nil {
			fatal("invalid capacity %q: %v", args[1], err)
		}
	}

	s, err := client.CreateSession(stake, capacity)
	if err != nil {
		fatal("escrow_createSession: %v", err)
	}
	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("Escrow:  %s\n", s.EscrowAddress)
	fmt.Printf("Stake:   %d per player, %d players\n", s.StakePerPlayer, s.Capacity)
}

func cmdJoin(client *rpcclient.Client, args []string) {
	if len(args) < 2 {
		fatal("usage: join <session> <addr|alias>")
	}
	res, err := client.JoinSession(args[0], args[1])
	if err != nil {
		fatal("escrow_joinSession: %v", err)
	}
	fmt.Printf("Player:  %s\n", res.PlayerID)
	fmt.Printf("Deposit: send stake to %s\n", res.EscrowAddress)
}

func cmdPoll(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: poll <session>")
	}
	s, err := client.PollSession(args[0])
	if err != nil {
		fatal("escrow_pollSession: %v", err)
	}
	fmt.Printf("Status:   %s\n", s.Status)
	fmt.Printf("Observed: %d / %d\n", s.ObservedBalance, s.ExpectedPot)
}

func cmdSettle(client *rpcclient.Client, args []string) {
	if len(args) < 2 {
		fatal("usage: settle <session> <addr|alias>")
	}
	res, err := client.SettleSession(args[0], args[1])
	if err != nil {
		fatal("escrow_settleSession: %v", err)
	}
	fmt.Printf("Session: %s\n", res.SessionID)
	fmt.Printf("Tx:      %s\n", res.TxRef)
}

func cmdRefund(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: refund <session>")
	}
	res, err := client.RefundSession(args[0])
	if err != nil {
		fatal("escrow_refundSession: %v", err)
	}
	fmt.Printf("Session: %s\n", res.SessionID)
	for i, ref := range res.TxRefs {
		fmt.Printf("Tx[%d]:   %s\n", i, ref)
	}
}

func cmdGet(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: get <session>")
	}
	s, err := client.GetSession(args[0])
	if err != nil {
		fatal("escrow_getSession: %v", err)
	}
	printJSON(s)
}

func cmdList(client *rpcclient.Client, args []string) {
	status := ""
	if len(args) > 0 {
		status = args[0]
	}
	sessions, err := client.ListSessions(status)
	if err != nil {
		fatal("escrow_listSessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-18s  stake=%d  players=%d/%d  pot=%d\n",
			s.ID, s.Status, s.StakePerPlayer, len(s.Players), s.Capacity, s.ObservedBalance)
	}
}
