// Command client is a small manual-testing CLI for the engine's
// line-oriented command protocol: it sends one command, prints the
// framed reply, and exits (except "watch", which stays connected to
// print every reply/event line as it arrives).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9001", "engine command or event address")
	action := flag.String("action", "order", "order|cancel|status|statusall|quote|watch")
	owner := flag.String("owner", "", "account display name (order action)")
	acct := flag.Uint64("acct", 0, "account id")
	qty := flag.Uint64("qty", 10, "order quantity")
	price := flag.Int64("price", 100, "limit price in cents")
	side := flag.String("side", "buy", "buy|sell")
	orderType := flag.String("type", "limit", "limit|market|ioc|fok")
	id := flag.Uint64("id", 0, "order id (cancel/status action)")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	if *action == "watch" {
		watch(conn)
		return
	}

	cmd := buildCommand(*action, *owner, *acct, *qty, *price, *side, *orderType, *id)
	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		log.Fatalf("send command: %v", err)
	}
	printReply(conn)
}

func buildCommand(action, owner string, acct, qty uint64, price int64, side, orderType string, id uint64) string {
	switch action {
	case "order":
		return fmt.Sprintf("ORDER %s %d %d %d %s %s", owner, acct, qty, price, side, orderType)
	case "cancel":
		return fmt.Sprintf("CANCEL %d", id)
	case "status":
		return fmt.Sprintf("STATUS %d", id)
	case "statusall":
		return fmt.Sprintf("STATUSALL %d", acct)
	case "quote":
		return "QUOTE"
	default:
		log.Fatalf("unknown action %q", action)
		return ""
	}
}

// printReply copies lines until the END frame marker, then exits.
func printReply(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "END" {
			return
		}
		fmt.Println(line)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading reply: %v", err)
	}
}

// watch stays connected and prints every line the server sends, used
// against the event address to follow TICKER/EXECUTION frames.
func watch(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Println("connection closed:", err)
	}
	os.Exit(0)
}
