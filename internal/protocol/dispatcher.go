package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bourse/internal/common"
	"bourse/internal/ledger"
	"bourse/internal/quote"
	"bourse/internal/store"
)

// EngineAPI is the slice of *engine.Engine the dispatcher drives. It is
// an interface, not the concrete type, because internal/engine already
// imports this package for the wire-encoding helpers in wire.go — depending
// on the concrete type here would cycle back.
type EngineAPI interface {
	PlaceOrder(name string, acctID uint32, qty uint64, price int64, side common.Side, typ common.OrderType) (*store.Order, error)
	CancelOrder(id store.OrderID) (*store.Order, error)
	Status(id store.OrderID) (*store.Order, bool)
	StatusAll(acctID uint32) ([]*store.Order, error)
	AccountName(acctID uint32) (string, bool)
	OrderBookBinary() []byte
	Now() string
	Store() *store.Store
	VenueName() string
	SymbolName() string
	Quote() *quote.Quote
	Scoreboard() []*ledger.Account
	DebugMemory() (orderSlots, fills int)
}

const frameEnd = "END\n"

// Dispatcher reads newline-terminated commands and writes one framed
// reply per command (spec.md section 4.8). It is transport-agnostic: it
// only needs an io.Reader/io.Writer pair, so the same Dispatcher backs
// a TCP connection in production and an in-memory pipe in tests.
type Dispatcher struct {
	eng EngineAPI
}

func NewDispatcher(eng EngineAPI) *Dispatcher {
	return &Dispatcher{eng: eng}
}

// Run reads commands from r until EOF or a read error, writing one
// framed reply per command to w. Per spec.md section 4.8, unexpected
// EOF on the command channel is fatal to the caller — Run returns
// io.EOF so the transport layer can decide to tear the process down.
func (d *Dispatcher) Run(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d.dispatchLine(scanner.Text(), w)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// HandleLine dispatches a single already-read command line, writing its
// framed reply to w. Exposed so a transport serving many connections
// can read each connection's lines concurrently but still funnel every
// line through one call site — the engine itself is not safe for
// concurrent use (spec.md section 5).
func (d *Dispatcher) HandleLine(line string, w io.Writer) {
	d.dispatchLine(line, w)
}

func (d *Dispatcher) dispatchLine(line string, w io.Writer) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	verb := fields[0]
	args := fields[1:]

	switch verb {
	case "ORDER":
		d.handleOrder(args, w)
	case "CANCEL":
		d.handleCancel(args, w)
	case "STATUS":
		d.handleStatus(args, w)
	case "STATUSALL":
		d.handleStatusAll(args, w)
	case "QUOTE":
		writeJSON(w, EncodeQuote(d.eng.Quote(), d.eng.VenueName(), d.eng.SymbolName()))
	case "ORDERBOOK_BINARY":
		w.Write(d.eng.OrderBookBinary())
	case "__ACC_FROM_ID__":
		d.handleAccFromID(args, w)
	case "__SCORES__":
		writeFramed(w, []byte(d.renderScoreboard()))
	case "__DEBUG_MEMORY__":
		slots, fills := d.eng.DebugMemory()
		writeFramed(w, []byte(fmt.Sprintf("orders=%d fills=%d", slots, fills)))
	case "__TIMESTAMP__":
		writeFramed(w, []byte(d.eng.Now()))
	default:
		writeJSON(w, errReply("Did not comprehend"))
	}
}

type okReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func errReply(msg string) okReply { return okReply{OK: false, Error: msg} }

func (d *Dispatcher) handleOrder(args []string, w io.Writer) {
	if len(args) != 6 {
		writeJSON(w, errReply("SILLY_VALUE"))
		return
	}
	name := args[0]
	acctID, err1 := strconv.ParseUint(args[1], 10, 32)
	qty, err2 := strconv.ParseUint(args[2], 10, 64)
	price, err3 := strconv.ParseInt(args[3], 10, 64)
	side, err4 := common.ParseSide(args[4])
	typ, err5 := common.ParseOrderType(args[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		writeJSON(w, errReply("SILLY_VALUE"))
		return
	}

	o, err := d.eng.PlaceOrder(name, uint32(acctID), qty, price, side, typ)
	if err != nil {
		writeJSON(w, errReply(err.Error()))
		return
	}
	writeJSON(w, EncodeOrder(o, d.eng.Store(), d.eng.VenueName(), d.eng.SymbolName()))
}

func (d *Dispatcher) handleCancel(args []string, w io.Writer) {
	id, ok := parseOrderID(args, w)
	if !ok {
		return
	}
	o, err := d.eng.CancelOrder(id)
	if err != nil {
		writeJSON(w, errReply(err.Error()))
		return
	}
	writeJSON(w, EncodeOrder(o, d.eng.Store(), d.eng.VenueName(), d.eng.SymbolName()))
}

func (d *Dispatcher) handleStatus(args []string, w io.Writer) {
	id, ok := parseOrderID(args, w)
	if !ok {
		return
	}
	o, found := d.eng.Status(id)
	if !found {
		writeJSON(w, errReply("No such ID"))
		return
	}
	writeJSON(w, EncodeOrder(o, d.eng.Store(), d.eng.VenueName(), d.eng.SymbolName()))
}

type statusAllReply struct {
	OK     bool        `json:"ok"`
	Orders []OrderJSON `json:"orders"`
}

func (d *Dispatcher) handleStatusAll(args []string, w io.Writer) {
	if len(args) != 1 {
		writeJSON(w, errReply("SILLY_VALUE"))
		return
	}
	acctID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		writeJSON(w, errReply("SILLY_VALUE"))
		return
	}
	orders, err := d.eng.StatusAll(uint32(acctID))
	if err != nil {
		writeJSON(w, errReply(err.Error()))
		return
	}
	out := make([]OrderJSON, len(orders))
	for i, o := range orders {
		out[i] = EncodeOrder(o, d.eng.Store(), d.eng.VenueName(), d.eng.SymbolName())
	}
	writeJSON(w, statusAllReply{OK: true, Orders: out})
}

func (d *Dispatcher) handleAccFromID(args []string, w io.Writer) {
	if len(args) != 1 {
		writeFramed(w, []byte("ERROR None"))
		return
	}
	acctID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		writeFramed(w, []byte("ERROR None"))
		return
	}
	name, ok := d.eng.AccountName(uint32(acctID))
	if !ok {
		writeFramed(w, []byte("ERROR None"))
		return
	}
	writeFramed(w, []byte("OK "+name))
}

func (d *Dispatcher) renderScoreboard() string {
	var b strings.Builder
	b.WriteString("<table><tr><th>account</th><th>shares</th><th>cash</th></tr>")
	for _, acc := range d.eng.Scoreboard() {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%d</td></tr>", acc.Name, acc.Shares, acc.Cash)
	}
	b.WriteString("</table>")
	return b.String()
}

func parseOrderID(args []string, w io.Writer) (store.OrderID, bool) {
	if len(args) != 1 {
		writeJSON(w, errReply("No such ID"))
		return 0, false
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		writeJSON(w, errReply("No such ID"))
		return 0, false
	}
	return id, true
}

func writeJSON(w io.Writer, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"ok":false,"error":"internal"}`)
	}
	writeFramed(w, body)
}

func writeFramed(w io.Writer, body []byte) {
	w.Write(body)
	w.Write([]byte("\n"))
	w.Write([]byte(frameEnd))
}
