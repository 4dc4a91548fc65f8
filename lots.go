package tradefolio

// Lot is an open quantity of a position tagged with its original entry
// price. Lots are created by opening trades, reduced oldest-first by
// closing trades, and destroyed when their quantity reaches zero.
type Lot struct {
	Symbol      string   `json:"symbol"`
	Opened      Date     `json:"opened"`
	Quantity    Quantity `json:"quantity"` // always positive, direction is Short
	CostPerUnit Money    `json:"costPerUnit"`
	Multiplier  int64    `json:"multiplier"`
	Short       bool     `json:"short,omitempty"`
}

// Realized is one matched close: a quantity consumed from a single lot at a
// single exit price.
type Realized struct {
	Symbol     string
	Display    string
	Day        Date // day of the closing trade
	Opened     Date // day the consumed lot was opened
	Quantity   Quantity
	Entry      Money // per unit
	Exit       Money // per unit
	Multiplier int64
	Short      bool
	PnL        Money
}

// MarshalJSON writes the event with a stable field order.
func (r Realized) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("symbol", r.Symbol)
	w.Optional("display", r.Display)
	w.Append("day", r.Day)
	w.Append("opened", r.Opened)
	w.Append("quantity", r.Quantity)
	w.Append("entry", r.Entry)
	w.Append("exit", r.Exit)
	w.Append("multiplier", r.Multiplier)
	if r.Short {
		w.Append("short", true)
	}
	w.Append("pnl", r.PnL)
	return w.MarshalJSON()
}

// lotQueue is the FIFO queue of open lots of one symbol, oldest first.
// All lots in a queue share one direction.
type lotQueue []Lot

// short reports the direction of the queue. Empty queues have no direction.
func (q lotQueue) short() bool { return len(q) > 0 && q[0].Short }

// quantity is the total open quantity of the queue.
func (q lotQueue) quantity() Quantity {
	var total Quantity
	for _, l := range q {
		total = total.Add(l.Quantity)
	}
	return total
}

// realize computes the P&L of closing qty units of a lot at the exit price:
// (exit - entry) * qty * multiplier, sign flipped for short lots.
func realize(l Lot, qty Quantity, exit Money, day Date, display string) Realized {
	perUnit := exit.Sub(l.CostPerUnit)
	if l.Short {
		perUnit = l.CostPerUnit.Sub(exit)
	}
	return Realized{
		Symbol:     l.Symbol,
		Display:    display,
		Day:        day,
		Opened:     l.Opened,
		Quantity:   qty,
		Entry:      l.CostPerUnit,
		Exit:       exit,
		Multiplier: l.Multiplier,
		Short:      l.Short,
		PnL:        perUnit.Mul(qty).Mul(Q(l.Multiplier)),
	}
}

// consume closes up to qty against the queue oldest-first. Partial
// consumption splits the head lot; full consumption removes it. It returns
// the remaining queue, one realized event per consumed lot, and the leftover
// quantity that found no lot to match.
func (q lotQueue) consume(qty Quantity, exit Money, day Date, display string) (lotQueue, []Realized, Quantity) {
	var events []Realized
	remaining := q
	for len(remaining) > 0 && qty.IsPositive() {
		head := remaining[0]
		if head.Quantity.GreaterThan(qty) {
			// Partial close of the oldest lot.
			events = append(events, realize(head, qty, exit, day, display))
			head.Quantity = head.Quantity.Sub(qty)
			remaining = append(lotQueue{head}, remaining[1:]...)
			return remaining, events, Quantity{}
		}
		// Full close of the oldest lot.
		events = append(events, realize(head, head.Quantity, exit, day, display))
		qty = qty.Sub(head.Quantity)
		remaining = remaining[1:]
	}
	return remaining, events, qty
}
