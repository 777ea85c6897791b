// Package assistant answers chat messages with an ordered list of keyword
// rules. The first matching rule wins and no state is kept between turns.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fmc-ops/opsdash/internal/format"
	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/orders"
	"github.com/fmc-ops/opsdash/internal/result"
	"github.com/fmc-ops/opsdash/internal/stats"
)

// Reply types.
const (
	TypeOrders    = "orders"
	TypeInvoices  = "invoices"
	TypeStats     = "stats"
	TypeHighValue = "high_value"
	TypePending   = "pending"
	TypeAction    = "action"
	TypeSearch    = "search"
	TypeHelp      = "help"
	TypeDefault   = "default"
	TypeError     = "error"
)

// Actions the UI performs for action replies.
const (
	ActionCreateOrder   = "create_order"
	ActionCreateInvoice = "create_invoice"
	ActionExport        = "export"
)

// Page sizes the rules request.
const (
	showLimit   = 5
	scanLimit   = 100
	searchLimit = 10
	highValueN  = 5
)

// Reply is what the assistant says back.
type Reply struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Data   any    `json:"data,omitempty"`
	Action string `json:"action,omitempty"`
}

// Transaction is an order or invoice in a mixed list.
type Transaction struct {
	Kind        string  `json:"kind"`
	ID          string  `json:"id"`
	Supplier    string  `json:"supplier"`
	Date        string  `json:"date"`
	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
}

// Split holds the orders and invoices of a two-sided answer.
type Split struct {
	Orders   []orders.Order     `json:"orders"`
	Invoices []invoices.Invoice `json:"invoices"`
}

// OrderLister is the part of the order service the assistant reads.
type OrderLister interface {
	List(ctx context.Context, q listing.Query) result.Result[listing.Page[orders.Order]]
}

// InvoiceLister is the part of the invoice service the assistant reads.
type InvoiceLister interface {
	List(ctx context.Context, q listing.Query) result.Result[listing.Page[invoices.Invoice]]
}

// StatsSource supplies the dashboard summary.
type StatsSource interface {
	Dashboard(ctx context.Context) result.Result[stats.Dashboard]
}

// Rule is one entry of the decision list. Handle may decline with false, in
// which case evaluation continues with the next rule.
type Rule struct {
	Name   string
	Match  func(msg string) bool
	Handle func(ctx context.Context, raw, msg string) (Reply, bool)
}

// Assistant evaluates the rules in order.
type Assistant struct {
	orders    OrderLister
	invoices  InvoiceLister
	stats     StatsSource
	threshold float64
	currency  string
	rules     []Rule
}

// New builds an assistant. threshold is the high-value cut-off.
func New(o OrderLister, i InvoiceLister, s StatsSource, threshold float64, currency string) *Assistant {
	if threshold <= 0 {
		threshold = stats.DefaultHighValueThreshold
	}
	a := &Assistant{orders: o, invoices: i, stats: s, threshold: threshold, currency: currency}
	a.rules = a.defaultRules()
	return a
}

// Rules returns the names of the rules in evaluation order.
func (a *Assistant) Rules() []string {
	names := make([]string, len(a.rules))
	for i, r := range a.rules {
		names[i] = r.Name
	}
	return names
}

// Reply answers message. It never fails; data errors become error replies.
func (a *Assistant) Reply(ctx context.Context, message string) Reply {
	msg := strings.ToLower(message)
	for _, rule := range a.rules {
		if !rule.Match(msg) {
			continue
		}
		if reply, ok := rule.Handle(ctx, message, msg); ok {
			return reply
		}
	}
	return fallback(message)
}

func containsAll(words ...string) func(string) bool {
	return func(msg string) bool {
		for _, w := range words {
			if !strings.Contains(msg, w) {
				return false
			}
		}
		return true
	}
}

func containsAny(words ...string) func(string) bool {
	return func(msg string) bool {
		for _, w := range words {
			if strings.Contains(msg, w) {
				return true
			}
		}
		return false
	}
}

var supplierPattern = regexp.MustCompile(`from\s+([a-z]+)`)

func (a *Assistant) defaultRules() []Rule {
	return []Rule{
		{Name: "show_orders", Match: containsAll("show", "order"), Handle: a.showOrders},
		{Name: "show_invoices", Match: containsAll("show", "invoice"), Handle: a.showInvoices},
		{Name: "stats", Match: containsAny("stat", "summary", "total"), Handle: a.summary},
		{Name: "high_value", Match: containsAny("high value", "alert"), Handle: a.highValue},
		{Name: "pending", Match: containsAny("pending"), Handle: a.pending},
		{Name: "create_order", Match: containsAll("create", "order"), Handle: canned(Reply{Type: TypeAction, Text: createOrderText, Action: ActionCreateOrder})},
		{Name: "create_invoice", Match: containsAll("create", "invoice"), Handle: canned(Reply{Type: TypeAction, Text: createInvoiceText, Action: ActionCreateInvoice})},
		{Name: "export", Match: containsAny("export"), Handle: canned(Reply{Type: TypeAction, Text: exportText, Action: ActionExport})},
		{Name: "supplier_search", Match: containsAny("from", "supplier"), Handle: a.search},
		{Name: "help", Match: func(msg string) bool { return strings.Contains(msg, "help") || msg == "hi" || msg == "hello" }, Handle: canned(Reply{Type: TypeHelp, Text: helpText})},
	}
}

func canned(r Reply) func(context.Context, string, string) (Reply, bool) {
	return func(context.Context, string, string) (Reply, bool) { return r, true }
}

func (a *Assistant) showOrders(ctx context.Context, _, _ string) (Reply, bool) {
	res := a.orders.List(ctx, listing.Query{Page: 1, PageSize: showLimit})
	if !res.IsOk() {
		return Reply{Type: TypeError, Text: "Sorry, I could not fetch the orders. Please try again."}, true
	}
	items := res.Value().Items
	return Reply{Type: TypeOrders, Text: fmt.Sprintf("Here are the latest %d orders:", len(items)), Data: items}, true
}

func (a *Assistant) showInvoices(ctx context.Context, _, _ string) (Reply, bool) {
	res := a.invoices.List(ctx, listing.Query{Page: 1, PageSize: showLimit})
	if !res.IsOk() {
		return Reply{Type: TypeError, Text: "Sorry, I could not fetch the invoices. Please try again."}, true
	}
	items := res.Value().Items
	return Reply{Type: TypeInvoices, Text: fmt.Sprintf("Here are the latest %d invoices:", len(items)), Data: items}, true
}

func (a *Assistant) summary(ctx context.Context, _, _ string) (Reply, bool) {
	res := a.stats.Dashboard(ctx)
	if !res.IsOk() {
		return Reply{Type: TypeError, Text: "Sorry, I could not fetch the statistics. Please try again."}, true
	}
	return Reply{Type: TypeStats, Text: "Here's your current summary:", Data: res.Value()}, true
}

// both lists orders and invoices for filter in parallel. A side that fails
// is empty; ok is false only when both fail.
func (a *Assistant) both(ctx context.Context, filter listing.Filter, limit int) (Split, bool) {
	var (
		out                Split
		orderOK, invoiceOK bool
	)
	q := listing.Query{Page: 1, PageSize: limit, Filter: filter}
	var g errgroup.Group
	g.Go(func() error {
		res := a.orders.List(ctx, q)
		orderOK = res.IsOk()
		out.Orders = res.Value().Items
		return nil
	})
	g.Go(func() error {
		res := a.invoices.List(ctx, q)
		invoiceOK = res.IsOk()
		out.Invoices = res.Value().Items
		return nil
	})
	_ = g.Wait()
	if out.Orders == nil {
		out.Orders = []orders.Order{}
	}
	if out.Invoices == nil {
		out.Invoices = []invoices.Invoice{}
	}
	return out, orderOK || invoiceOK
}

func (a *Assistant) highValue(ctx context.Context, _, _ string) (Reply, bool) {
	split, ok := a.both(ctx, listing.Filter{}, scanLimit)
	if !ok {
		return dataError(), true
	}
	found := []Transaction{}
	for _, o := range split.Orders {
		if o.TotalAmount >= a.threshold {
			found = append(found, Transaction{Kind: "order", ID: o.ID, Supplier: o.Supplier, Date: o.OrderDate, TotalAmount: o.TotalAmount, Status: o.Status})
		}
	}
	for _, i := range split.Invoices {
		if i.TotalAmount >= a.threshold {
			found = append(found, Transaction{Kind: "invoice", ID: i.ID, Supplier: i.Supplier, Date: i.InvoiceDate, TotalAmount: i.TotalAmount, Status: i.Status})
		}
	}
	if len(found) > highValueN {
		found = found[:highValueN]
	}
	return Reply{
		Type: TypeHighValue,
		Text: fmt.Sprintf("Found %d high-value transactions (≥%s):", len(found), format.Currency(a.threshold, a.currency)),
		Data: found,
	}, true
}

func (a *Assistant) pending(ctx context.Context, _, _ string) (Reply, bool) {
	split, ok := a.both(ctx, listing.Filter{Status: orders.StatusPending}, scanLimit)
	if !ok {
		return dataError(), true
	}
	return Reply{
		Type: TypePending,
		Text: fmt.Sprintf("You have %d pending orders and %d pending invoices.", len(split.Orders), len(split.Invoices)),
		Data: split,
	}, true
}

func (a *Assistant) search(ctx context.Context, _, msg string) (Reply, bool) {
	m := supplierPattern.FindStringSubmatch(msg)
	if m == nil {
		return Reply{}, false
	}
	term := m[1]
	split, ok := a.both(ctx, listing.Filter{Search: term}, searchLimit)
	if !ok {
		return dataError(), true
	}
	return Reply{
		Type: TypeSearch,
		Text: fmt.Sprintf("Found %d orders and %d invoices matching %q.", len(split.Orders), len(split.Invoices), term),
		Data: split,
	}, true
}

func dataError() Reply {
	return Reply{Type: TypeError, Text: "Sorry, I could not fetch the data. Please try again."}
}

func fallback(message string) Reply {
	return Reply{
		Type: TypeDefault,
		Text: fmt.Sprintf("I understand you're asking about \"%s\". I can help you with:\n\n"+
			"• Viewing orders and invoices\n• Creating new entries\n• Searching by supplier\n• Exporting data\n• Showing statistics\n\n"+
			"Try asking \"Show me orders\" or \"Help\" for more options.", message),
	}
}

const createOrderText = "✅ I can help you create an order. Please provide the following details:\n\n" +
	"• Supplier name\n• Order amount\n• Order date\n\n" +
	"Or you can use the Orders page to create one with the full form."

const createInvoiceText = "✅ I can help you create an invoice. Please provide the following details:\n\n" +
	"• Supplier name\n• Invoice amount\n• Invoice date\n• Financing type (Credit/Cash)\n\n" +
	"Or you can use the Invoices page to create one with the full form."

const exportText = "📊 I can export your data. What would you like to export?\n\n" +
	"• \"Export orders\" - Download all orders\n" +
	"• \"Export invoices\" - Download all invoices\n" +
	"• \"Export report\" - Download monthly report"

const helpText = "👋 Hello! I'm your FMC Operations Assistant. Here's what I can do:\n\n" +
	"📋 **View Data**\n• \"Show me orders\"\n• \"Show invoices\"\n• \"Show stats\" or \"Summary\"\n• \"Show pending items\"\n• \"Show high value transactions\"\n\n" +
	"🔍 **Search**\n• \"Orders from TechCorp\"\n• \"Invoices from supplier X\"\n\n" +
	"✏️ **Create**\n• \"Create order\"\n• \"Create invoice\"\n\n" +
	"📊 **Export**\n• \"Export orders\"\n• \"Export report\"\n\n" +
	"Just type naturally and I'll help you!"
