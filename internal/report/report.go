// Package report derives the grouped audit report: log entries partitioned
// by reagent, ordered additions-first, each group closed by the reagent's
// live balance.
package report

import (
	"sort"

	"github.com/crucial707/labstock/internal/models"
)

// BalanceLabel fills the timestamp column of a balance row.
const BalanceLabel = "current balance:"

// Group is the history of one reagent plus its live quantity.
type Group struct {
	ItemName string            `json:"item_name"`
	Entries  []models.LogEntry `json:"entries"`
	Balance  int               `json:"balance"`
}

// Report is the nested form of the audit report.
type Report struct {
	Groups []Group `json:"groups"`
}

// RowKind tells the exporter how to render a Row.
type RowKind int

const (
	RowEntry RowKind = iota
	RowSeparator
	RowBalance
)

// Row is one line of the flattened report.
type Row struct {
	Kind  RowKind
	Entry models.LogEntry // RowEntry only
	Item  string          // RowBalance only
	Total int             // RowBalance only
}

// Build groups entries by item name in first-seen order and sorts each
// group by (action rank, timestamp). The sort is stable, so ties keep
// their append order. balances holds live quantities; a missing name
// reports 0.
func Build(entries []models.LogEntry, balances map[string]int) Report {
	var order []string
	byItem := make(map[string][]models.LogEntry)
	for _, e := range entries {
		if _, ok := byItem[e.ItemName]; !ok {
			order = append(order, e.ItemName)
		}
		byItem[e.ItemName] = append(byItem[e.ItemName], e)
	}

	groups := make([]Group, 0, len(order))
	for _, name := range order {
		list := byItem[name]
		sort.SliceStable(list, func(i, j int) bool {
			ri, rj := list[i].Action.Rank(), list[j].Action.Rank()
			if ri != rj {
				return ri < rj
			}
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
		groups = append(groups, Group{ItemName: name, Entries: list, Balance: balances[name]})
	}
	return Report{Groups: groups}
}

// Balances indexes a ledger snapshot by name.
func Balances(items []models.Item) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.Name] = it.Quantity
	}
	return out
}

// Rows flattens the report: each group's entries, then its balance row,
// with a blank separator between groups.
func (r Report) Rows() []Row {
	var rows []Row
	for i, g := range r.Groups {
		if i > 0 {
			rows = append(rows, Row{Kind: RowSeparator})
		}
		for _, e := range g.Entries {
			rows = append(rows, Row{Kind: RowEntry, Entry: e})
		}
		rows = append(rows, Row{Kind: RowBalance, Item: g.ItemName, Total: g.Balance})
	}
	return rows
}
