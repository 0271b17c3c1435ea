package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

const (
	unknownDescription = "Unknown"
	maxDateLength      = 50
)

// dropReason names the noise rule that discarded a row.
type dropReason string

const (
	dropZeroAmount   dropReason = "zero_amount"
	dropSummaryRow   dropReason = "summary_row"
	dropNoDateOrDesc dropReason = "no_date_or_description"
	dropTotalDesc    dropReason = "total_description"
	dropBadDate      dropReason = "bad_date"
)

// MapReconciliation normalizes keyed rows into transactions and filters out
// noise. RowCount is the number of rows seen before filtering.
func MapReconciliation(rows []model.KeyedRow, cfg Config) (model.Result, error) {
	res, _, err := mapReconciliation(rows, cfg)
	return res, err
}

func mapReconciliation(rows []model.KeyedRow, cfg Config) (model.Result, map[dropReason]int, error) {
	if len(rows) == 0 {
		return model.Result{}, nil, ErrNoData
	}
	cfg = cfg.withDefaults()

	dropped := make(map[dropReason]int)
	txns := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		txn := mapRow(row, cfg)
		if reason, drop := noise(txn, cfg); drop {
			dropped[reason]++
			continue
		}
		txns = append(txns, txn)
	}

	return model.Result{
		Mode:         model.Reconciliation,
		Transactions: txns,
		RowCount:     len(rows),
	}, dropped, nil
}

func mapRow(row model.KeyedRow, cfg Config) model.Transaction {
	cols := newLookup(row)

	dateCell, _ := cols.resolve(cfg.DateKeywords)
	var date string
	defaulted := !dateCell.Truthy()
	if defaulted {
		date = cfg.Now().UTC().Format(isoDateLayout)
	} else {
		date = NormalizeDate(dateCell)
	}

	description := unknownDescription
	if c, _ := cols.resolve(cfg.DescriptionKeywords); c.Truthy() {
		description = c.Text()
	}
	if payee, _ := cols.resolve(cfg.PayeeKeywords); payee.Truthy() {
		p := payee.Text()
		if strings.TrimSpace(p) != "" && !strings.Contains(strings.ToLower(description), strings.ToLower(p)) {
			description = description + " - " + p
		}
	}

	amount := decimal.Zero
	if c, ok := cols.resolve(cfg.AmountKeywords); ok {
		amount = ParseAmount(c)
	} else {
		debitCell, _ := cols.resolve(cfg.DebitKeywords)
		creditCell, _ := cols.resolve(cfg.CreditKeywords)
		debit, credit := parseSide(debitCell), parseSide(creditCell)
		if !debit.IsZero() || !credit.IsZero() {
			amount = credit.Sub(debit)
		}
	}

	return model.NewTransaction(date, description, amount, row, defaulted)
}

// noise reports whether txn should be discarded and which rule caught it.
// Rules run in order and the first match wins.
func noise(txn model.Transaction, cfg Config) (dropReason, bool) {
	if txn.Amount.IsZero() {
		return dropZeroAmount, true
	}

	vals := txn.Original.Values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.Text()
	}
	joined := strings.ToLower(strings.Join(parts, " "))
	for _, marker := range cfg.SummaryMarkers {
		if strings.Contains(joined, marker) {
			return dropSummaryRow, true
		}
	}

	if txn.Description == unknownDescription && txn.DateDefaulted() {
		return dropNoDateOrDesc, true
	}
	if strings.HasPrefix(strings.ToLower(txn.Description), "total") {
		return dropTotalDesc, true
	}
	if txn.Date == "" || len(txn.Date) > maxDateLength || strings.Contains(strings.ToLower(txn.Date), "date") {
		return dropBadDate, true
	}
	return "", false
}

// MapGeneral echoes the first row's header labels as text survey fields.
func MapGeneral(rows []model.KeyedRow) (model.Result, error) {
	if len(rows) == 0 {
		return model.Result{}, ErrNoData
	}
	keys := rows[0].Keys()
	fields := make([]model.FieldDescriptor, len(keys))
	for i, k := range keys {
		fields[i] = model.FieldDescriptor{Label: k, Type: model.FieldText}
	}
	return model.Result{Mode: model.General, Fields: fields}, nil
}
