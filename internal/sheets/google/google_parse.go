package google

import (
	"fmt"
	"strings"

	"fireflyiii/internal/core"
	ports "fireflyiii/internal/sheets"
)

// Header names are matched case-insensitively; each column may go by
// several names.
var (
	colDate        = []string{"Date", "Data"}
	colDescription = []string{"Description", "Descrizione"}
	colAmount      = []string{"Amount", "Importo"}
	colCategory    = []string{"Category", "Primary", "Categoria"}
	colDestination = []string{"Destination", "Payee", "Merchant"}
	colSource      = []string{"Source", "Account"}
	colCurrency    = []string{"Currency"}
	colNotes       = []string{"Notes"}
	colTags        = []string{"Tags", "Secondary"}
)

// parseExpenseRows converts a values matrix (as returned by Sheets API) into
// expenses. The first row must be a header naming at least Date,
// Description and Amount. Blank rows are ignored; rows that fail to parse
// are reported in skipped.
func parseExpenseRows(values [][]interface{}) ([]core.Expense, []ports.SkippedRow, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	headers := toStrings(values[0])
	idxDate := indexOf(headers, colDate...)
	idxDesc := indexOf(headers, colDescription...)
	idxAmount := indexOf(headers, colAmount...)
	if idxDate == -1 || idxDesc == -1 || idxAmount == -1 {
		missing := make([]string, 0, 3)
		if idxDate == -1 {
			missing = append(missing, "Date")
		}
		if idxDesc == -1 {
			missing = append(missing, "Description")
		}
		if idxAmount == -1 {
			missing = append(missing, "Amount")
		}
		return nil, nil, fmt.Errorf("unexpected expense header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	idxCategory := indexOf(headers, colCategory...)
	idxDest := indexOf(headers, colDestination...)
	idxSource := indexOf(headers, colSource...)
	idxCurrency := indexOf(headers, colCurrency...)
	idxNotes := indexOf(headers, colNotes...)
	idxTags := indexOf(headers, colTags...)

	var (
		out     []core.Expense
		skipped []ports.SkippedRow
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		rowNum := i + 1

		date, err := core.ParseDate(safeGet(row, idxDate))
		if err != nil {
			skipped = append(skipped, ports.SkippedRow{Row: rowNum, Reason: err.Error()})
			continue
		}
		amount, err := core.ParseAmount(stripCurrency(safeGet(row, idxAmount)))
		if err != nil {
			skipped = append(skipped, ports.SkippedRow{Row: rowNum, Reason: fmt.Sprintf("%v: %q", err, safeGet(row, idxAmount))})
			continue
		}

		e := core.Expense{
			Date:        date,
			Description: strings.TrimSpace(safeGet(row, idxDesc)),
			Amount:      amount,
			Category:    strings.TrimSpace(safeGet(row, idxCategory)),
			Destination: strings.TrimSpace(safeGet(row, idxDest)),
			Source:      strings.TrimSpace(safeGet(row, idxSource)),
			Currency:    strings.ToUpper(strings.TrimSpace(safeGet(row, idxCurrency))),
			Notes:       strings.TrimSpace(safeGet(row, idxNotes)),
			Tags:        splitTags(safeGet(row, idxTags)),
		}
		if err := e.Validate(); err != nil {
			skipped = append(skipped, ports.SkippedRow{Row: rowNum, Reason: err.Error()})
			continue
		}
		out = append(out, e)
	}
	return out, skipped, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// indexOf returns the first column whose header matches one of names.
func indexOf(headers []string, names ...string) int {
	for _, name := range names {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// stripCurrency drops currency symbols and spaces that formatted cells carry.
func stripCurrency(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '€', '$', '£', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
