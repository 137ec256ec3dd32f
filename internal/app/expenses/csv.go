package expenses

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/commute-ledger/transit-expense-api/internal/domain"
)

// utf8BOM makes spreadsheet apps detect the encoding of non-ASCII names.
const utf8BOM = "\uFEFF"

var csvHeader = []string{"name", "email", "totalAmount"}

// RenderCSV writes a BOM-prefixed report with one row per total. Every cell is
// double-quoted and rows are separated by "\n".
func RenderCSV(totals []domain.MemberTotal) []byte {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	writeRow(&buf, csvHeader)
	for _, t := range totals {
		buf.WriteByte('\n')
		writeRow(&buf, []string{t.Member.Name, t.Member.Email, strconv.FormatInt(t.TotalAmount, 10)})
	}
	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(c, `"`, `""`))
		buf.WriteByte('"')
	}
}
