// Package sheetio defines the workbook exchange ports. The excel
// subpackage implements them against xlsx files; tests use lightweight
// fakes.
package sheetio

import (
	"waterledger/internal/core"
	"waterledger/internal/importer"
)

// Encoder renders the ledger into workbook bytes: the row-per-month
// transaction sheet plus the wide summary sheet.
type Encoder interface {
	Encode(l *core.Ledger, sum core.Summary) ([]byte, error)
}

// Decoder parses workbook bytes back into raw import rows. It only locates
// and reads cells; all normalization belongs to the importer.
type Decoder interface {
	Decode(data []byte) ([]importer.TransactionRow, []importer.SummaryCell, error)
}
