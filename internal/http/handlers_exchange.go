package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"waterledger/internal/core"
	"waterledger/internal/importer"
	"waterledger/internal/invoice"
)

// maxImportSize bounds uploaded files to 20 MiB.
const maxImportSize = 20 << 20

func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	data, err := s.encoder.Encode(s.ledger.Snapshot(), s.ledger.Summary())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="waterledger-%s.xlsx"`, time.Now().Format("2006-01-02")))
	w.Write(data)
}

func (s *Server) handleImportWorkbook(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read upload: " + err.Error()})
		return
	}
	transactions, summary, err := s.decoder.Decode(data)
	if err != nil {
		writeError(w, err)
		return
	}
	ledger, report := importer.Build(transactions, summary, s.ledger.GlobalPrice(), time.Now())
	if err := s.ledger.ReplaceLedger(r.Context(), ledger); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := core.EncodeSnapshot(s.ledger.Snapshot())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="waterledger-%s.json"`, time.Now().Format("2006-01-02")))
	w.Write(data)
}

func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read upload: " + err.Error()})
		return
	}
	ledger, err := core.DecodeSnapshot(data)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.ReplaceLedger(r.Context(), ledger); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateCaches()
	writeJSON(w, http.StatusOK, map[string]int{"customers": len(ledger.Customers)})
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	idx, err := monthIndex(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid month index"})
		return
	}
	c, err := s.ledger.Customer(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if idx < 0 || idx >= len(c.Months) {
		writeError(w, core.ErrNotFound)
		return
	}

	data := invoice.Data{
		Association: s.association,
		Customer:    c,
		Month:       c.Months[idx],
		PricePerTon: s.ledger.GlobalPrice(),
		GeneratedAt: time.Now(),
	}

	if r.URL.Query().Get("format") == "thermal" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, invoice.RenderThermal(data))
		return
	}

	page, err := invoice.RenderHTML(data)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleStatement renders one customer's months as a printable statement.
// The optional months query parameter picks a comma-separated subset of
// month indexes; without it the whole history is included.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.Customer(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	months := c.Months
	if raw := r.URL.Query().Get("months"); raw != "" {
		months = nil
		for _, part := range strings.Split(raw, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || idx < 0 || idx >= len(c.Months) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid month selection: " + part})
				return
			}
			months = append(months, c.Months[idx])
		}
	}

	page, err := invoice.RenderStatementHTML(invoice.BatchData{
		Association: s.association,
		PricePerTon: s.ledger.GlobalPrice(),
		GeneratedAt: time.Now(),
		Statements:  []invoice.Statement{{Customer: c, Months: months}},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleExportStatements renders the whole ledger as one print run, a page
// per customer.
func (s *Server) handleExportStatements(w http.ResponseWriter, r *http.Request) {
	customers := s.ledger.List("name", "", "")
	statements := make([]invoice.Statement, 0, len(customers))
	for _, c := range customers {
		statements = append(statements, invoice.Statement{Customer: c, Months: c.Months})
	}

	page, err := invoice.RenderStatementHTML(invoice.BatchData{
		Association: s.association,
		PricePerTon: s.ledger.GlobalPrice(),
		GeneratedAt: time.Now(),
		Statements:  statements,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
