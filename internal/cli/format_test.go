package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/notify"
	"github.com/evcraddock/matchmaker/internal/scoring"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world!", 8, "hello..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncate(tt.input, tt.max)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
			}
		})
	}
}

func TestPrintMatchTable(t *testing.T) {
	var buf bytes.Buffer
	matches := []match.Match{
		{InvestorID: "inv-a", PropertyID: "p1", Breakdown: scoring.Breakdown{Location: 100, Price: 100, Bedrooms: 100, Type: 100, Overall: 100, Label: scoring.LabelExcellent}},
		{InvestorID: "inv-b", PropertyID: "p1", Breakdown: scoring.Breakdown{Location: 50, Price: 60, Bedrooms: 100, Type: 100, Overall: 70, Label: scoring.LabelGood}},
	}

	if err := printMatchTable(&buf, "INVESTOR", matches, func(m match.Match) string { return m.InvestorID }); err != nil {
		t.Fatalf("printMatchTable: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"INVESTOR", "inv-a", "inv-b", "100%", "70%", "Total: 2 matches"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "inv-a") > strings.Index(out, "inv-b") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestPrintMatchTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := printMatchTable(&buf, "PROPERTY", nil, func(m match.Match) string { return m.PropertyID }); err != nil {
		t.Fatalf("printMatchTable: %v", err)
	}
	if !strings.Contains(buf.String(), "No matches found.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestPrintLedgerTable(t *testing.T) {
	var buf bytes.Buffer
	records := []ledger.Record{
		{InvestorID: "inv-a", PropertyID: "p1", ScoreAtSend: 94, SentAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	if err := printLedgerTable(&buf, records); err != nil {
		t.Fatalf("printLedgerTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"SCORE", "inv-a", "p1", "94", "Total: 1 records"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printLedgerTable(&buf, nil); err != nil {
		t.Fatalf("printLedgerTable: %v", err)
	}
	if !strings.Contains(buf.String(), "No notifications recorded.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := printSummary(&buf, notify.Summary{Qualified: 3, Sent: 2, Failed: 1}); err != nil {
		t.Fatalf("printSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Qualified: 3", "Sent:      2", "Failed:    1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
