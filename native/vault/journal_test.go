package vault

import (
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"refvault/storage"
)

func newTestJournal() *Journal {
	journal := NewJournal(storage.NewKV(storage.NewMemDB()))
	journal.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	return journal
}

func TestJournalAppendAndGet(t *testing.T) {
	journal := newTestJournal()
	id, err := journal.Append(&JournalEntry{
		Kind:      JournalKindDeposit,
		Account:   Account{0x01},
		Asset:     "tokx",
		AmountIn:  big.NewInt(100),
		AmountOut: big.NewInt(990),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	entry, ok, err := journal.Get(id)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if entry.Asset != "TOKX" {
		t.Fatalf("asset not normalised: %s", entry.Asset)
	}
	if entry.AmountOut.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("unexpected amount out: %s", entry.AmountOut)
	}
	if entry.CreatedAt != 1700000000 {
		t.Fatalf("unexpected created at: %d", entry.CreatedAt)
	}
}

func TestJournalRejectsDuplicateID(t *testing.T) {
	journal := newTestJournal()
	entry := &JournalEntry{ID: "fixed-1", Kind: JournalKindDeposit, Account: Account{0x01}, Asset: "USD6", AmountIn: big.NewInt(1), AmountOut: big.NewInt(1)}
	if _, err := journal.Append(entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := journal.Append(entry); err == nil {
		t.Fatalf("expected duplicate rejection")
	}
}

func TestJournalListWindowAndPagination(t *testing.T) {
	journal := NewJournal(storage.NewKV(storage.NewMemDB()))
	base := int64(1700000000)
	for i := 0; i < 5; i++ {
		ts := base + int64(i)*100
		journal.SetClock(func() time.Time { return time.Unix(ts, 0) })
		if _, err := journal.Append(&JournalEntry{
			Kind:      JournalKindDeposit,
			Account:   Account{byte(i + 1)},
			Asset:     "USD6",
			AmountIn:  big.NewInt(int64(i + 1)),
			AmountOut: big.NewInt(int64(i + 1)),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	window, _, err := journal.List(base+100, base+300, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("expected 3 entries in window, got %d", len(window))
	}
	page, cursor, err := journal.List(0, 0, "", 2)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || cursor == "" {
		t.Fatalf("expected full page with cursor, got %d entries cursor=%q", len(page), cursor)
	}
	rest, cursor, err := journal.List(0, 0, cursor, 0)
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest) != 3 || cursor != "" {
		t.Fatalf("expected 3 remaining entries and empty cursor, got %d %q", len(rest), cursor)
	}
}

func TestJournalExportCSV(t *testing.T) {
	journal := newTestJournal()
	if _, err := journal.Append(&JournalEntry{Kind: JournalKindDeposit, Account: Account{0x01}, Asset: "TOKX", AmountIn: big.NewInt(100), AmountOut: big.NewInt(990)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := journal.Append(&JournalEntry{Kind: JournalKindWithdrawal, Account: Account{0x01}, Asset: "USD6", AmountIn: big.NewInt(500), AmountOut: big.NewInt(500)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	encoded, count, totalCredited, err := journal.ExportCSV(0, 0)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}
	if totalCredited.Cmp(big.NewInt(990)) != 0 {
		t.Fatalf("expected credited total 990, got %s", totalCredited)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,kind,account,asset") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
}
