package vault

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
)

var (
	journalEntryPrefix = []byte("vault/journal/")
	journalIndexKey    = []byte("vault/journal/index")
)

// Journal entry kinds.
const (
	JournalKindDeposit    = "deposit"
	JournalKindWithdrawal = "withdrawal"
	JournalKindRescue     = "rescue"
)

// JournalEntry is the durable form of an emitted operation record. Entries
// are append-only; nothing in the engine mutates or removes them.
type JournalEntry struct {
	ID        string
	Kind      string
	Account   Account
	Asset     string
	AmountIn  *big.Int
	AmountOut *big.Int
	CreatedAt int64
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (e *JournalEntry) Copy() *JournalEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.AmountIn = cloneBigInt(e.AmountIn)
	clone.AmountOut = cloneBigInt(e.AmountOut)
	return &clone
}

type storedJournalEntry struct {
	ID        string
	Kind      string
	Account   [20]byte
	Asset     string
	AmountIn  string
	AmountOut string
	CreatedAt uint64
}

type journalIndexEntry struct {
	ID        string
	CreatedAt uint64
}

// Journal persists operation records in the underlying key-value store.
type Journal struct {
	store Storage
	clock func() time.Time
}

// NewJournal constructs a journal bound to the provided storage backend.
func NewJournal(store Storage) *Journal {
	return &Journal{store: store, clock: time.Now}
}

// SetClock overrides the time source (primarily for deterministic testing).
func (j *Journal) SetClock(clock func() time.Time) {
	if j == nil || clock == nil {
		return
	}
	j.clock = clock
}

// Append stores a new entry and returns its generated identifier.
func (j *Journal) Append(entry *JournalEntry) (string, error) {
	if j == nil || j.store == nil {
		return "", fmt.Errorf("vault: journal not initialised")
	}
	if entry == nil {
		return "", fmt.Errorf("vault: journal entry must not be nil")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	stored := storedJournalEntry{
		ID:        id,
		Kind:      strings.TrimSpace(entry.Kind),
		Account:   entry.Account,
		Asset:     normaliseAsset(entry.Asset),
		AmountIn:  cloneBigInt(entry.AmountIn).String(),
		AmountOut: cloneBigInt(entry.AmountOut).String(),
	}
	if entry.CreatedAt > 0 {
		stored.CreatedAt = uint64(entry.CreatedAt)
	} else {
		now := j.clock().UTC().Unix()
		if now > 0 {
			stored.CreatedAt = uint64(now)
		}
	}
	key := journalKey(id)
	ok, err := j.store.KVGet(key, nil)
	if err != nil {
		return "", err
	}
	if ok {
		return "", fmt.Errorf("vault: journal entry %s already exists", id)
	}
	if err := j.store.KVPut(key, stored); err != nil {
		return "", err
	}
	index := journalIndexEntry{ID: id, CreatedAt: stored.CreatedAt}
	encoded, err := rlp.EncodeToBytes(index)
	if err != nil {
		return "", err
	}
	if err := j.store.KVAppend(journalIndexKey, encoded); err != nil {
		return "", err
	}
	return id, nil
}

// Get retrieves an entry by identifier.
func (j *Journal) Get(id string) (*JournalEntry, bool, error) {
	if j == nil || j.store == nil {
		return nil, false, fmt.Errorf("vault: journal not initialised")
	}
	var stored storedJournalEntry
	ok, err := j.store.KVGet(journalKey(id), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	entry, err := fromStoredJournalEntry(&stored)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// List returns a paginated list of entries within the supplied timestamp
// range. Both bounds are inclusive; zero disables a bound. The cursor is the
// identifier of the last item from the previous page.
func (j *Journal) List(startTs, endTs int64, cursor string, limit int) ([]*JournalEntry, string, error) {
	if j == nil || j.store == nil {
		return nil, "", fmt.Errorf("vault: journal not initialised")
	}
	entries, err := j.loadIndex()
	if err != nil {
		return nil, "", err
	}
	filtered := make([]journalIndexEntry, 0, len(entries))
	for _, entry := range entries {
		createdAt, err := uint64ToInt64(entry.CreatedAt)
		if err != nil {
			return nil, "", fmt.Errorf("vault: journal index overflow: %w", err)
		}
		if startTs != 0 && createdAt < startTs {
			continue
		}
		if endTs != 0 && createdAt > endTs {
			continue
		}
		filtered = append(filtered, entry)
	}
	sort.SliceStable(filtered, func(i, k int) bool {
		if filtered[i].CreatedAt == filtered[k].CreatedAt {
			return filtered[i].ID < filtered[k].ID
		}
		return filtered[i].CreatedAt < filtered[k].CreatedAt
	})
	startIdx := 0
	cursorID := strings.TrimSpace(cursor)
	if cursorID != "" {
		for i, entry := range filtered {
			if entry.ID == cursorID {
				startIdx = i + 1
				break
			}
		}
	}
	pageSize := limit
	if pageSize <= 0 {
		pageSize = len(filtered) - startIdx
	}
	records := make([]*JournalEntry, 0, pageSize)
	nextCursor := ""
	for i := startIdx; i < len(filtered) && len(records) < pageSize; i++ {
		record, ok, err := j.Get(filtered[i].ID)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		records = append(records, record)
		nextCursor = filtered[i].ID
	}
	if startIdx+len(records) >= len(filtered) {
		nextCursor = ""
	}
	return records, nextCursor, nil
}

// ExportCSV generates a deterministic CSV export covering the provided
// timestamp window. The CSV is returned base64 encoded alongside the entry
// count and the total amount credited across deposits.
func (j *Journal) ExportCSV(startTs, endTs int64) (string, int, *big.Int, error) {
	if j == nil || j.store == nil {
		return "", 0, nil, fmt.Errorf("vault: journal not initialised")
	}
	entries, _, err := j.List(startTs, endTs, "", 0)
	if err != nil {
		return "", 0, nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"id", "kind", "account", "asset", "amountIn", "amountOut", "createdAt"}
	if err := writer.Write(header); err != nil {
		return "", 0, nil, err
	}
	totalCredited := big.NewInt(0)
	for _, entry := range entries {
		if entry.Kind == JournalKindDeposit && entry.AmountOut != nil {
			totalCredited = new(big.Int).Add(totalCredited, entry.AmountOut)
		}
		row := []string{
			entry.ID,
			entry.Kind,
			entry.Account.String(),
			entry.Asset,
			cloneBigInt(entry.AmountIn).String(),
			cloneBigInt(entry.AmountOut).String(),
			strconv.FormatInt(entry.CreatedAt, 10),
		}
		if err := writer.Write(row); err != nil {
			return "", 0, nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", 0, nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return encoded, len(entries), totalCredited, nil
}

func (j *Journal) loadIndex() ([]journalIndexEntry, error) {
	var raw [][]byte
	if err := j.store.KVGetList(journalIndexKey, &raw); err != nil {
		return nil, err
	}
	entries := make([]journalIndexEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var entry journalIndexEntry
		if err := rlp.DecodeBytes(encoded, &entry); err != nil {
			return nil, err
		}
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func fromStoredJournalEntry(stored *storedJournalEntry) (*JournalEntry, error) {
	if stored == nil {
		return nil, fmt.Errorf("vault: nil stored journal entry")
	}
	createdAt, err := uint64ToInt64(stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("vault: journal created at overflow: %w", err)
	}
	amountIn, err := parseStoredAmount(stored.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("vault: journal amount in: %w", err)
	}
	amountOut, err := parseStoredAmount(stored.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("vault: journal amount out: %w", err)
	}
	return &JournalEntry{
		ID:        stored.ID,
		Kind:      stored.Kind,
		Account:   Account(stored.Account),
		Asset:     stored.Asset,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		CreatedAt: createdAt,
	}, nil
}

func journalKey(id string) []byte {
	trimmed := strings.TrimSpace(id)
	key := make([]byte, len(journalEntryPrefix)+len(trimmed))
	copy(key, journalEntryPrefix)
	copy(key[len(journalEntryPrefix):], trimmed)
	return key
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64 range", value)
	}
	return int64(value), nil
}
