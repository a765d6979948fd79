package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

// fileRegistry is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.subscribers.snapshot.json (periodic snapshot)
//   - <prefix>.subscribers.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot. The in-memory map
// is authoritative between compactions; writes are serialized under the
// mutex, reads take the read lock.
type fileRegistry struct {
	log logx.Logger

	mu sync.RWMutex

	snapshotPath string
	journalFile  *os.File
	subs         map[int64]subRecord

	writes int
}

type subRecord struct {
	UserID    int64  `json:"user_id"`
	ChatID    int64  `json:"chat_id"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func openFile(cfg Config, log logx.Logger) (Registry, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".subscribers.snapshot.json"
	journalPath := prefix + ".subscribers.journal.jsonl"

	subs := map[int64]subRecord{}
	_ = loadSnapshot(snapPath, subs)
	_ = replayJournal(journalPath, subs)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileRegistry{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		subs:         subs,
	}, nil
}

func (r *fileRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.journalFile == nil {
		return nil
	}
	err := r.journalFile.Close()
	r.journalFile = nil
	return err
}

func (r *fileRegistry) Subscribe(ctx context.Context, userID, chatID int64) error {
	_ = ctx
	rec := subRecord{
		UserID:    userID,
		ChatID:    chatID,
		Active:    true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.subs[userID]; ok && prev.CreatedAt != "" {
		rec.CreatedAt = prev.CreatedAt
	}
	return r.applyLocked(rec)
}

func (r *fileRegistry) Unsubscribe(ctx context.Context, userID int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.subs[userID]
	if !ok {
		return nil
	}
	rec.Active = false
	return r.applyLocked(rec)
}

func (r *fileRegistry) IsActive(ctx context.Context, userID int64) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.subs[userID]
	return ok && rec.Active, nil
}

func (r *fileRegistry) ActiveChatIDs(ctx context.Context) ([]int64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []int64
	for _, rec := range r.subs {
		if rec.Active {
			ids = append(ids, rec.ChatID)
		}
	}
	// Stable order keeps fan-out logs and tests deterministic.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fileRegistry) applyLocked(rec subRecord) error {
	if r.journalFile == nil {
		return errors.New("subscriber journal closed")
	}
	r.subs[rec.UserID] = rec
	if err := json.NewEncoder(r.journalFile).Encode(rec); err != nil {
		return err
	}
	r.writes++
	if r.writes%1000 == 0 {
		// Best-effort compact.
		if err := r.compactLocked(); err != nil {
			r.log.Debug("subscriber compact failed", logx.Err(err))
		}
	}
	return nil
}

func (r *fileRegistry) compactLocked() error {
	tmp := r.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(r.subs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.snapshotPath); err != nil {
		return err
	}
	if err := r.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = r.journalFile.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[int64]subRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[int64]subRecord
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[int64]subRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		var rec subRecord
		if err := json.Unmarshal(s.Bytes(), &rec); err != nil {
			continue
		}
		if rec.UserID == 0 {
			continue
		}
		out[rec.UserID] = rec
	}
	return s.Err()
}
