package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msavelyev-dev/teamcoach/internal/cache"
	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/logging"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
)

// Archiver copies backup payloads to external object storage. Upload returns
// the storage key it wrote to.
type Archiver interface {
	Upload(ctx context.Context, key string, body []byte) (string, error)

	// GetPresignedGetUrl returns a time-limited download URL for key.
	GetPresignedGetUrl(ctx context.Context, key string) (string, error)
}

// HistoryService imports client-side local history into the store and takes
// and restores conversation snapshots.
type HistoryService struct {
	repomanager repomanager.RepositoryManager
	listCache   *cache.Cache[[]*models.Conversation]
	archiver    Archiver // nil disables external archiving
	log         logging.Logger
}

func NewHistoryService(rm repomanager.RepositoryManager, listCache *cache.Cache[[]*models.Conversation], archiver Archiver, log logging.Logger) *HistoryService {
	return &HistoryService{
		repomanager: rm,
		listCache:   listCache,
		archiver:    archiver,
		log:         log.With("service", "history"),
	}
}

// ItemFailure records one conversation that could not be imported.
type ItemFailure struct {
	LocalID string
	Err     error
}

// MigrationResult summarizes one import batch: conversations and messages
// actually created, conversations skipped as already imported, and per-item
// failures.
type MigrationResult struct {
	Imported         int
	MessagesImported int
	Skipped          int
	Failures         []ItemFailure
}

// Migrate imports a local history export. Conversations whose local id was
// imported before are skipped, so re-running a migration is safe. A failing
// item never aborts the batch; failures come back in the result.
func (s *HistoryService) Migrate(ctx context.Context, accountID string, payload []byte) (*MigrationResult, error) {
	items, err := parseHistory(payload)
	if err != nil {
		return nil, err
	}
	return s.importItems(ctx, accountID, items)
}

// RecoverCorrupted salvages well-formed conversations from a payload that
// does not parse as a whole and imports them. An unsalvageable payload yields
// an empty result, not an error.
func (s *HistoryService) RecoverCorrupted(ctx context.Context, accountID string, payload []byte) (*MigrationResult, error) {
	items := recoverHistory(payload)
	if len(items) == 0 {
		s.log.Warn(ctx, "nothing salvageable in corrupted history",
			"account_id", accountID, "payload_bytes", len(payload))
		return &MigrationResult{}, nil
	}

	s.log.Info(ctx, "salvaged conversations from corrupted history",
		"account_id", accountID, "salvaged", len(items))
	return s.importItems(ctx, accountID, items)
}

func (s *HistoryService) importItems(ctx context.Context, accountID string, items []localConversation) (*MigrationResult, error) {
	repo := s.repomanager.Conversations(nil)

	existing, err := repo.LocalIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{}
	for _, item := range items {
		if item.LocalID != "" {
			if _, done := existing[item.LocalID]; done {
				s.log.Debug(ctx, "conversation already imported, skipping",
					"account_id", accountID, "local_id", item.LocalID)
				result.Skipped++
				continue
			}
		}

		messages, err := s.importOne(ctx, accountID, item)
		if err != nil {
			result.Failures = append(result.Failures, ItemFailure{
				LocalID: item.LocalID,
				Err:     fmt.Errorf("%w: %v", common.ErrMigrationItemFailed, err),
			})
			continue
		}

		if item.LocalID != "" {
			existing[item.LocalID] = struct{}{}
		}
		result.Imported++
		result.MessagesImported += messages
	}

	if result.Imported > 0 {
		s.listCache.Invalidate(accountID)
	}
	s.log.Info(ctx, "history migrated", "account_id", accountID,
		"imported", result.Imported, "messages", result.MessagesImported,
		"skipped", result.Skipped, "failed", len(result.Failures))
	return result, nil
}

// importOne writes the conversation and its messages in one transaction, so
// a failed item leaves nothing behind — in particular no dedup key — and a
// resubmission of the same payload retries it. Returns the number of messages
// created.
func (s *HistoryService) importOne(ctx context.Context, accountID string, item localConversation) (int, error) {
	if item.LocalID == "" {
		return 0, fmt.Errorf("missing local id")
	}

	mode := item.Mode
	if mode == "" {
		mode = models.ModePersonal
	}
	if !models.ValidMode(mode) {
		return 0, fmt.Errorf("invalid mode %q", mode)
	}
	for _, m := range item.Messages {
		if !models.ValidRole(m.Role) {
			return 0, fmt.Errorf("invalid message role %q", m.Role)
		}
	}

	title := item.Title
	if title == "" {
		title = "Imported conversation"
	}

	c := &models.Conversation{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Title:     title,
		Mode:      mode,
		Metadata:  map[string]string{models.MetaLocalID: item.LocalID},
	}
	if n := len(item.Messages); n > 0 {
		c.LastActivityAt = item.Messages[n-1].Timestamp.UTC()
	} else if !item.CreatedAt.IsZero() {
		c.LastActivityAt = item.CreatedAt.UTC()
	}

	created := 0
	err := s.repomanager.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Conversations(tx)

		if _, err := repo.Create(ctx, c); err != nil {
			return err
		}

		// Local exports often carry second-resolution timestamps; equal stamps
		// get nudged forward so the stored order matches the export order.
		var prev time.Time
		for _, m := range item.Messages {
			ts := m.Timestamp.UTC()
			if ts.IsZero() {
				ts = timeNow().UTC()
			}
			if !ts.After(prev) {
				ts = prev.Add(time.Millisecond)
			}
			prev = ts

			msg := &models.Message{
				ID:             uuid.NewString(),
				ConversationID: c.ID,
				Role:           m.Role,
				Content:        m.Content,
				CreatedAt:      ts,
			}
			if _, err := repo.AddMessage(ctx, msg); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// backupSnapshot is the payload stored for one backup: every conversation of
// the account, archived included, with full message history.
type backupSnapshot struct {
	Version       int                    `json:"version"`
	TakenAt       time.Time              `json:"taken_at"`
	Conversations []snapshotConversation `json:"conversations"`
}

type snapshotConversation struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Mode           string            `json:"mode"`
	Archived       bool              `json:"archived"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	CreatedAt      time.Time         `json:"created_at"`
	Messages       []snapshotMessage `json:"messages"`
}

type snapshotMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const snapshotVersion = 1

// CreateBackup snapshots all of the account's conversations into a single
// durable blob. When an archiver is configured the payload is also copied to
// object storage; an archiving failure downgrades to a local-only backup.
func (s *HistoryService) CreateBackup(ctx context.Context, accountID string) (*models.ConversationBackup, error) {
	repo := s.repomanager.Conversations(nil)

	conversations, err := repo.ListAllByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	snapshot := backupSnapshot{
		Version: snapshotVersion,
		TakenAt: timeNow().UTC(),
	}
	for _, c := range conversations {
		messages, err := repo.ListMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		sc := snapshotConversation{
			ID:             c.ID,
			Title:          c.Title,
			Mode:           c.Mode,
			Archived:       c.Archived,
			Metadata:       c.Metadata,
			LastActivityAt: c.LastActivityAt,
			CreatedAt:      c.CreatedAt,
		}
		for _, m := range messages {
			sc.Messages = append(sc.Messages, snapshotMessage{
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
		snapshot.Conversations = append(snapshot.Conversations, sc)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	backup := &models.ConversationBackup{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Payload:   payload,
	}

	if s.archiver != nil {
		key := fmt.Sprintf("backups/%s/%s.json", accountID, backup.ID)
		storedKey, err := s.archiver.Upload(ctx, key, payload)
		if err != nil {
			s.log.Warn(ctx, "backup archiving failed, keeping local copy only",
				"account_id", accountID, "backup_id", backup.ID, "error", err)
		} else {
			backup.StorageKey = storedKey
		}
	}

	created, err := s.repomanager.Backups(nil).Create(ctx, backup)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "backup created", "account_id", accountID,
		"backup_id", created.ID, "conversations", len(snapshot.Conversations))
	return created, nil
}

// ListBackups returns the account's backup envelopes, newest first.
func (s *HistoryService) ListBackups(ctx context.Context, accountID string) ([]*models.ConversationBackup, error) {
	return s.repomanager.Backups(nil).ListByAccount(ctx, accountID)
}

// BackupDownloadURL returns a time-limited URL for downloading the backup's
// archived copy, so large payloads never stream through this process. Backups
// that were never archived off-site have no downloadable copy.
func (s *HistoryService) BackupDownloadURL(ctx context.Context, accountID, backupID string) (string, error) {
	if s.archiver == nil {
		return "", fmt.Errorf("backup archiving is not configured")
	}

	backup, err := s.repomanager.Backups(nil).Get(ctx, backupID, accountID)
	if err != nil {
		return "", err
	}
	if backup.StorageKey == "" {
		return "", fmt.Errorf("backup %s has no archived copy", backup.ID)
	}

	return s.archiver.GetPresignedGetUrl(ctx, backup.StorageKey)
}

// Restore copies every conversation in the backup into fresh conversations
// owned by the same account. Existing data is never touched or deduplicated:
// restoring twice yields two copies, each titled with a "(restored)" suffix
// and carrying provenance metadata.
func (s *HistoryService) Restore(ctx context.Context, accountID, backupID string) ([]*models.Conversation, error) {
	backup, err := s.repomanager.Backups(nil).Get(ctx, backupID, accountID)
	if err != nil {
		return nil, err
	}

	var snapshot backupSnapshot
	if err := json.Unmarshal(backup.Payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding backup payload: %w", err)
	}

	repo := s.repomanager.Conversations(nil)

	var restored []*models.Conversation
	for _, sc := range snapshot.Conversations {
		metadata := map[string]string{
			models.MetaRestoredFrom: sc.ID,
			models.MetaBackupID:     backup.ID,
		}
		for k, v := range sc.Metadata {
			if k == models.MetaLocalID {
				// A restored copy must not collide with migration dedup.
				continue
			}
			metadata[k] = v
		}

		title := sc.Title
		if !strings.HasSuffix(title, " (restored)") {
			title += " (restored)"
		}

		c := &models.Conversation{
			ID:             uuid.NewString(),
			AccountID:      accountID,
			Title:          title,
			Mode:           sc.Mode,
			Archived:       sc.Archived,
			Metadata:       metadata,
			LastActivityAt: sc.LastActivityAt,
		}
		created, err := repo.Create(ctx, c)
		if err != nil {
			return nil, err
		}

		for _, m := range sc.Messages {
			msg := &models.Message{
				ID:             uuid.NewString(),
				ConversationID: created.ID,
				Role:           m.Role,
				Content:        m.Content,
				CreatedAt:      m.CreatedAt,
			}
			if _, err := repo.AddMessage(ctx, msg); err != nil {
				return nil, err
			}
		}
		restored = append(restored, created)
	}

	if err := s.repomanager.Backups(nil).MarkRestored(ctx, backup.ID, timeNow().UTC()); err != nil {
		return nil, err
	}
	s.listCache.Invalidate(accountID)

	s.log.Info(ctx, "backup restored", "account_id", accountID,
		"backup_id", backup.ID, "conversations", len(restored))
	return restored, nil
}
