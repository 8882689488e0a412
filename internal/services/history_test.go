package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/cache"
	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/conversations"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
)

const sampleHistory = `[
  {
    "local_id": "loc-1",
    "title": "Coaching Riley",
    "mode": "personal",
    "messages": [
      {"role": "user", "content": "how do I start?", "timestamp": "2024-03-01T10:00:00Z"},
      {"role": "ai", "content": "lead with strengths", "timestamp": "2024-03-01T10:00:00Z"}
    ]
  },
  {
    "local_id": "loc-2",
    "title": "Team retro",
    "mode": "team",
    "messages": [
      {"role": "user", "content": "retro themes?", "timestamp": "2024-03-02T09:00:00Z"}
    ]
  }
]`

func TestMigrate_ImportsConversations(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	result, err := env.history.Migrate(ctx, "acc-1", []byte(sampleHistory))
	if err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 || len(result.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.MessagesImported != 3 {
		t.Fatalf("want 3 messages imported, got %d", result.MessagesImported)
	}

	list, err := env.conversations.List(ctx, "acc-1")
	if err != nil || len(list) != 2 {
		t.Fatalf("List error: %v %v", err, list)
	}
	for _, c := range list {
		if c.Metadata[models.MetaLocalID] == "" {
			t.Fatalf("imported conversation missing local id: %+v", c)
		}
	}
}

func TestMigrate_EqualTimestampsKeepExportOrder(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	if _, err := env.history.Migrate(ctx, "acc-1", []byte(sampleHistory)); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}

	list, _ := env.conversations.List(ctx, "acc-1")
	var conv *models.Conversation
	for _, c := range list {
		if c.Metadata[models.MetaLocalID] == "loc-1" {
			conv = c
		}
	}
	if conv == nil {
		t.Fatalf("loc-1 not imported")
	}

	_, messages, err := env.conversations.Get(ctx, conv.ID, "acc-1")
	if err != nil || len(messages) != 2 {
		t.Fatalf("Get error: %v %v", err, messages)
	}
	if messages[0].Content != "how do I start?" || messages[1].Content != "lead with strengths" {
		t.Fatalf("export order lost: %q then %q", messages[0].Content, messages[1].Content)
	}
	if !messages[1].CreatedAt.After(messages[0].CreatedAt) {
		t.Fatalf("equal timestamps not separated: %v %v", messages[0].CreatedAt, messages[1].CreatedAt)
	}
}

func TestMigrate_SecondRunSkipsEverything(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	if _, err := env.history.Migrate(ctx, "acc-1", []byte(sampleHistory)); err != nil {
		t.Fatalf("first Migrate error: %v", err)
	}

	result, err := env.history.Migrate(ctx, "acc-1", []byte(sampleHistory))
	if err != nil {
		t.Fatalf("second Migrate error: %v", err)
	}
	if result.Imported != 0 || result.Skipped != 2 {
		t.Fatalf("migration not idempotent: %+v", result)
	}

	list, _ := env.conversations.List(ctx, "acc-1")
	if len(list) != 2 {
		t.Fatalf("duplicates created: %d conversations", len(list))
	}
}

func TestMigrate_CollectsPerItemFailures(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	payload := []byte(`[
	  {"local_id": "loc-ok", "title": "Fine", "messages": []},
	  {"local_id": "loc-bad", "title": "Bad role", "messages": [{"role": "system", "content": "x"}]},
	  {"title": "No local id", "messages": []}
	]`)

	result, err := env.history.Migrate(ctx, "acc-1", payload)
	if err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if result.Imported != 1 || result.MessagesImported != 0 {
		t.Fatalf("want 1 imported with 0 messages, got %+v", result)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("want 2 failures, got %+v", result.Failures)
	}
	for _, f := range result.Failures {
		if !errors.Is(f.Err, common.ErrMigrationItemFailed) {
			t.Fatalf("failure not tagged: %v", f.Err)
		}
	}
}

func TestMigrate_DuplicatesWithinOneBatch(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	payload := []byte(`[
	  {"local_id": "loc-1", "title": "First copy", "messages": []},
	  {"local_id": "loc-1", "title": "Second copy", "messages": []}
	]`)

	result, err := env.history.Migrate(ctx, "acc-1", payload)
	if err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Fatalf("in-batch dedup failed: %+v", result)
	}
}

func TestRecoverCorrupted_SalvagesAndImports(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	corrupted := []byte(`[{"local_id":"loc-1","title":"Intact","messages":[]},{"local_id":"loc-2","ti`)

	result, err := env.history.RecoverCorrupted(ctx, "acc-1", corrupted)
	if err != nil {
		t.Fatalf("RecoverCorrupted error: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("want 1 salvaged import, got %+v", result)
	}
}

func TestRecoverCorrupted_NothingSalvageable(t *testing.T) {
	env := newTestEnv(nil)

	result, err := env.history.RecoverCorrupted(context.Background(), "acc-1", []byte("not json at all"))
	if err != nil {
		t.Fatalf("RecoverCorrupted error: %v", err)
	}
	if result.Imported != 0 || result.Skipped != 0 || len(result.Failures) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

// flakyConversationRepo fails AddMessage once its success budget runs out,
// standing in for a storage outage mid-import.
type flakyConversationRepo struct {
	conversations.Repository
	remaining *int
}

func (f *flakyConversationRepo) AddMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	if *f.remaining <= 0 {
		return nil, fmt.Errorf("%w: connection reset", common.ErrStorageUnavailable)
	}
	*f.remaining--
	return f.Repository.AddMessage(ctx, message)
}

type flakyRepoManager struct {
	*repomanager.InMemoryRepositoryManager
	remaining int
}

func (f *flakyRepoManager) Conversations(db dbx.DBTX) conversations.Repository {
	return &flakyConversationRepo{
		Repository: f.InMemoryRepositoryManager.Conversations(db),
		remaining:  &f.remaining,
	}
}

func TestMigrate_FailedItemCanBeResubmitted(t *testing.T) {
	rm := &flakyRepoManager{
		InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager(),
		remaining:                 1,
	}
	listCache := cache.New[[]*models.Conversation](time.Minute, 100)
	log := testLogger()
	history := NewHistoryService(rm, listCache, nil, log)
	convs := NewConversationService(rm, listCache, log)
	ctx := context.Background()

	payload := []byte(`[
	  {"local_id": "loc-1", "title": "Flaky import", "messages": [
	    {"role": "user", "content": "first", "timestamp": "2024-03-01T10:00:00Z"},
	    {"role": "ai", "content": "second", "timestamp": "2024-03-01T10:00:01Z"}
	  ]}
	]`)

	// The outage hits on the second message of the item.
	result, err := history.Migrate(ctx, "acc-1", payload)
	if err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if result.Imported != 0 || result.MessagesImported != 0 || len(result.Failures) != 1 {
		t.Fatalf("want a single failed item, got %+v", result)
	}
	if !errors.Is(result.Failures[0].Err, common.ErrMigrationItemFailed) {
		t.Fatalf("failure not tagged: %v", result.Failures[0].Err)
	}

	// The failed item left nothing behind, in particular no dedup key.
	ids, err := rm.InMemoryRepositoryManager.Conversations(nil).LocalIDs(ctx, "acc-1")
	if err != nil || len(ids) != 0 {
		t.Fatalf("half-imported conversation left behind: %v %v", err, ids)
	}

	// Resubmitting the identical payload after the outage imports it fully.
	rm.remaining = 100
	result, err = history.Migrate(ctx, "acc-1", payload)
	if err != nil {
		t.Fatalf("second Migrate error: %v", err)
	}
	if result.Imported != 1 || result.MessagesImported != 2 || result.Skipped != 0 {
		t.Fatalf("resubmission did not import the item: %+v", result)
	}

	list, err := convs.List(ctx, "acc-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("List error: %v %v", err, list)
	}
	_, messages, err := convs.Get(ctx, list[0].ID, "acc-1")
	if err != nil || len(messages) != 2 {
		t.Fatalf("messages lost on retry: %v %v", err, messages)
	}
}

type fakeArchiver struct {
	uploads map[string][]byte
	err     error
}

func (f *fakeArchiver) Upload(ctx context.Context, key string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[key] = body
	return key, nil
}

func (f *fakeArchiver) GetPresignedGetUrl(ctx context.Context, key string) (string, error) {
	return "https://storage.local/" + key + "?signed", nil
}

func TestCreateBackup_IncludesArchivedConversations(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	active, err := env.conversations.Create(ctx, "acc-1", "Active", models.ModePersonal)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := env.conversations.AddMessage(ctx, active.ID, "acc-1", models.RoleUser, "hello"); err != nil {
		t.Fatalf("AddMessage error: %v", err)
	}
	archived, err := env.conversations.Create(ctx, "acc-1", "Old", models.ModeTeam)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := env.conversations.Archive(ctx, archived.ID, "acc-1"); err != nil {
		t.Fatalf("Archive error: %v", err)
	}

	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}
	if len(backup.Payload) == 0 {
		t.Fatalf("empty payload")
	}
	if !strings.Contains(string(backup.Payload), `"Old"`) {
		t.Fatalf("archived conversation missing from snapshot")
	}
	if backup.StorageKey != "" {
		t.Fatalf("no archiver configured, key must be empty: %q", backup.StorageKey)
	}
}

func TestCreateBackup_ArchivesToObjectStorage(t *testing.T) {
	archiver := &fakeArchiver{}
	env := newTestEnv(archiver)
	ctx := context.Background()

	if _, err := env.conversations.Create(ctx, "acc-1", "Notes", models.ModePersonal); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}
	if backup.StorageKey == "" {
		t.Fatalf("storage key not recorded")
	}
	if _, ok := archiver.uploads[backup.StorageKey]; !ok {
		t.Fatalf("payload not uploaded under %q", backup.StorageKey)
	}
}

func TestCreateBackup_ArchivingFailureKeepsLocalCopy(t *testing.T) {
	env := newTestEnv(&fakeArchiver{err: fmt.Errorf("bucket unreachable")})
	ctx := context.Background()

	if _, err := env.conversations.Create(ctx, "acc-1", "Notes", models.ModePersonal); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("archiving failure must not fail the backup: %v", err)
	}
	if backup.StorageKey != "" {
		t.Fatalf("failed upload must leave the key empty")
	}
}

func TestRestore_IsNonDestructive(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	conv, err := env.conversations.Create(ctx, "acc-1", "Quarterly plan", models.ModePersonal)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := env.conversations.AddMessage(ctx, conv.ID, "acc-1", models.RoleUser, "draft goals"); err != nil {
		t.Fatalf("AddMessage error: %v", err)
	}

	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}

	restored, err := env.history.Restore(ctx, "acc-1", backup.ID)
	if err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if len(restored) != 1 {
		t.Fatalf("want 1 restored conversation, got %d", len(restored))
	}

	got := restored[0]
	if got.ID == conv.ID {
		t.Fatalf("restore must create a new conversation")
	}
	if got.Title != "Quarterly plan (restored)" {
		t.Fatalf("missing restored suffix: %q", got.Title)
	}
	if got.Metadata[models.MetaRestoredFrom] != conv.ID || got.Metadata[models.MetaBackupID] != backup.ID {
		t.Fatalf("provenance metadata missing: %+v", got.Metadata)
	}

	// Original untouched, copy carries the messages.
	_, originalMessages, err := env.conversations.Get(ctx, conv.ID, "acc-1")
	if err != nil || len(originalMessages) != 1 {
		t.Fatalf("original damaged: %v %v", err, originalMessages)
	}
	_, copiedMessages, err := env.conversations.Get(ctx, got.ID, "acc-1")
	if err != nil || len(copiedMessages) != 1 {
		t.Fatalf("messages not restored: %v %v", err, copiedMessages)
	}

	// Restoring again duplicates again; no dedup on purpose.
	again, err := env.history.Restore(ctx, "acc-1", backup.ID)
	if err != nil || len(again) != 1 {
		t.Fatalf("second restore: %v %v", err, again)
	}
	list, _ := env.conversations.List(ctx, "acc-1")
	if len(list) != 3 {
		t.Fatalf("want original + 2 copies, got %d", len(list))
	}

	// The backup records that it has been restored.
	backups, err := env.history.ListBackups(ctx, "acc-1")
	if err != nil || len(backups) != 1 {
		t.Fatalf("ListBackups: %v %v", err, backups)
	}
	if backups[0].RestoredAt == nil {
		t.Fatalf("restored_at not stamped")
	}
}

func TestRestore_CrossAccountIsNotFound(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	if _, err := env.conversations.Create(ctx, "acc-1", "Notes", models.ModePersonal); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}

	if _, err := env.history.Restore(ctx, "acc-2", backup.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("cross-account restore must be not found, got %v", err)
	}
}

func TestRestore_DropsLocalIDFromCopies(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	if _, err := env.history.Migrate(ctx, "acc-1", []byte(sampleHistory)); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}
	restored, err := env.history.Restore(ctx, "acc-1", backup.ID)
	if err != nil {
		t.Fatalf("Restore error: %v", err)
	}

	for _, c := range restored {
		if _, ok := c.Metadata[models.MetaLocalID]; ok {
			t.Fatalf("restored copy kept the migration dedup key: %+v", c.Metadata)
		}
	}

	// A re-run of the migration still skips: the originals keep their ids.
	result, err := env.history.Migrate(ctx, "acc-1", []byte(sampleHistory))
	if err != nil || result.Imported != 0 {
		t.Fatalf("restore broke migration dedup: %v %+v", err, result)
	}
}

func TestBackupDownloadURL(t *testing.T) {
	env := newTestEnv(&fakeArchiver{})
	ctx := context.Background()

	if _, err := env.conversations.Create(ctx, "acc-1", "Notes", models.ModePersonal); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}

	url, err := env.history.BackupDownloadURL(ctx, "acc-1", backup.ID)
	if err != nil {
		t.Fatalf("BackupDownloadURL error: %v", err)
	}
	if !strings.Contains(url, backup.StorageKey) {
		t.Fatalf("url not derived from storage key: %q", url)
	}

	if _, err := env.history.BackupDownloadURL(ctx, "acc-2", backup.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("cross-account download must be not found, got %v", err)
	}
}

func TestBackupDownloadURL_NoArchivedCopy(t *testing.T) {
	env := newTestEnv(&fakeArchiver{err: fmt.Errorf("bucket unreachable")})
	ctx := context.Background()

	if _, err := env.conversations.Create(ctx, "acc-1", "Notes", models.ModePersonal); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	backup, err := env.history.CreateBackup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("CreateBackup error: %v", err)
	}

	if _, err := env.history.BackupDownloadURL(ctx, "acc-1", backup.ID); err == nil {
		t.Fatalf("expected error for backup without archived copy")
	}
}

func TestBackupDownloadURL_ArchivingDisabled(t *testing.T) {
	env := newTestEnv(nil)

	if _, err := env.history.BackupDownloadURL(context.Background(), "acc-1", "b-1"); err == nil {
		t.Fatalf("expected error when no archiver is configured")
	}
}
