package models

import "time"

// Conversation modes.
const (
	ModePersonal = "personal"
	ModeTeam     = "team"
)

// Message roles.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Metadata keys used by the migration and backup subsystem.
const (
	MetaLocalID      = "local_id"      // client-generated id, migration dedup key
	MetaRestoredFrom = "restored_from" // original conversation id a restore copied
	MetaBackupID     = "backup_id"     // backup a restored conversation came from
)

// Conversation is a chat owned by exactly one account. The owner never
// changes for the lifetime of the conversation.
type Conversation struct {
	ID             string
	AccountID      string
	Title          string
	Mode           string
	Archived       bool
	Metadata       map[string]string
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// Message is one utterance within a conversation, immutable once created.
// Within a conversation, messages are totally ordered by CreatedAt.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// ValidRole reports whether role is one of the persisted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAI
}

// ValidMode reports whether mode is a known conversation mode.
func ValidMode(mode string) bool {
	return mode == ModePersonal || mode == ModeTeam
}
