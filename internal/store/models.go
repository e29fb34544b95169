package store

import "fmt"

// Provider identifies which kind of message a record came from. The core
// only ever persists this identifier; provider-specific behavior lives in
// the collaborator layer.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderSMS
	ProviderEmail
)

func (p Provider) String() string {
	switch p {
	case ProviderSMS:
		return "sms"
	case ProviderEmail:
		return "email"
	default:
		return "unknown"
	}
}

// MessageKind distinguishes a plain message from one carrying attachments.
type MessageKind int

const (
	KindPrimary MessageKind = iota
	KindRich
)

func (k MessageKind) String() string {
	if k == KindRich {
		return "rich"
	}
	return "primary"
}

// Participant is a single address taking part in a Conversation.
type Participant struct {
	Address     string
	DisplayName string
	Primary     bool
}

// NewParticipant validates and constructs a Participant.
func NewParticipant(address, displayName string, primary bool) (Participant, error) {
	if address == "" {
		return Participant{}, NewError("NewParticipant", KindMalformed, fmt.Errorf("address must not be empty"))
	}
	return Participant{Address: address, DisplayName: displayName, Primary: primary}, nil
}

// Conversation is the root entity grouping a thread of Messages.
type Conversation struct {
	ID                   int64
	ThreadID             string
	Provider             Provider
	DisplayName          string
	LastMessageTimestamp int64
	UnreadCount          int
	Archived             bool
	Participants         []Participant
	CreatedAt            int64
	UpdatedAt            int64
}

// NewConversation validates and constructs a Conversation shell (no
// messages yet); the store assigns ID on insert.
func NewConversation(threadID string, provider Provider, participants []Participant, now int64) (Conversation, error) {
	if threadID == "" {
		return Conversation{}, NewError("NewConversation", KindMalformed, fmt.Errorf("thread_id must not be empty"))
	}
	if len(participants) == 0 {
		return Conversation{}, NewError("NewConversation", KindMalformed, fmt.Errorf("conversation must have at least one participant"))
	}
	primaryCount := 0
	for _, p := range participants {
		if p.Primary {
			primaryCount++
		}
	}
	if primaryCount != 1 {
		participants = append([]Participant(nil), participants...)
		for i := range participants {
			participants[i].Primary = i == 0
		}
	}
	return Conversation{
		ThreadID:     threadID,
		Provider:     provider,
		DisplayName:  displayNameFor(participants),
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func displayNameFor(participants []Participant) string {
	if len(participants) == 0 {
		return ""
	}
	for _, p := range participants {
		if p.Primary && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	if participants[0].DisplayName != "" {
		return participants[0].DisplayName
	}
	return participants[0].Address
}

// Attachment is owned by a Message.
type Attachment struct {
	ID               int64
	Filename         string
	MimeType         string
	ByteLength       int64
	Blob             []byte
	URL              string
	DownloadComplete bool
}

// NewAttachment validates and constructs an Attachment.
func NewAttachment(filename, mimeType string, blob []byte, url string) (Attachment, error) {
	if len(blob) == 0 && url == "" {
		return Attachment{}, NewError("NewAttachment", KindMalformed, fmt.Errorf("attachment needs a blob or a url"))
	}
	a := Attachment{
		Filename: filename,
		MimeType: mimeType,
		Blob:     blob,
		URL:      url,
	}
	if blob != nil {
		a.ByteLength = int64(len(blob))
		a.DownloadComplete = true
	}
	return a, nil
}

// Message belongs to exactly one Conversation. Subject, SenderName, and
// SenderAddress are carried separately from the owning conversation's
// participants so a reply-chain's per-message sender survives even when
// the conversation groups several participants.
type Message struct {
	ID             int64
	ConversationID int64
	Subject        string
	Body           string
	SenderName     string
	SenderAddress  string
	Kind           MessageKind
	Read           bool
	SentAt         int64
	ReceivedAt     int64
	SubID          int64 // opaque, preserved round-trip, unused by any query
	CreatedAt      int64
	UpdatedAt      int64
	Attachments    []Attachment
}

// NewMessage validates and constructs a Message. ConversationID is filled
// in by the store once the owning Conversation is resolved.
func NewMessage(subject, body, senderName, senderAddress string, sentAt int64, read bool, subID int64, attachments []Attachment, now int64) (Message, error) {
	if sentAt <= 0 {
		return Message{}, NewError("NewMessage", KindMalformed, fmt.Errorf("sent timestamp must be finite and positive, got %d", sentAt))
	}
	kind := KindPrimary
	if len(attachments) > 0 {
		kind = KindRich
	}
	for _, a := range attachments {
		if a.Blob != nil && a.ByteLength != int64(len(a.Blob)) {
			return Message{}, NewError("NewMessage", KindMalformed, fmt.Errorf("attachment %q byte_length mismatch", a.Filename))
		}
	}
	return Message{
		Subject:       subject,
		Body:          body,
		SenderName:    senderName,
		SenderAddress: senderAddress,
		Kind:          kind,
		Read:          read,
		SentAt:        sentAt,
		SubID:         subID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Attachments:   attachments,
	}, nil
}

// Stats summarizes the store's contents for the host's status line.
type Stats struct {
	ConversationCount       int64
	MessageCount            int64
	UnreadConversationCount int64
	DatabaseSizeBytes       int64
	OldestMessageTimestamp  *int64
	NewestMessageTimestamp  *int64
}

// ConversationQuery filters GetConversations.
type ConversationQuery struct {
	ParticipantSubstring string
	SentAfter            *int64
	SentBefore           *int64
	Limit                int
	Offset               int
}

// MessageQuery filters GetMessages.
type MessageQuery struct {
	Kind          *MessageKind
	Read          *bool
	TextSubstring string
	SentAfter     *int64
	SentBefore    *int64
	Limit         int
	Offset        int
}
