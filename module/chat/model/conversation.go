package model

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a set of participants exchanging messages. A conversation
// between exactly two users is unique for that pair.
type Conversation struct {
	ID             string   `bson:"_id" json:"id"`
	ParticipantIDs []string `bson:"participants" json:"participantIds"`
	// Participants is resolved from ParticipantIDs on read.
	Participants []*User `bson:"-" json:"participants,omitempty"`

	// PairKey identifies a two-party conversation by its participants and
	// is unique among stored conversations. Empty for groups.
	PairKey string `bson:"pair_key,omitempty" json:"-"`

	// LastMessageID is the stored pointer, written on every send.
	LastMessageID string `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`
	// LastMessage is derived from the messages themselves when listing.
	LastMessage *Message `bson:"-" json:"lastMessage,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (c *Conversation) GetTableName() string {
	return "conversations"
}

// PairKeyOf returns the sorted "a:b" key of exactly two distinct users,
// or "" for any other participant set.
func PairKeyOf(userIDs []string) string {
	if len(userIDs) != 2 || userIDs[0] == userIDs[1] {
		return ""
	}
	pair := []string{userIDs[0], userIDs[1]}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the first participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id, true
		}
	}
	return "", false
}

// Clone copies c deep enough that callers may mutate the result.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	cp.Participants = nil
	cp.LastMessage = nil
	return &cp
}
