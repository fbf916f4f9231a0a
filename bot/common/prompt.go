package common

import (
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ErrPromptTimeout is returned by AwaitMessage when the user does not
// answer within the allotted time.
var ErrPromptTimeout = errors.New("prompt timed out waiting for a response")

// AwaitMessage blocks until the given user sends a message in the given
// channel that the accept predicate approves, or until the timeout
// elapses. Messages from other users, other channels, or messages the
// predicate rejects are ignored. A nil predicate accepts any message.
func AwaitMessage(s *discordgo.Session, channelID, userID string, timeout time.Duration, accept func(*discordgo.Message) bool) (*discordgo.Message, error) {
	replies := make(chan *discordgo.Message, 1)

	remove := s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != channelID || m.Author == nil || m.Author.ID != userID {
			return
		}
		if accept != nil && !accept(m.Message) {
			return
		}
		select {
		case replies <- m.Message:
		default:
		}
	})
	defer remove()

	select {
	case msg := <-replies:
		return msg, nil
	case <-time.After(timeout):
		return nil, ErrPromptTimeout
	}
}
