package postprocess

import (
	"encoding/json"
	"fmt"

	"github.com/docloom/docloom/types"
)

// Poster sends one request/reply pair to the mailbox.
type Poster interface {
	Request(req, reply any) error
}

// MailboxNotifier posts notifications to the mailbox service over the
// request channel.
type MailboxNotifier struct {
	post Poster
}

func NewMailboxNotifier(post Poster) *MailboxNotifier {
	return &MailboxNotifier{post: post}
}

func (n *MailboxNotifier) Notify(userList []string, note types.Notification) error {
	raw, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	var ack types.MailboxAck
	if err := n.post.Request(types.MailboxPost{UserList: userList, Message: raw}, &ack); err != nil {
		return fmt.Errorf("post to mailbox: %w", err)
	}
	if ack.Status != types.StatusSuccess {
		return fmt.Errorf("mailbox rejected post: %s", ack.Error)
	}
	return nil
}
