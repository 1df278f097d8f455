package view

import (
	"context"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/attachment"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/store"
)

// Conversation is the screen a user sees for one thread. It is a pure
// consumer: it reads derived state from the shared components and issues
// commands, holding no synchronization logic of its own.
type Conversation struct {
	session *Session
	peerID  string
	convID  string
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.convID }

// Peer returns the other participant.
func (c *Conversation) Peer() string { return c.peerID }

// Messages returns the ordered, deduplicated log for display.
func (c *Conversation) Messages() []domain.Message {
	return c.session.Store.Messages(c.convID)
}

// PeerTyping reports whether the peer's typing indicator should show.
func (c *Conversation) PeerTyping() bool {
	return c.session.Presence.PeerTyping(c.convID)
}

// Keystroke forwards local typing activity to the presence controller.
func (c *Conversation) Keystroke() {
	c.session.Presence.Keystroke(c.peerID)
}

// Attach queues a selected file for upload.
func (c *Conversation) Attach(file attachment.File) (*attachment.Draft, error) {
	return c.session.Attachments.Enqueue(file)
}

// RemoveAttachment discards a draft the user deselected before sending.
func (c *Conversation) RemoveAttachment(d *attachment.Draft) {
	c.session.Attachments.Remove(d)
}

// Send delivers a message with the given drafts. The typing indicator on the
// peer side clears synchronously with delivery. On failure the returned
// error is a *store.SendError carrying the recoverable draft.
func (c *Conversation) Send(ctx context.Context, text string, drafts []*attachment.Draft) (*domain.Message, error) {
	c.session.Presence.MessageSent(c.peerID)

	refs := make([]store.AttachmentDraft, len(drafts))
	for i, d := range drafts {
		refs[i] = d
	}
	return c.session.Store.Send(ctx, c.peerID, text, refs)
}

// UnreadTotal exposes the badge value for surfaces rendered next to the
// conversation.
func (c *Conversation) UnreadTotal() int {
	return c.session.Unread.Total()
}

// Close marks the surface inactive. Live messages for this conversation
// count as unread again until it is reopened.
func (c *Conversation) Close() {
	c.session.Unread.SetActive("")
}
