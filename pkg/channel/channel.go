// Package channel defines how external transports hand messages to the
// relay pipeline and how replies flow back.
package channel

import "context"

// ReplyFunc delivers one reply to the sender of the inbound message it
// was created for. Implementations perform exactly one outbound call.
type ReplyFunc func(ctx context.Context, text string) error

// Handler processes one inbound message. reply is used for every
// user-visible outcome, including apologies on failure paths.
type Handler func(ctx context.Context, senderID string, text string, reply ReplyFunc)

// Adapter is a transport that produces inbound messages from its own
// run loop, such as Telegram long polling. Webhook transports register
// HTTP handlers instead.
type Adapter interface {
	Name() string
	Run(ctx context.Context, handler Handler) error
}
