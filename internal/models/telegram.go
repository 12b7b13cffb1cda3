package models

import (
	"strconv"
	"strings"
)

// TelegramUpdate represents an incoming Telegram webhook update
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

// TelegramMessage represents a Telegram message.
// Only text and captions are answered; media is acknowledged and ignored.
type TelegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from,omitempty"`
	Chat      *TelegramChat `json:"chat"`
	Date      int64         `json:"date"`
	Text      string        `json:"text,omitempty"`
	Caption   string        `json:"caption,omitempty"`
}

// TelegramUser represents a Telegram user
type TelegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// TelegramChat represents a Telegram chat
type TelegramChat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"` // "private", "group", "supergroup", "channel"
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// InboundMessage is a text message reduced to what the bot pipeline needs
type InboundMessage struct {
	UpdateID int64
	UserID   string
	ChatID   int64
	Username string
	Text     string
}

// Inbound reduces u to an InboundMessage. ok is false for updates without
// a text (or caption) from a user.
func (u *TelegramUpdate) Inbound() (InboundMessage, bool) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return InboundMessage{}, false
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return InboundMessage{}, false
	}
	return InboundMessage{
		UpdateID: u.UpdateID,
		UserID:   strconv.FormatInt(msg.From.ID, 10),
		ChatID:   msg.Chat.ID,
		Username: msg.From.Username,
		Text:     text,
	}, true
}
