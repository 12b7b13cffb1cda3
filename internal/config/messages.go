package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Messages are the user-facing texts of the bot
type Messages struct {
	Greeting    string `yaml:"greeting"`
	Apology     string `yaml:"apology"`
	HandoffAck  string `yaml:"handoff_ack"`
	HandbackAck string `yaml:"handback_ack"`
	RateLimited string `yaml:"rate_limited"`
	// AdminHandoffNotice supports {user_id}, {username} and {message}
	AdminHandoffNotice string `yaml:"admin_handoff_notice"`
}

// DefaultMessages are used for every key the catalogue file leaves out
func DefaultMessages() Messages {
	return Messages{
		Greeting:           "Hi! Ask me anything about our products and services. Send /human at any time to talk to a person.",
		Apology:            "Sorry, I can't answer right now. Please try again in a few minutes, or send /human to reach our team.",
		HandoffAck:         "Got it, a member of our team will reply to you here shortly.",
		HandbackAck:        "You're chatting with the assistant again. How can I help?",
		RateLimited:        "You're sending messages a bit too fast. Please wait a moment and try again.",
		AdminHandoffNotice: "User {user_id} (@{username}) asked for a human:\n\n{message}",
	}
}

// AdminNotice renders AdminHandoffNotice
func (m Messages) AdminNotice(userID, username, message string) string {
	if username == "" {
		username = "unknown"
	}
	return strings.NewReplacer(
		"{user_id}", userID,
		"{username}", username,
		"{message}", message,
	).Replace(m.AdminHandoffNotice)
}

// MessageCatalog holds the current Messages and reloads them from a YAML file
type MessageCatalog struct {
	mu      sync.RWMutex
	current Messages
	path    string
}

// NewMessageCatalog loads path on top of the defaults. An empty path keeps the defaults.
func NewMessageCatalog(path string) (*MessageCatalog, error) {
	c := &MessageCatalog{current: DefaultMessages(), path: path}
	if path == "" {
		return c, nil
	}
	if err := c.Reload(); err != nil {
		return c, err
	}
	return c, nil
}

// Get returns the current messages
func (c *MessageCatalog) Get() Messages {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Reload re-reads the catalogue file. On error the previous messages stay.
func (c *MessageCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read messages file: %w", err)
	}

	messages := DefaultMessages()
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("failed to parse messages YAML: %w", err)
	}

	c.mu.Lock()
	c.current = messages
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalogue whenever its file changes, until ctx is done
func (c *MessageCatalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(c.path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", c.path, err)
	}

	// watch the directory; editors replace files instead of writing in place
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", c.path)

	var debounceTimer *time.Timer
	debounceDuration := 200 * time.Millisecond
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, func() {
				if err := c.Reload(); err != nil {
					log.Printf("❌ [MESSAGES] Failed to reload %s: %v", c.path, err)
					return
				}
				log.Printf("✅ [MESSAGES] Reloaded %s", c.path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
