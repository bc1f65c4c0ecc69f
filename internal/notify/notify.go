// Package notify defines the user-facing side channels the orchestration core
// talks to: desktop notifications, toasts and the embedded preview. The core
// only produces the data; rendering belongs to the shell.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier fires an OS desktop notification. Calls are fire-and-forget.
type Notifier interface {
	Notify(title, body string)
}

// Toaster shows an in-app toast for one app.
type Toaster interface {
	Toast(appID string, level Level, message string)
}

// PreviewSink reveals the embedded preview of an app once it is reachable.
type PreviewSink interface {
	Reveal(appID, url string)
}

// Notification is a recorded desktop notification.
type Notification struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// ToastRecord is a recorded toast.
type ToastRecord struct {
	AppID   string    `json:"appId"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Reveal is a recorded preview reveal.
type Reveal struct {
	AppID string    `json:"appId"`
	URL   string    `json:"url"`
	At    time.Time `json:"at"`
}

// Log writes every side-channel call to a structured logger. It is the
// default collaborator of a headless process.
type Log struct {
	Logger *slog.Logger
}

func (l Log) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Notify implements Notifier.
func (l Log) Notify(title, body string) {
	l.logger().Info("🔔 "+title, "body", body)
}

// Toast implements Toaster.
func (l Log) Toast(appID string, level Level, message string) {
	logger := l.logger().With("appId", appID, "severity", string(level))
	switch level {
	case LevelWarning:
		logger.Warn(message)
	case LevelError:
		logger.Error(message)
	default:
		logger.Info(message)
	}
}

// Reveal implements PreviewSink.
func (l Log) Reveal(appID, url string) {
	l.logger().Info("Preview available.", "appId", appID, "url", url)
}

// Recorder keeps a bounded history of side-channel calls and forwards each
// one to Next. It implements Notifier, Toaster and PreviewSink.
type Recorder struct {
	Next interface {
		Notifier
		Toaster
		PreviewSink
	}
	Max int

	mu            sync.Mutex
	notifications []Notification
	toasts        []ToastRecord
	reveals       []Reveal
}

// NewRecorder creates a recorder keeping at most limit entries per kind.
func NewRecorder(limit int, next interface {
	Notifier
	Toaster
	PreviewSink
}) *Recorder {
	return &Recorder{Next: next, Max: limit}
}

// Notify implements Notifier.
func (r *Recorder) Notify(title, body string) {
	r.mu.Lock()
	r.notifications = trim(append(r.notifications, Notification{Title: title, Body: body, At: time.Now()}), r.Max)
	r.mu.Unlock()
	if r.Next != nil {
		r.Next.Notify(title, body)
	}
}

// Toast implements Toaster.
func (r *Recorder) Toast(appID string, level Level, message string) {
	r.mu.Lock()
	r.toasts = trim(append(r.toasts, ToastRecord{AppID: appID, Level: level, Message: message, At: time.Now()}), r.Max)
	r.mu.Unlock()
	if r.Next != nil {
		r.Next.Toast(appID, level, message)
	}
}

// Reveal implements PreviewSink.
func (r *Recorder) Reveal(appID, url string) {
	r.mu.Lock()
	r.reveals = trim(append(r.reveals, Reveal{AppID: appID, URL: url, At: time.Now()}), r.Max)
	r.mu.Unlock()
	if r.Next != nil {
		r.Next.Reveal(appID, url)
	}
}

// Notifications returns a copy of the recorded notifications, oldest first.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Toasts returns a copy of the recorded toasts, oldest first.
func (r *Recorder) Toasts() []ToastRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ToastRecord(nil), r.toasts...)
}

// Reveals returns a copy of the recorded preview reveals, oldest first.
func (r *Recorder) Reveals() []Reveal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reveal(nil), r.reveals...)
}

func trim[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return append([]T(nil), items[len(items)-limit:]...)
	}
	return items
}
