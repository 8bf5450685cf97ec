package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"bookmarkvault/pkg/config"
	"bookmarkvault/pkg/syncer"
)

const appName = "bookmarkvault"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", "--app-name="+appName, title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptQuote(message), appleScriptQuote(title))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("%s").Show($toast)
	`, xmlEscape(title), xmlEscape(message), appName)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}

// Notifier reports finished sync runs on the desktop
type Notifier struct {
	sender        NotificationSender
	enabled       bool
	onFailureOnly bool
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(cfg *config.NotificationConfig) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWithSender(cfg, sender)
}

// NewNotifierWithSender creates a Notifier with an explicit sender
func NewNotifierWithSender(cfg *config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{
		sender:        sender,
		enabled:       cfg.Enabled,
		onFailureOnly: cfg.OnFailureOnly,
	}
}

// NotifyRun sends a notification for a finished run. It reports whether one
// was sent.
func (n *Notifier) NotifyRun(s *syncer.Summary, runErr error) bool {
	if !n.enabled || n.sender == nil {
		return false
	}

	failed := runErr != nil || s.HasFailures()
	if n.onFailureOnly && !failed {
		return false
	}

	title := "Bookmarks archived"
	message := SummaryLine(s)
	switch {
	case runErr != nil:
		title = "Bookmark sync failed"
		message = runErr.Error()
	case s.HasFailures():
		title = "Bookmark sync finished with failures"
	}

	// Notifications are best effort
	_ = n.sender.Send(title, message)
	return true
}
