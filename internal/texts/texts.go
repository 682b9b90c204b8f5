// Package texts holds the bot's static replies and the optional rules and
// more-info files loaded once at startup.
package texts

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"boostskilla_bot/internal/logging"
)

// Fixed replies.
const (
	NoRules    = "no rules"
	NoMoreInfo = "no more info"

	Help = "Use /start to run this bot."

	AdminInfo = "BoostSkilla is only 10% of my time.\nLets work on the essentials first"

	HowToAddGroup = "How to add a group:\n" +
		"1. Add this bot to your Telegram group.\n" +
		"2. Promote the bot to admin so it can create an invite link.\n" +
		"3. Send /start in the group and press \"Register group\"."

	NotUpgradeable = "I can't create an invite link for this chat.\n" +
		"Make me an admin of the group and try registering again."

	Apology = "Sorry, something went wrong. Please try again later."

	NotAdmin = "This view is only available to bot admins."
)

// Static is the set of file-backed texts.
type Static struct {
	Rules    string
	MoreInfo string
}

// Load reads the rules and more-info files. A missing, unreadable or empty
// file falls back to its placeholder instead of failing.
func Load(rulesPath, moreInfoPath string, logger *logrus.Entry) Static {
	if logger == nil {
		logger = logging.Logger()
	}

	return Static{
		Rules:    readOrFallback(rulesPath, NoRules, "rules", logger),
		MoreInfo: readOrFallback(moreInfoPath, NoMoreInfo, "more_info", logger),
	}
}

func readOrFallback(path, fallback, name string, logger *logrus.Entry) string {
	fields := logging.Fields{
		"event": "static_text_fallback",
		"text":  name,
		"path":  path,
	}

	if strings.TrimSpace(path) == "" {
		logger.WithFields(fields).Info("no file configured, using placeholder")
		return fallback
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.WithFields(fields).Info("file not found, using placeholder")
		return fallback
	case err != nil:
		logger.WithFields(fields).WithError(err).Warn("failed to read file, using placeholder")
		return fallback
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		logger.WithFields(fields).Info("file is empty, using placeholder")
		return fallback
	}
	return text
}
