package config

import (
	"fmt"
	"net/url"
	"strings"
)

const redactedSuffix = "...redacted"

// FormatRedacted renders the resolved configuration with secrets masked so it
// can be printed by -config-only or attached to startup logs.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		fmt.Sprintf("http_port: %d", cfg.HTTPPort),
		"telegram_token: " + maskToken(cfg.TelegramToken),
		"admins: " + strings.Join(cfg.Admins, ","),
		"store_driver: " + cfg.StoreDriver,
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		lines = append(lines, "mysql_dsn: "+redactDSN(cfg.MySQLDSN))
	case DriverMongo:
		lines = append(lines,
			"mongo_uri: "+redactURI(cfg.MongoURI),
			"mongo_db: "+cfg.MongoDB,
		)
	default:
		lines = append(lines, "db_dir: "+cfg.DBDir)
	}

	lines = append(lines,
		"rules_file: "+cfg.RulesFile,
		"more_info_file: "+cfg.MoreInfoFile,
		"timezone: "+cfg.Timezone,
	)
	if cfg.ConfigFile != "" {
		lines = append(lines, "config_file: "+cfg.ConfigFile)
	}

	return strings.Join(lines, "\n")
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return redactedSuffix
	}
	return token[:4] + redactedSuffix
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

// redactDSN hides the password in go-sql-driver style DSNs (user:pass@tcp(...)/db).
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	creds := dsn[:at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		creds = creds[:colon] + ":***"
	}
	return creds + dsn[at:]
}
