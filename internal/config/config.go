// Package config defines the configuration contract and handles loading and
// validating the bot configuration from the environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken = "TELEGRAM_TOKEN"
	KeyAdmins        = "BOT_ADMINS"
	KeyStoreDriver   = "STORE_DRIVER"
	KeyDBDir         = "DB_DIR"
	KeyMySQLDSN      = "MYSQL_DSN"
	KeyMongoURI      = "MONGO_URI"
	KeyMongoDB       = "MONGO_DB"
	KeyRulesFile     = "RULES_FILE"
	KeyMoreInfoFile  = "MORE_INFO_FILE"
	KeyTimezone      = "BOT_TIMEZONE"
	KeyAppEnv        = "APP_ENV"
	KeyLogLevel      = "LOG_LEVEL"
	KeyHTTPPort      = "HTTP_PORT"
	KeyConfigFile    = "CONFIG_FILE"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Supported store drivers.
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"

	// PlaceholderToken is the value shipped in the sample config file; the bot
	// refuses to start with it.
	PlaceholderToken = "add_bot_token"

	// Defaults for optional settings.
	DefaultAppEnv       = EnvProduction
	DefaultLogLevel     = "info"
	DefaultHTTPPort     = 8080
	DefaultStoreDriver  = DriverSQLite
	DefaultDBDir        = "./data"
	DefaultRulesFile    = "rules.txt"
	DefaultMoreInfoFile = "more_info.txt"
	DefaultTimezone     = "Local"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	YAMLKey     string // key accepted in CONFIG_FILE, if any
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime or on CONFIG_FILE.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		YAMLKey:     "bot_token",
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
		Notes:       "The sample value " + PlaceholderToken + " is rejected.",
	},
	{
		Key:         KeyAdmins,
		YAMLKey:     "list_of_admins",
		Example:     "alice,bob",
		Description: "Telegram usernames allowed to see admin views.",
	},
	{
		Key:         KeyStoreDriver,
		Example:     DriverSQLite + " / " + DriverMySQL + " / " + DriverMongo,
		Default:     DefaultStoreDriver,
		Description: "Persistence backend for groups and logins.",
	},
	{
		Key:         KeyDBDir,
		YAMLKey:     "path_to_db_dir",
		Example:     DefaultDBDir,
		Default:     DefaultDBDir,
		Description: "Directory holding the SQLite database file.",
		Notes:       "Used only when " + KeyStoreDriver + "=" + DriverSQLite + ".",
	},
	{
		Key:         KeyMySQLDSN,
		Example:     "bot:secret@tcp(127.0.0.1:3306)/groupbot?parseTime=true",
		Description: "MySQL DSN.",
		Notes:       "Required when " + KeyStoreDriver + "=" + DriverMySQL + ".",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string.",
		Notes:       "Required when " + KeyStoreDriver + "=" + DriverMongo + ".",
	},
	{
		Key:         KeyMongoDB,
		Example:     "groupbot",
		Description: "MongoDB database name.",
		Notes:       "Required when " + KeyStoreDriver + "=" + DriverMongo + ".",
	},
	{
		Key:         KeyRulesFile,
		Example:     DefaultRulesFile,
		Default:     DefaultRulesFile,
		Description: "Text file served by the Rules button.",
	},
	{
		Key:         KeyMoreInfoFile,
		Example:     DefaultMoreInfoFile,
		Default:     DefaultMoreInfoFile,
		Description: "Text file served by the More info button.",
	},
	{
		Key:         KeyTimezone,
		Example:     "Europe/Berlin",
		Default:     DefaultTimezone,
		Description: "IANA timezone used to compute the daily log-on date.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/metrics port.",
	},
	{
		Key:         KeyConfigFile,
		Example:     "boostskillabot_config.yaml",
		Description: "Optional YAML file with bot_token, list_of_admins and path_to_db_dir.",
		Notes:       "Environment variables take precedence over the file.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	Admins        []string
	StoreDriver   string
	DBDir         string
	MySQLDSN      string
	MongoURI      string
	MongoDB       string
	RulesFile     string
	MoreInfoFile  string
	Timezone      string
	AppEnv        string
	LogLevel      string
	HTTPPort      int
	ConfigFile    string
}

type fileConfig struct {
	BotToken     string   `yaml:"bot_token"`
	ListOfAdmins []string `yaml:"list_of_admins"`
	PathToDBDir  string   `yaml:"path_to_db_dir"`
}

// Load resolves configuration from the environment (with optional dotenv in
// development) layered over the optional CONFIG_FILE.
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	configFile := strings.TrimSpace(os.Getenv(KeyConfigFile))
	file, err := readFile(configFile)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: firstNonEmpty(os.Getenv(KeyTelegramToken), file.BotToken),
		StoreDriver:   strings.ToLower(firstNonEmpty(os.Getenv(KeyStoreDriver), DefaultStoreDriver)),
		DBDir:         firstNonEmpty(os.Getenv(KeyDBDir), file.PathToDBDir, DefaultDBDir),
		MySQLDSN:      strings.TrimSpace(os.Getenv(KeyMySQLDSN)),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       strings.TrimSpace(os.Getenv(KeyMongoDB)),
		RulesFile:     firstNonEmpty(os.Getenv(KeyRulesFile), DefaultRulesFile),
		MoreInfoFile:  firstNonEmpty(os.Getenv(KeyMoreInfoFile), DefaultMoreInfoFile),
		Timezone:      firstNonEmpty(os.Getenv(KeyTimezone), DefaultTimezone),
		LogLevel:      firstNonEmpty(os.Getenv(KeyLogLevel), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
		ConfigFile:    configFile,
	}

	if adminsRaw, ok := os.LookupEnv(KeyAdmins); ok && strings.TrimSpace(adminsRaw) != "" {
		cfg.Admins = normalizeAdmins(strings.Split(adminsRaw, ","))
	} else {
		cfg.Admins = normalizeAdmins(file.ListOfAdmins)
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	switch cfg.StoreDriver {
	case DriverSQLite:
	case DriverMySQL:
		if cfg.MySQLDSN == "" {
			missing = append(missing, KeyMySQLDSN)
		}
	case DriverMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, KeyMongoURI)
		}
		if cfg.MongoDB == "" {
			missing = append(missing, KeyMongoDB)
		}
	default:
		return Config{}, fmt.Errorf("invalid %s: must be one of %q, %q, %q", KeyStoreDriver, DriverSQLite, DriverMySQL, DriverMongo)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if cfg.TelegramToken == PlaceholderToken {
		return Config{}, fmt.Errorf("invalid %s: replace the placeholder %q with a real bot token", KeyTelegramToken, PlaceholderToken)
	}

	if cfg.StoreDriver == DriverMongo && !validMongoURI(cfg.MongoURI) {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyTimezone, err)
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Location returns the timezone used for daily date keys. Load validates the
// name, so the fallback only applies to hand-built configs.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(firstNonEmpty(c.Timezone, DefaultTimezone))
	if err != nil {
		return time.Local
	}
	return loc
}

func readFile(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read %s: %w", KeyConfigFile, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fileConfig{}, fmt.Errorf("parse %s: %w", KeyConfigFile, err)
	}

	return file, nil
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

// NormalizeUsername strips the @ prefix and lowercases a Telegram username so
// allow-list checks are case-insensitive.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

func normalizeAdmins(values []string) []string {
	admins := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, val := range values {
		name := NormalizeUsername(val)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		admins = append(admins, name)
	}
	return admins
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
