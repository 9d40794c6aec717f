package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Blockchain BlockchainConfig
	Bridge     BridgeConfig
	Signer     SignerConfig
	Alerts     AlertsConfig
}

// ServerConfig holds server configuration for the ops-only HTTP surface.
type ServerConfig struct {
	Port    string
	Env     string
	AppName string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds JWT configuration for the admin bearer-auth middleware
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// BlockchainConfig holds blockchain RPC URLs and the fallback signer key.
type BlockchainConfig struct {
	BaseSepoliaRPC  string
	BSCSepoliaRPC   string
	SolanaDevnetRPC string
	// RPCURLs generalizes the above two named fields to an arbitrary
	// chainId -> RPC URL map, parsed from "chainId=url,chainId=url", for
	// the AccountResolver/ChainReceiptFetcher's per-chain client lookup
	// once more than two EVM chains are configured.
	RPCURLs map[string]string
	// OwnerPrivateKey is loaded from EVM_OWNER_PRIVATE_KEY (or PRIVATE_KEY).
	// No signing path reads it: signing Accounts are built only from the
	// encrypted signer entries (see AccountResolver in
	// internal/infrastructure/blockchain).
	OwnerPrivateKey string
}

// BridgeConfig holds per-chain fee floors and matcher/sequencer tuning
// knobs (spec §4.4, §6).
type BridgeConfig struct {
	// MinFeePerGas and MinPriorityFeePerGas are keyed by chainId and parsed
	// from the environment, but the Account layer does not read them: it
	// floors both EIP-1559 fee fields against the MinFeePerGas/MinPriorityFee
	// of each configured SignerEntry instead.
	MinFeePerGas         map[string]string
	MinPriorityFeePerGas map[string]string

	SourceSweepInterval time.Duration
	DestSweepInterval   time.Duration
	SweepBatchSize      int
	SweepLookback       time.Duration

	FeeComputeTimeout time.Duration

	// RuleConfigDir holds the maker-*.json/chain_index.json/tokens.json
	// documents ruleconfig.Loader reads (spec §6).
	RuleConfigDir string
	// SignerConfigPath is a JSON file of blockchain.SignerEntry rows
	// (encrypted signing keys plus their router/fee-floor config).
	SignerConfigPath string

	SequencerPollInterval time.Duration
	SequencerBatchLimit   int
	// MaxLossBps bounds the Sequencer's value-match sanity check; 0
	// disables the check entirely (no ExchangeRateProvider is wired yet,
	// see DESIGN.md).
	MaxLossBps int64

	ExclusivityLockTTL time.Duration

	// ReceiptConfirmInterval/ReceiptConfirmBatchSize drive the recurring
	// scan of StatusPaidSuccess rows awaiting their own broadcast's
	// receipt (spec §4.3's "await receipt ... update status = 99" step).
	ReceiptConfirmInterval  time.Duration
	ReceiptConfirmBatchSize int
}

// SignerConfig holds the material needed to decrypt signer private keys at
// rest (generalizing the teacher's SecurityConfig.ApiKeyEncryptionKey to a
// symmetric key-encryption-at-rest scheme for payout signing keys).
type SignerConfig struct {
	// EncryptionKey is the pbkdf2 passphrase used to derive the AES-GCM key
	// that decrypts each account's stored private key.
	EncryptionKey string
}

// AlertsConfig holds the operator paging sink's credentials (spec §6).
// An empty BotToken/ChatID disables alerting entirely -- TelegramAlerter
// treats that as a no-op rather than an error, since a lab/dev
// deployment may not have a chat configured.
type AlertsConfig struct {
	TelegramBotToken string
	TelegramChatID   string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", getEnv("PORT", "3000")),
			Env:     getEnv("SERVER_ENV", "development"),
			AppName: getEnv("APP_NAME", "arbitration-api"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "bridgesettle"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Blockchain: BlockchainConfig{
			BaseSepoliaRPC:  getEnv("BASE_SEPOLIA_RPC_URL", "https://sepolia.base.org"),
			BSCSepoliaRPC:   getEnv("BSC_SEPOLIA_RPC_URL", "https://data-seed-prebsc-1-s1.binance.org:8545"),
			SolanaDevnetRPC: getEnv("SOLANA_DEVNET_RPC_URL", "https://api.devnet.solana.com"),
			RPCURLs:         getEnvAsMap("CHAIN_RPC_URLS"),
			OwnerPrivateKey: getEnv("EVM_OWNER_PRIVATE_KEY", getEnv("PRIVATE_KEY", "")),
		},
		Bridge: BridgeConfig{
			MinFeePerGas:          getEnvAsMap("MIN_FEE_PER_GAS"),
			MinPriorityFeePerGas:  getEnvAsMap("MIN_PRIORITY_FEE_PER_GAS"),
			SourceSweepInterval:   getEnvAsDuration("SOURCE_SWEEP_INTERVAL", 3*time.Minute),
			DestSweepInterval:     getEnvAsDuration("DEST_SWEEP_INTERVAL", 6*time.Minute),
			SweepBatchSize:        getEnvAsInt("SWEEP_BATCH_SIZE", 500),
			SweepLookback:         getEnvAsDuration("SWEEP_LOOKBACK", 24*time.Hour),
			FeeComputeTimeout:     getEnvAsDuration("FEE_COMPUTE_TIMEOUT", 30*time.Second),
			RuleConfigDir:         getEnv("RULE_CONFIG_DIR", "./config/rules"),
			SignerConfigPath:      getEnv("SIGNER_CONFIG_PATH", "./config/signers.json"),
			SequencerPollInterval: getEnvAsDuration("SEQUENCER_POLL_INTERVAL", 15*time.Second),
			SequencerBatchLimit:   getEnvAsInt("SEQUENCER_BATCH_LIMIT", 50),
			MaxLossBps:            int64(getEnvAsInt("MAX_LOSS_BPS", 0)),
			ExclusivityLockTTL:    getEnvAsDuration("EXCLUSIVITY_LOCK_TTL", 30*time.Second),

			ReceiptConfirmInterval:  getEnvAsDuration("RECEIPT_CONFIRM_INTERVAL", 20*time.Second),
			ReceiptConfirmBatchSize: getEnvAsInt("RECEIPT_CONFIRM_BATCH_SIZE", 100),
		},
		Signer: SignerConfig{
			EncryptionKey: getEnv("SIGNER_ENCRYPTION_KEY", "change-this-in-production"),
		},
		Alerts: AlertsConfig{
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsMap parses a "chainId=value,chainId=value" env var into a map,
// used for CHAIN_RPC_URLS and the per-chain fee floor maps. An unset or
// malformed entry simply omits that chain.
func getEnvAsMap(key string) map[string]string {
	out := map[string]string{}
	raw := os.Getenv(key)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
}
