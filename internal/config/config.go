package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/scheduler"
)

// Режимы Actuator.
const (
	ActuatorLocal    = "local"
	ActuatorSimulate = "simulate"
)

// Config — конфигурация агента.
type Config struct {
	// HTTP
	Port          string
	ShutdownGrace time.Duration

	// Хранилище и брокер
	DatabaseURL string
	RabbitMQURL string // пустая строка — без брокера

	// Actuator
	Actuator     string // "local" или "simulate"
	TargetBinary string
	AccountsDir  string // папка портативных установок для поиска аккаунтов

	// Fleet Manager
	FleetMaxSlots       int
	FleetMinTTL         time.Duration
	FleetMaxTTL         time.Duration
	FleetSweepInterval  time.Duration
	FleetRotateInterval time.Duration
	FleetCallTimeout    time.Duration
	FleetEvictGrace     time.Duration
	FleetTouchX         int
	FleetTouchY         int

	// Run Controller
	ItemsPerIdentity int
	ExcludeCompleted bool
	StrictCycles     bool
	LoopDelay        time.Duration
	KeepFleetOnStop  bool

	// Кампании
	CampaignCron string // пустая строка — кампании выключены
	CampaignTZ   string

	// Шина событий
	EventBuffer int
}

// Load читает конфигурацию из окружения со значениями по умолчанию.
func Load() *Config {
	return &Config{
		Port:          getEnv("AGENT_PORT", "8090"),
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 30*time.Second),

		DatabaseURL: getEnv("DB_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		Actuator:     strings.ToLower(getEnv("ACTUATOR", ActuatorLocal)),
		TargetBinary: getEnv("TARGET_BINARY", domain.DefaultTargetBinary),
		AccountsDir:  getEnv("ACCOUNTS_DIR", ""),

		FleetMaxSlots:       getInt("FLEET_MAX_SLOTS", 10),
		FleetMinTTL:         getDuration("FLEET_MIN_TTL", 3*time.Minute),
		FleetMaxTTL:         getDuration("FLEET_MAX_TTL", 15*time.Minute),
		FleetSweepInterval:  getDuration("FLEET_SWEEP_INTERVAL", 5*time.Second),
		FleetRotateInterval: getDuration("FLEET_ROTATE_INTERVAL", 3*time.Second),
		FleetCallTimeout:    getDuration("FLEET_CALL_TIMEOUT", 15*time.Second),
		FleetEvictGrace:     getDuration("FLEET_EVICT_GRACE", time.Second),
		FleetTouchX:         getInt("FLEET_TOUCH_X", 41),
		FleetTouchY:         getInt("FLEET_TOUCH_Y", 53),

		ItemsPerIdentity: getInt("ITEMS_PER_IDENTITY", 5),
		ExcludeCompleted: getBool("EXCLUDE_COMPLETED", true),
		StrictCycles:     getBool("STRICT_CYCLES", false),
		LoopDelay:        getDuration("LOOP_DELAY", 10*time.Second),
		KeepFleetOnStop:  getBool("KEEP_FLEET_ON_STOP", false),

		CampaignCron: getEnv("CAMPAIGN_CRON", ""),
		CampaignTZ:   getEnv("CAMPAIGN_TZ", "UTC"),

		EventBuffer: getInt("EVENT_BUFFER", 256),
	}
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	var errs []error

	if c.Actuator != ActuatorLocal && c.Actuator != ActuatorSimulate {
		errs = append(errs, fmt.Errorf("ACTUATOR must be %q or %q, got %q", ActuatorLocal, ActuatorSimulate, c.Actuator))
	}
	if c.FleetMaxSlots <= 0 {
		errs = append(errs, fmt.Errorf("FLEET_MAX_SLOTS must be positive, got %d", c.FleetMaxSlots))
	}
	if c.FleetMinTTL <= 0 || c.FleetMinTTL > c.FleetMaxTTL {
		errs = append(errs, fmt.Errorf("FLEET_MIN_TTL (%s) must be positive and not above FLEET_MAX_TTL (%s)", c.FleetMinTTL, c.FleetMaxTTL))
	}
	if c.ItemsPerIdentity <= 0 {
		errs = append(errs, fmt.Errorf("ITEMS_PER_IDENTITY must be positive, got %d", c.ItemsPerIdentity))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_BUFFER must be positive, got %d", c.EventBuffer))
	}
	if c.CampaignCron != "" {
		if err := scheduler.ValidateCronExpr(c.CampaignCron); err != nil {
			errs = append(errs, fmt.Errorf("CAMPAIGN_CRON: %w", err))
		}
		if _, err := scheduler.LoadLocation(c.CampaignTZ); err != nil {
			errs = append(errs, fmt.Errorf("CAMPAIGN_TZ: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Addr — адрес HTTP-сервера.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getDuration понимает "90s", "3m" и голое число секунд.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(val); err == nil {
		return time.Duration(sec) * time.Second
	}
	return defaultVal
}
