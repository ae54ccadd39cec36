package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/askhatbv/circulation-service/pkg/logger"
	"github.com/askhatbv/circulation-service/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"CIRCULATION_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"CIRCULATION_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"30s"`
	WriteTimeout time.Duration
}

// Circulation holds the policy constants of the lending rules. The defaults
// match the original operating values; they are plain env knobs, not a
// pricing engine.
type Circulation struct {
	LoanPeriod       time.Duration `envconfig:"LOAN_PERIOD" default:"336h"`
	ReservationTTL   time.Duration `envconfig:"RESERVATION_TTL" default:"168h"`
	DailyPenaltyRate float64       `envconfig:"DAILY_PENALTY_RATE" default:"100"`
}

type Config struct {
	Server      HTTPServer `yaml:"server"`
	Database    postgres.Config
	Circulation Circulation
	Log         logger.Log `yaml:"log"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
