package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

type Configuration struct {
	ReportsDirectory string         `json:"reportsDirectory" validate:"required"`
	MaxFileSize      int64          `json:"maxFileSize" validate:"gt=0"`
	RetentionDays    int            `json:"retentionDays" validate:"gt=0"`
	Database         DatabaseConfig `json:"database"`
}

type DatabaseConfig struct {
	Host           string   `json:"host" validate:"required"`
	Port           int      `json:"port" validate:"gt=0"`
	User           string   `json:"user" validate:"required"`
	Password       string   `json:"password"`
	Database       string   `json:"database" validate:"required"`
	SSLMode        string   `json:"sslMode"`
	MaxConns       int      `json:"maxConns"`
	MaxIdle        int      `json:"maxIdle"`
	ConnectTimeout Duration `json:"connectTimeout"`
}

// DSN builds the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, sslMode)
	if c.Password != "" {
		dsn = fmt.Sprintf("%s password=%s", dsn, c.Password)
	}
	if c.ConnectTimeout.Duration > 0 {
		dsn = fmt.Sprintf("%s connect_timeout=%d", dsn, int(c.ConnectTimeout.Seconds()))
	}
	return dsn
}

func GetConfig(defaults Configuration, f string) (*Configuration, error) {
	if f == "" {
		return nil, fmt.Errorf("please provide a valid config file")
	}

	b, err := os.ReadFile(f) // nolint: gosec
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(b)

	decoder := json.NewDecoder(reader)
	if err = decoder.Decode(&defaults); err != nil {
		return nil, err
	}

	// credentials can be kept out of the config file
	if v := os.Getenv("DMARC_DB_PASSWORD"); v != "" {
		defaults.Database.Password = v
	}
	if v := os.Getenv("DMARC_DB_USER"); v != "" {
		defaults.Database.User = v
	}

	if err := validator.New().Struct(defaults); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &defaults, nil
}
