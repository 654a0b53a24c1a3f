package sql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

// SQLConfig holds the SQL specific options of a DataSourceConfig.
// Durations are in seconds.
type SQLConfig struct {
	MaxOpenConns    int `json:"max_open_conns,omitempty"`
	MaxIdleConns    int `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime int `json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime int `json:"conn_max_idle_time,omitempty"`
	ConnectTimeout  int `json:"connect_timeout,omitempty"`

	SSLMode     string `json:"ssl_mode,omitempty"`
	SSLCert     string `json:"ssl_cert,omitempty"`
	SSLKey      string `json:"ssl_key,omitempty"`
	SSLRootCert string `json:"ssl_root_cert,omitempty"`

	// MySQL
	Charset   string `json:"charset,omitempty"`
	Collation string `json:"collation,omitempty"`
	ParseTime *bool  `json:"parse_time,omitempty"`

	// PostgreSQL
	Schema string `json:"schema,omitempty"`
}

func defaultSQLConfig() SQLConfig {
	parseTime := true
	return SQLConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 300,
		ConnMaxIdleTime: 60,
		ConnectTimeout:  10,
		SSLMode:         "disable",
		Charset:         "utf8mb4",
		// OData string comparisons are case sensitive
		Collation: "utf8mb4_bin",
		ParseTime: &parseTime,
		Schema:    "public",
	}
}

// ParseSQLConfig decodes DataSourceConfig.Options; unset fields take the defaults
func ParseSQLConfig(dsCfg *domain.DataSourceConfig) (*SQLConfig, error) {
	cfg := defaultSQLConfig()
	if len(dsCfg.Options) == 0 {
		return &cfg, nil
	}

	data, err := json.Marshal(dsCfg.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	var opts SQLConfig
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("unmarshal sql config: %w", err)
	}
	cfg.merge(&opts)
	return &cfg, nil
}

func (c *SQLConfig) merge(o *SQLConfig) {
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt(&c.MaxOpenConns, o.MaxOpenConns)
	setInt(&c.MaxIdleConns, o.MaxIdleConns)
	setInt(&c.ConnMaxLifetime, o.ConnMaxLifetime)
	setInt(&c.ConnMaxIdleTime, o.ConnMaxIdleTime)
	setInt(&c.ConnectTimeout, o.ConnectTimeout)
	setStr(&c.SSLMode, o.SSLMode)
	setStr(&c.SSLCert, o.SSLCert)
	setStr(&c.SSLKey, o.SSLKey)
	setStr(&c.SSLRootCert, o.SSLRootCert)
	setStr(&c.Charset, o.Charset)
	setStr(&c.Collation, o.Collation)
	setStr(&c.Schema, o.Schema)
	if o.ParseTime != nil {
		c.ParseTime = o.ParseTime
	}
}

func (c *SQLConfig) connMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

func (c *SQLConfig) connMaxIdleTime() time.Duration {
	return time.Duration(c.ConnMaxIdleTime) * time.Second
}
