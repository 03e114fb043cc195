// internal/config/config.go

// Package config 集中管理模擬執行的設定。
// 讀取 JSON 設定檔，檔案未列出的欄位沿用預設值；檔案不存在時直接使用預設值，
// 讓 `economy run` 不需任何準備即可執行。
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// EnvFile 為未指定路徑時讀取的環境變數。
const EnvFile = "ECONOMY_CONFIG"

// Config 為單次模擬的可調參數。
type Config struct {
	Cycles       int    `json:"cycles"`
	DBFile       string `json:"db_file"`
	SnapshotFile string `json:"snapshot_file"`
	LogLevel     string `json:"log_level"`
	Order        string `json:"order"`

	// LockTimeoutSeconds：銀行鎖等待超過此秒數即回報疑似死結。
	LockTimeoutSeconds int `json:"lock_timeout_seconds"`

	BankCapital  decimal.Decimal `json:"bank_capital"`
	Borrowers    int             `json:"borrowers"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
	LoanDuration int             `json:"loan_duration"`
	InterestRate decimal.Decimal `json:"interest_rate"`

	Factories      int             `json:"factories"`
	FactoryOutput  int             `json:"factory_output"`
	MarketCapacity int             `json:"market_capacity"`
	MarketPrice    decimal.Decimal `json:"market_price"`
	MarketFunds    decimal.Decimal `json:"market_funds"`
}

// Defaults 回傳沒有設定檔時使用的預設值。
func Defaults() *Config {
	return &Config{
		Cycles:             50,
		DBFile:             "economy.db",
		SnapshotFile:       "economy.json",
		LogLevel:           "info",
		Order:              "bank-first",
		LockTimeoutSeconds: 30,
		BankCapital:        decimal.NewFromInt(10000),
		Borrowers:          5,
		LoanAmount:         decimal.NewFromInt(1000),
		LoanDuration:       12,
		InterestRate:       decimal.RequireFromString("0.01"),
		Factories:          2,
		FactoryOutput:      10,
		MarketCapacity:     8,
		MarketPrice:        decimal.NewFromInt(5),
		MarketFunds:        decimal.NewFromInt(100000),
	}
}

// Load 讀取 path 指定的 JSON 檔；path 為空時改讀 EnvFile 環境變數。
// 檔案不存在回傳預設值；檔案存在但無法解析則回傳錯誤。
func Load(path string) (*Config, error) {
	def := Defaults()
	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path == "" {
		return def, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return def, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// 以預設值為底解析：缺少的鍵保留預設，明確寫出的 0 或空字串照用
	c := Defaults()
	if err := json.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.merge(def)
	return c, nil
}

// merge 把不能為零的欄位改回預設值。
func (c *Config) merge(def *Config) {
	if c.Cycles <= 0 {
		c.Cycles = def.Cycles
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LockTimeoutSeconds <= 0 {
		c.LockTimeoutSeconds = def.LockTimeoutSeconds
	}
	if c.LoanDuration <= 0 {
		c.LoanDuration = def.LoanDuration
	}
}
