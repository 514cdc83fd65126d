package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config structs

type Config struct {
	IsDebug bool `yaml:"is_debug"`

	DataDir string `yaml:"data_dir"`

	MySQL MySQL `yaml:"mysql"`
	Redis Redis `yaml:"redis"`
	Etcd  Etcd  `yaml:"etcd"`
	Nats  Nats  `yaml:"nats"`
	HTTP  HTTP  `yaml:"http"`

	Matching Matching `yaml:"matching"`
	Approval Approval `yaml:"approval"`

	Env Env `yaml:"env"`
}

type MySQL struct {
	Main MySQLServer `yaml:"main"`
}

type MySQLServer struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Pass         string `yaml:"pass"`
	DB           string `yaml:"db"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type Redis struct {
	Main RedisServer `yaml:"main"`
}

type RedisServer struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Pass    string `yaml:"pass"`
	Timeout int    `yaml:"timeout"`
}

type Etcd struct {
	Main EtcdServer `yaml:"main"`
}

type EtcdServer struct {
	Enable bool   `yaml:"enable"`
	Url    string `yaml:"url"`
}

type Nats struct {
	Enabled bool   `yaml:"enabled"`
	Url     string `yaml:"url"` // resolved from etcd when empty
	Stream  string `yaml:"stream"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

// Matching tunes order formation and the optimizer.
type Matching struct {
	Mode             string  `yaml:"mode"`              // atomic | best_effort
	HedgePercent     float64 `yaml:"hedge_percent"`     // share of the matched quantity to hedge, 0-1
	TolerateCurrency bool    `yaml:"tolerate_currency"` // let the optimizer mix currencies
	LockTTLSeconds   int     `yaml:"lock_ttl_seconds"`
	JournalFile      string  `yaml:"journal_file"`
}

type Approval struct {
	GrpcTarget string `yaml:"grpc_target"` // remote evaluator, local rules when empty
	Listen     string `yaml:"listen"`      // address of the approval app
	TimeoutMs  int    `yaml:"timeout_ms"`

	MaxQuantityMT    float64  `yaml:"max_quantity_mt"`   // above this a ticket needs approval
	MaxNotional      float64  `yaml:"max_notional"`      // quantity * resolved price
	FloatingApproval bool     `yaml:"floating_approval"` // Formula/Index tickets always need approval
	Approvers        []string `yaml:"approvers"`
}

type Env struct {
	XlogMode  string `yaml:"xlog_mode"`
	XlogColor bool   `yaml:"xlog_color"`
}

// LockTTL returns the ticket lock ttl, 30s by default.
func (m Matching) LockTTL() time.Duration {
	if m.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.LockTTLSeconds) * time.Second
}

// Global variables

const DEVDATA = "/usr/local/metaldesk/devdata"

var Shared *Config // single instance of the config

var (
	fConfig string // config file path
)

func init() {
	flag.StringVar(&fConfig, "config", "", "specify the config file")
}

// Default returns a config usable without any file, everything external disabled.
func Default() *Config {
	return &Config{
		DataDir: DEVDATA,
		HTTP:    HTTP{Addr: ":8080"},
		Nats:    Nats{Stream: "METALDESK"},
		Matching: Matching{
			Mode:           "atomic",
			HedgePercent:   1,
			LockTTLSeconds: 30,
		},
		Approval: Approval{
			Listen:           ":9400",
			TimeoutMs:        3000,
			MaxQuantityMT:    500,
			MaxNotional:      1000000,
			FloatingApproval: true,
		},
	}
}

// Init the Shared config with the given config file path
func Init(configFile string) {
	file, err := os.Open(configFile)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	Shared = Default()
	decoder := yaml.NewDecoder(file)
	err = decoder.Decode(Shared)
	if err != nil {
		panic(err)
	}
}

// EasyInit initializes the Shared config with the default config file path
func EasyInit() {
	fpath := fConfig
	if fpath == "" {
		fpath = "config/config.yml"
	}

	// if the config file does not exist, use the default config file path
	if _, err := os.Stat(fpath); os.IsNotExist(err) {
		fpath = DEVDATA + "/config.yml"
		printf(fmt.Sprintf("use config: %s (DEVDATA)", fpath))
	} else {
		printf(fmt.Sprintf("use config: %s", fpath))
	}

	Init(fpath)
}

// Print the given string to the standard output
func printf(s string) {
	fmt.Printf("%s %s\n", time.Now().Format("2006/01/02 15:04:05"), s)
}
