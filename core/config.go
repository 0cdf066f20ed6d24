package core

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "LEARNEARN"

type (
	Config struct {
		Debug        bool
		TestMode     bool
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		AppName      string
		SecretKey    string
		RollbarToken string

		API         APIConfig
		Server      ServerConfig
		Credentials CredentialsConfig
		Guard       GuardConfig
		Redirect    RedirectConfig
		Submission  SubmissionConfig
		Donate      DonateConfig
	}

	APIConfig struct {
		BaseURL string
		Timeout time.Duration // 0 disables the client-side timeout
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		CookieSecure    bool
	}

	CredentialsConfig struct {
		Path string // bbolt file holding every credential scope
	}

	GuardConfig struct {
		TablePath string // optional YAML override of the route table
	}

	RedirectConfig struct {
		UserHome  string
		AdminHome string
		Login     string
	}

	SubmissionConfig struct {
		FormURL    string
		HandoffTTL time.Duration
	}

	DonateConfig struct {
		Endpoint string
	}
)

var ErrMissingBaseURL = errors.New("api.baseURL is required")

// NewConfig reads the configuration from the environment.
// A `config/.env.<env>` file is loaded first when it exists.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v := viper.New()
	setDefaults(v)
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	return configFrom(v, env)
}

// bindEnv reads every camelCase key from its snake_case variable,
// api.baseURL from LEARNEARN_API_BASE_URL. AutomaticEnv still answers
// to the run-together form (LEARNEARN_API_BASEURL), which wins when both are set.
func bindEnv(v *viper.Viper) error {
	for _, key := range camelKeys {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return errors.Wrapf(err, "binding %s", key)
		}
	}
	return nil
}

var camelKeys = []string{
	"testMode", "appName", "secretKey", "rollbarToken",
	"api.baseURL",
	"server.debugHost", "server.shutdownTimeout", "server.cookieSecure",
	"guard.tablePath",
	"redirect.userHome", "redirect.adminHome",
	"submission.formURL", "submission.handoffTTL",
}

// envName is the environment variable of a config key: server.shutdownTimeout is LEARNEARN_SERVER_SHUTDOWN_TIMEOUT.
func envName(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for _, part := range strings.Split(key, ".") {
		b.WriteByte('_')
		for i, r := range part {
			if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(rune(part[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Learn & Earn")
	v.SetDefault("secretKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("api.baseURL", "")
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.cookieSecure", false)

	v.SetDefault("credentials.path", filepath.Join("data", "credentials.db"))
	v.SetDefault("guard.tablePath", "")

	v.SetDefault("redirect.userHome", "/earn")
	v.SetDefault("redirect.adminHome", "/admin")
	v.SetDefault("redirect.login", "/login")

	v.SetDefault("submission.formURL", "")
	v.SetDefault("submission.handoffTTL", 15*time.Minute)

	v.SetDefault("donate.endpoint", "")
}

func configFrom(v *viper.Viper, env string) (*Config, error) {
	conf := &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			CookieSecure:    v.GetBool("server.cookieSecure"),
		},
		Credentials: CredentialsConfig{Path: v.GetString("credentials.path")},
		Guard:       GuardConfig{TablePath: v.GetString("guard.tablePath")},
		Redirect: RedirectConfig{
			UserHome:  v.GetString("redirect.userHome"),
			AdminHome: v.GetString("redirect.adminHome"),
			Login:     v.GetString("redirect.login"),
		},
		Submission: SubmissionConfig{
			FormURL:    v.GetString("submission.formURL"),
			HandoffTTL: v.GetDuration("submission.handoffTTL"),
		},
		Donate: DonateConfig{Endpoint: v.GetString("donate.endpoint")},
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the values the application cannot start without.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("api.baseURL %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if !c.Debug && c.SecretKey == "" {
		return errors.New("secretKey is required outside debug mode")
	}
	if c.SecretKey == "" {
		// debug only: handoff tokens signed with a throwaway key
		c.SecretKey = "insecure-debug-secret"
	}
	return nil
}
